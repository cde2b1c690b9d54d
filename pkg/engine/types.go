package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// Seconds is the engine's elapsed-time unit, read from
// platform.Platform.SysElapsedTime and never from the wall clock directly.
type Seconds int64

// IfaceType classifies an interface's network type (RFC 2328 §1.2).
type IfaceType int

const (
	IfaceBroadcast IfaceType = iota
	IfacePointToPoint
	IfaceNBMA
	IfacePointToMultipoint
	IfaceVirtualLink
)

func (t IfaceType) String() string {
	switch t {
	case IfaceBroadcast:
		return "broadcast"
	case IfacePointToPoint:
		return "point-to-point"
	case IfaceNBMA:
		return "NBMA"
	case IfacePointToMultipoint:
		return "point-to-multipoint"
	case IfaceVirtualLink:
		return "virtual-link"
	default:
		return "unknown"
	}
}

// IfaceState is an interface's RFC 2328 §9.1 interface state machine state.
type IfaceState int

const (
	IfaceDown IfaceState = iota
	IfaceLoopback
	IfaceWaiting
	IfacePointToPointState
	IfaceDROther
	IfaceBackup
	IfaceDR
)

func (s IfaceState) String() string {
	switch s {
	case IfaceLoopback:
		return "Loopback"
	case IfaceWaiting:
		return "Waiting"
	case IfacePointToPointState:
		return "Point-to-Point"
	case IfaceDROther:
		return "DROther"
	case IfaceBackup:
		return "Backup"
	case IfaceDR:
		return "DR"
	default:
		return "Down"
	}
}

// NbrState is a neighbor's RFC 2328 §10.1 state machine state.
type NbrState int

const (
	NbrDown NbrState = iota
	NbrAttempt
	NbrInit
	NbrTwoWay
	NbrExStart
	NbrExchange
	NbrLoading
	NbrFull
)

func (s NbrState) String() string {
	switch s {
	case NbrAttempt:
		return "Attempt"
	case NbrInit:
		return "Init"
	case NbrTwoWay:
		return "2-Way"
	case NbrExStart:
		return "ExStart"
	case NbrExchange:
		return "Exchange"
	case NbrLoading:
		return "Loading"
	case NbrFull:
		return "Full"
	default:
		return "Down"
	}
}

// PathType orders route preference per RFC 2328 §11: intra-area routes beat
// inter-area, which beat type-1 external, which beat type-2 external.
type PathType int

const (
	PathIntraArea PathType = iota
	PathInterArea
	PathType1External
	PathType2External
)

func (p PathType) String() string {
	switch p {
	case PathIntraArea:
		return "intra-area"
	case PathInterArea:
		return "inter-area"
	case PathType1External:
		return "type-1-external"
	case PathType2External:
		return "type-2-external"
	default:
		return "unknown"
	}
}

// Destination identifies a routed IP network.
type Destination struct {
	Net  net.IP
	Mask net.IP
}

func (d Destination) key() string {
	return d.Net.String() + "/" + d.Mask.String()
}

// RouteEntry is one computed routing table entry.
type RouteEntry struct {
	Dest     Destination
	PathType PathType
	Cost     uint32
	Type2Cost uint32 // valid only for PathType2External, compared before Cost
	Area     ospf.AreaID
	NextHops []NextHop

	// routerHost marks the synthetic /32 toward a router vertex, used for
	// ABR/ASBR cost resolution; never summarized into other areas and not
	// installed in the kernel.
	routerHost bool
}

// NextHop is one equal-cost path toward a RouteEntry's destination.
type NextHop struct {
	PhyInt    int
	Gateway   net.IP
	IfaceAddr net.IP
}
