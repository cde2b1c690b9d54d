package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// Neighbor is one OSPF neighbor relationship, owned by exactly one
// Interface (RFC 2328 §10).
type Neighbor struct {
	RouterID ospf.RouterID
	Address  net.IP
	Iface    *Interface

	State    NbrState
	Priority uint8
	DR       ospf.RouterID
	BDR      ospf.RouterID
	Options  uint8

	// Master reports whether this router is master in the DD exchange with
	// this neighbor (false means the neighbor is master and we echo its
	// sequence numbers).
	Master     bool
	DDSequence uint32

	// lastSentDD is the most recently transmitted DD packet, retained so
	// duplicates from the peer can be re-answered verbatim and the master
	// can retransmit on timeout (RFC 2328 §10.8).
	lastSentDD *ospf.DatabaseDescription

	// dbSummaryList is this neighbor's remaining database-description send
	// queue, populated at ExStart->Exchange transition from the full LSDB
	// summary and drained one DD packet's worth at a time.
	dbSummaryList []ospf.LSAHeader

	// lsRequestList is what we have asked this neighbor for and not yet
	// received (state Loading); emptied drives Loading->Full.
	lsRequestList []ospf.LSRequestEntry

	// lsRetransmit is what we have sent this neighbor and not yet had
	// acknowledged, keyed for O(1) ack processing.
	lsRetransmit map[ospf.LSAKey]*ospf.LSA

	inactivityTimer timers.Handle
	rxmtTimer       timers.Handle
	ddRxmtTimer     timers.Handle
	lsuRxmtTimer    timers.Handle

	// restartHelper is non-nil while this router is acting as a hitless-
	// restart helper for this neighbor.
	restartHelper *helperState
}

// NewNeighbor returns a Neighbor in state Down.
func NewNeighbor(id ospf.RouterID, addr net.IP, ifc *Interface) *Neighbor {
	return &Neighbor{
		RouterID:     id,
		Address:      addr,
		Iface:        ifc,
		State:        NbrDown,
		lsRetransmit: map[ospf.LSAKey]*ospf.LSA{},
	}
}

// IsAdjacencyEligible reports whether RFC 2328 §10.4 calls for forming a
// full adjacency with this neighbor: always on point-to-point/virtual links,
// and on broadcast/NBMA segments only with the DR, the BDR, or when this
// router itself is DR/BDR.
func IsAdjacencyEligible(ifc *Interface, nbr *Neighbor) bool {
	switch ifc.Type {
	case IfacePointToPoint, IfacePointToMultipoint, IfaceVirtualLink:
		return true
	default:
		if ifc.IsDROrBackup() {
			return true
		}
		return nbr.RouterID == ifc.DR || nbr.RouterID == ifc.BDR
	}
}
