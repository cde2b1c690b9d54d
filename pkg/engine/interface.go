package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/auth"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// Interface is one OSPF-enabled interface (RFC 2328 §9), owned by exactly
// one Area. Virtual links are modeled as Interfaces with
// Type == IfaceVirtualLink and a non-nil VirtualPeer, routed through the
// transit area's computed path rather than a physical phyint.
type Interface struct {
	PhyInt int
	Area   *Area
	Type   IfaceType
	State  IfaceState

	Addr net.IP
	Mask net.IP

	HelloInterval    uint16
	RouterDeadInterval uint32
	InfTransDelay    uint16
	RxmtInterval     uint16
	Priority         uint8
	Cost             uint16
	MTU              uint16

	DR  ospf.RouterID
	BDR ospf.RouterID

	AuthKeys *auth.KeyRing
	// AuType is the authentication type advertised in this interface's
	// outbound packet headers, set by CfgAuKey from the type of the most
	// recently installed key (RFC 2328 §D mandates one scheme per interface).
	AuType ospf.AuType

	// VirtualPeer is the remote router ID this virtual link reaches through
	// the transit area; nil for non-virtual interfaces.
	VirtualPeer *ospf.RouterID
	TransitArea ospf.AreaID

	neighbors map[ospf.RouterID]*Neighbor

	helloTimer    timers.Handle
	waitTimer     timers.Handle

	// delayedAcks holds headers of LSAs awaiting a delayed LSAck out this
	// interface, sent together when ackTimer fires.
	delayedAcks []ospf.LSAHeader
	ackTimer    timers.Handle
}

// NewInterface returns an Interface in state Down, owned by area.
func NewInterface(phyint int, area *Area, typ IfaceType) *Interface {
	return &Interface{
		PhyInt:             phyint,
		Area:               area,
		Type:               typ,
		State:              IfaceDown,
		HelloInterval:      10,
		RouterDeadInterval: 40,
		InfTransDelay:      1,
		RxmtInterval:       5,
		Cost:               1,
		AuthKeys:           auth.NewKeyRing(),
		neighbors:          map[ospf.RouterID]*Neighbor{},
	}
}

// Neighbors returns every neighbor currently known on the interface.
func (ifc *Interface) Neighbors() []*Neighbor {
	out := make([]*Neighbor, 0, len(ifc.neighbors))
	for _, n := range ifc.neighbors {
		out = append(out, n)
	}
	return out
}

// NeighborByID looks up a neighbor by router ID.
func (ifc *Interface) NeighborByID(id ospf.RouterID) (*Neighbor, bool) {
	n, ok := ifc.neighbors[id]
	return n, ok
}

// NeighborByAddr looks up a neighbor by source IP, the lookup used when a
// packet arrives before the neighbor's router ID can be trusted (e.g. on a
// broadcast network, before Hello processing has run).
func (ifc *Interface) NeighborByAddr(addr net.IP) (*Neighbor, bool) {
	for _, n := range ifc.neighbors {
		if n.Address.Equal(addr) {
			return n, true
		}
	}
	return nil, false
}

// IsDROrBackup reports whether this interface's own router is currently
// elected DR or Backup DR (RFC 2328 §9.4), the condition that gates
// participation in flooding to AllDRouters.
func (ifc *Interface) IsDROrBackup() bool {
	return ifc.State == IfaceDR || ifc.State == IfaceBackup
}

// NetworkMask returns the 4-byte mask in wire form.
func (ifc *Interface) NetworkMask() uint32 {
	if len(ifc.Mask) == 0 {
		return 0
	}
	v4 := ifc.Mask.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

// AddrUint32 returns the interface address in wire form.
func (ifc *Interface) AddrUint32() uint32 {
	v4 := ifc.Addr.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
