package engine

import "github.com/ospfd/ospfd/internal/protocol/ospf"

// Area holds everything scoped to one OSPF area: its own
// router/network/summary/group-membership/opaque-area LSDB, the interfaces
// attached to it, and the intra/inter-area routes its SPF run last produced.
type Area struct {
	ID   ospf.AreaID
	Stub bool
	// StubDefaultCost is the cost advertised in the default route a stub
	// area's ABRs originate into it; meaningless when Stub is false.
	StubDefaultCost uint32

	LSDB *LSDB // router, network, summary, ASBR-summary, group-membership, opaque-area LSAs

	interfaces map[int]*Interface

	// transitCapable is set once SPF discovers at least one fully-adjacent
	// virtual link whose transit area is this one (RFC 2328 §16.1 step 4).
	transitCapable bool

	// spfRoutes is the intra/inter-area routing table this area's last SPF
	// run produced, keyed by destination.
	spfRoutes map[string]*RouteEntry

	// lastSPFRun is the elapsed-time reading of the area's last completed
	// SPF calculation, used to enforce the minimum SPF interval.
	lastSPFRun Seconds

	// ranges holds configured address ranges for inter-area summarization
	// at an ABR (cfgRnge), keyed by "net/mask".
	ranges map[string]*addressRange

	// hosts holds host routes originated directly into this area's
	// router-LSA as stub links (cfgHost), keyed by address string.
	hosts map[string]hostRoute
}

// NewArea returns an empty Area with an initialized LSDB.
func NewArea(id ospf.AreaID) *Area {
	return &Area{
		ID:         id,
		LSDB:       NewLSDB(),
		interfaces: map[int]*Interface{},
		spfRoutes:  map[string]*RouteEntry{},
	}
}

// Interfaces returns every interface attached to the area.
func (a *Area) Interfaces() []*Interface {
	out := make([]*Interface, 0, len(a.interfaces))
	for _, ifc := range a.interfaces {
		out = append(out, ifc)
	}
	return out
}

// HasAnyFullNeighbor reports whether any interface in the area has a
// neighbor in state Full, the condition RFC 2328 §16.1 calls "IsTransit".
func (a *Area) HasAnyFullNeighbor() bool {
	for _, ifc := range a.interfaces {
		for _, n := range ifc.neighbors {
			if n.State == NbrFull {
				return true
			}
		}
	}
	return false
}
