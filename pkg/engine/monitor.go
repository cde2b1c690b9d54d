package engine

import (
	"net"
	"sort"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// This file is the engine's read-only introspection surface. Every walk follows the same next-greater-
// key convention the monitor protocol exposes: pass the previous key with
// exact=false to get the following item, or exact=true for a point lookup.

// Statistics is the process-wide snapshot returned to a monitor statistics
// request.
type Statistics struct {
	RouterID       ospf.RouterID
	AreaCount      int
	InterfaceCount int
	NeighborCount  int
	FullNeighbors  int
	ASExternals    int
	Routes         int
	RxPackets      uint64
	RxDropped      uint64
	InOverflow     bool
	Restarting     bool
}

// Stats assembles the current Statistics snapshot.
func (r *Router) Stats() Statistics {
	s := Statistics{
		RouterID:    r.id,
		AreaCount:   len(r.areas),
		ASExternals: r.asExternalDB.Len(),
		Routes:      len(r.routes),
		RxPackets:   r.rxAccepted,
		RxDropped:   r.rxDropped,
		InOverflow:  r.overflow.active,
		Restarting:  r.hitless.restarting,
	}
	for _, ifc := range r.ifaces {
		if ifc.Type != IfaceVirtualLink {
			s.InterfaceCount++
		}
		for _, nbr := range ifc.Neighbors() {
			s.NeighborCount++
			if nbr.State == NbrFull {
				s.FullNeighbors++
			}
		}
	}
	return s
}

// ResetStats zeroes the packet counters the statistics query reports. The
// Prometheus series are untouched; only the monitor-visible snapshot resets.
func (r *Router) ResetStats() {
	r.rxAccepted = 0
	r.rxDropped = 0
}

// DBStats is the simulator's LSDB fingerprint: two routers
// report equal DBStats iff their databases are byte-identical, which the
// controller uses to color synchronization state.
type DBStats struct {
	LowArea          ospf.AreaID
	AreaLSAs         uint32
	AreaChecksum     uint32
	ASExternals      uint32
	ASExternalSum    uint32
}

// DBStats computes the current fingerprint across every area database plus
// the AS-external database.
func (r *Router) DBStats() DBStats {
	var fp DBStats
	first := true
	for _, id := range r.sortedAreaIDs() {
		a := r.areas[id]
		if first {
			fp.LowArea = id
			first = false
		}
		fp.AreaLSAs += uint32(a.LSDB.Len())
		fp.AreaChecksum += a.LSDB.Checksum()
	}
	fp.ASExternals = uint32(r.asExternalDB.Len())
	fp.ASExternalSum = r.asExternalDB.Checksum()
	return fp
}

func (r *Router) sortedAreaIDs() []ospf.AreaID {
	ids := make([]ospf.AreaID, 0, len(r.areas))
	for id := range r.areas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AreaInfo is one area's monitor view.
type AreaInfo struct {
	ID         ospf.AreaID
	Stub       bool
	Transit    bool
	Interfaces int
	LSAs       int
	Checksum   uint32
}

// NextArea returns the area with ID exactly after (exact=true) or the first
// area whose ID sorts strictly greater than after (exact=false).
func (r *Router) NextArea(after ospf.AreaID, exact bool) (AreaInfo, bool) {
	if exact {
		a, ok := r.areas[after]
		if !ok {
			return AreaInfo{}, false
		}
		return areaInfo(a), true
	}
	for _, id := range r.sortedAreaIDs() {
		if id > after {
			return areaInfo(r.areas[id]), true
		}
	}
	return AreaInfo{}, false
}

// FirstArea returns the lowest-numbered area, beginning an iteration.
func (r *Router) FirstArea() (AreaInfo, bool) {
	ids := r.sortedAreaIDs()
	if len(ids) == 0 {
		return AreaInfo{}, false
	}
	return areaInfo(r.areas[ids[0]]), true
}

func areaInfo(a *Area) AreaInfo {
	return AreaInfo{
		ID:         a.ID,
		Stub:       a.Stub,
		Transit:    a.transitCapable,
		Interfaces: len(a.interfaces),
		LSAs:       a.LSDB.Len(),
		Checksum:   a.LSDB.Checksum(),
	}
}

// InterfaceInfo is one interface's monitor view.
type InterfaceInfo struct {
	PhyInt   int
	Addr     net.IP
	Mask     net.IP
	Area     ospf.AreaID
	Type     IfaceType
	State    IfaceState
	Cost     uint16
	DR       ospf.RouterID
	BDR      ospf.RouterID
	Priority uint8
	Neighbors int
}

// NextInterface iterates interfaces ordered by phyint.
func (r *Router) NextInterface(after int, exact bool) (InterfaceInfo, bool) {
	if exact {
		ifc, ok := r.ifaces[after]
		if !ok {
			return InterfaceInfo{}, false
		}
		return interfaceInfo(ifc), true
	}
	var best *Interface
	for phyint, ifc := range r.ifaces {
		if phyint <= after {
			continue
		}
		if best == nil || phyint < best.PhyInt {
			best = ifc
		}
	}
	if best == nil {
		return InterfaceInfo{}, false
	}
	return interfaceInfo(best), true
}

// FirstInterface returns the lowest-numbered interface.
func (r *Router) FirstInterface() (InterfaceInfo, bool) {
	var best *Interface
	for _, ifc := range r.ifaces {
		if best == nil || ifc.PhyInt < best.PhyInt {
			best = ifc
		}
	}
	if best == nil {
		return InterfaceInfo{}, false
	}
	return interfaceInfo(best), true
}

func interfaceInfo(ifc *Interface) InterfaceInfo {
	return InterfaceInfo{
		PhyInt:    ifc.PhyInt,
		Addr:      ifc.Addr,
		Mask:      ifc.Mask,
		Area:      ifc.Area.ID,
		Type:      ifc.Type,
		State:     ifc.State,
		Cost:      ifc.Cost,
		DR:        ifc.DR,
		BDR:       ifc.BDR,
		Priority:  ifc.Priority,
		Neighbors: len(ifc.Neighbors()),
	}
}

// NeighborInfo is one neighbor's monitor view.
type NeighborInfo struct {
	PhyInt   int
	RouterID ospf.RouterID
	Address  net.IP
	State    NbrState
	Priority uint8
	DR       ospf.RouterID
	BDR      ospf.RouterID
	Helper   bool
}

// nbrIterKey orders neighbors by (phyint, router ID) for iteration.
type nbrIterKey struct {
	phyint int
	id     ospf.RouterID
}

func nbrKeyLess(a, b nbrIterKey) bool {
	if a.phyint != b.phyint {
		return a.phyint < b.phyint
	}
	return a.id < b.id
}

// NextNeighbor iterates neighbors across all interfaces in (phyint,
// router-ID) order.
func (r *Router) NextNeighbor(afterPhyint int, afterID ospf.RouterID, exact bool) (NeighborInfo, bool) {
	after := nbrIterKey{afterPhyint, afterID}
	var bestKey nbrIterKey
	var best *Neighbor
	for phyint, ifc := range r.ifaces {
		for _, nbr := range ifc.Neighbors() {
			key := nbrIterKey{phyint, nbr.RouterID}
			if exact {
				if key == after {
					return neighborInfo(nbr), true
				}
				continue
			}
			if !nbrKeyLess(after, key) {
				continue
			}
			if best == nil || nbrKeyLess(key, bestKey) {
				best, bestKey = nbr, key
			}
		}
	}
	if best == nil {
		return NeighborInfo{}, false
	}
	return neighborInfo(best), true
}

// FirstNeighbor returns the first neighbor in (phyint, router-ID) order.
func (r *Router) FirstNeighbor() (NeighborInfo, bool) {
	var bestKey nbrIterKey
	var best *Neighbor
	for phyint, ifc := range r.ifaces {
		for _, nbr := range ifc.Neighbors() {
			key := nbrIterKey{phyint, nbr.RouterID}
			if best == nil || nbrKeyLess(key, bestKey) {
				best, bestKey = nbr, key
			}
		}
	}
	if best == nil {
		return NeighborInfo{}, false
	}
	return neighborInfo(best), true
}

func neighborInfo(nbr *Neighbor) NeighborInfo {
	return NeighborInfo{
		PhyInt:   nbr.Iface.PhyInt,
		RouterID: nbr.RouterID,
		Address:  nbr.Address,
		State:    nbr.State,
		Priority: nbr.Priority,
		DR:       nbr.DR,
		BDR:      nbr.BDR,
		Helper:   nbr.restartHelper != nil,
	}
}

// NextRoute iterates the installed routing table in (network, mask) order.
func (r *Router) NextRoute(afterNet, afterMask net.IP, exact bool) (*RouteEntry, bool) {
	after := routeIterKey(afterNet, afterMask)
	keys := make([]string, 0, len(r.routes))
	byKey := map[string]*RouteEntry{}
	for _, route := range r.routes {
		k := routeIterKey(route.Dest.Net, route.Dest.Mask)
		keys = append(keys, k)
		byKey[k] = route
	}
	sort.Strings(keys)
	for _, k := range keys {
		if exact && k == after {
			return byKey[k], true
		}
		if !exact && k > after {
			return byKey[k], true
		}
	}
	return nil, false
}

// FirstRoute returns the first routing-table entry in (network, mask) order.
func (r *Router) FirstRoute() (*RouteEntry, bool) {
	var bestKey string
	var best *RouteEntry
	for _, route := range r.routes {
		k := routeIterKey(route.Dest.Net, route.Dest.Mask)
		if best == nil || k < bestKey {
			best, bestKey = route, k
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// routeIterKey renders a (net, mask) pair as a fixed-width comparable string
// so lexicographic order equals numeric order.
func routeIterKey(netw, mask net.IP) string {
	b := make([]byte, 0, 8)
	b = append(b, netw.To4()...)
	b = append(b, mask.To4()...)
	return string(b)
}

// BestMatch performs the routing table's best-match lookup:
// longest prefix first, path-type preference breaking exact ties.
func (r *Router) BestMatch(addr net.IP) (*RouteEntry, bool) {
	e := r.longestMatchInstalled(addr)
	if e == nil {
		return nil, false
	}
	return e, true
}

// LookupLSA fetches one LSA by its full composite key within area (or the
// AS-external scope when the type floods AS-wide).
func (r *Router) LookupLSA(area ospf.AreaID, key ospf.LSAKey) (*ospf.LSA, bool) {
	db, ok := r.scopedDB(area, key.Type)
	if !ok {
		return nil, false
	}
	return db.Lookup(key)
}

// NextLSA returns the first LSA in area's scope whose key sorts strictly
// after the supplied key.
func (r *Router) NextLSA(area ospf.AreaID, after ospf.LSAKey) (*ospf.LSA, bool) {
	db, ok := r.scopedDB(area, after.Type)
	if !ok {
		return nil, false
	}
	return db.NextGreater(after)
}

func (r *Router) scopedDB(area ospf.AreaID, t ospf.LSAType) (*LSDB, bool) {
	if t.Scope() == ospf.ScopeAS {
		return r.asExternalDB, true
	}
	a, ok := r.areas[area]
	if !ok {
		return nil, false
	}
	return a.LSDB, true
}
