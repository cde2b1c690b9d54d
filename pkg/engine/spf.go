package engine

import (
	"container/heap"
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// spfVertex is one candidate/settled node in Dijkstra's algorithm over an
// area's router- and network-LSAs (RFC 2328 §16.1). A vertex is either a
// router (keyed by RouterID) or a transit network (keyed by the network-LSA's
// LS-ID, the DR's interface address).
type spfVertex struct {
	isRouter bool
	routerID ospf.RouterID
	netLSID  uint32
	netMask  uint32

	cost     uint32
	nextHops []NextHop
	lsa      *ospf.LSA
}

func (v *spfVertex) key() uint64 {
	if v.isRouter {
		return uint64(v.routerID)
	}
	return 1<<32 | uint64(v.netLSID)
}

// spfHeap is a priority queue of candidate vertices ordered by cost, giving
// Dijkstra its "closest candidate first" step (RFC 2328 §16.1 step 2).
type spfHeap []*spfVertex

func (h spfHeap) Len() int            { return len(h) }
func (h spfHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h spfHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *spfHeap) Push(x interface{}) { *h = append(*h, x.(*spfVertex)) }
func (h *spfHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// RunSPF recomputes the shortest-path tree for area from this router as
// root (RFC 2328 §16.1), then walks summary-LSAs for inter-area routes and
// the AS-external LSDB for external routes.
// It is idempotent: calling it with no LSDB change since the last run just
// reproduces the same routing table.
func (r *Router) RunSPF(a *Area) {
	if r.hitless != nil && r.hitless.restarting {
		// Hitless restart freezes route installation so the pre-restart
		// multi-path decisions remain in the kernel.
		return
	}

	r.metrics.SPFRun(a.ID.String())

	settled := map[uint64]*spfVertex{}
	cand := &spfHeap{}
	heap.Init(cand)

	root := &spfVertex{isRouter: true, routerID: r.id, cost: 0}
	heap.Push(cand, root)

	for cand.Len() > 0 {
		v := heap.Pop(cand).(*spfVertex)
		if _, done := settled[v.key()]; done {
			continue
		}
		lsa := v.lsa
		if v.isRouter && lsa == nil {
			lsa = r.findRouterLSA(a, v.routerID)
		}
		if lsa == nil && v.key() != root.key() {
			continue
		}
		v.lsa = lsa
		settled[v.key()] = v

		links := spfLinksOf(lsa)
		for _, l := range links {
			r.relaxSPFLink(a, settled, cand, v, l)
		}
	}

	a.spfRoutes = buildIntraAreaRoutes(settled)
	a.transitCapable = areaHasTransitVL(settled, a)
	r.applySummaryLSAs(a)
	r.recomputeRoutingTable()
}

// spfLink is a flattened, direction-agnostic view of one router-LSA link or
// one network-LSA attached-router entry, so relaxSPFLink doesn't need to
// know which body type produced it.
type spfLink struct {
	toRouter bool
	router   ospf.RouterID
	toNet    bool
	netLSID  uint32
	netMask  uint32
	metric   uint32
	ifaceAddr uint32 // this router's own address on the link, for next-hop construction
	phyint   int
}

func spfLinksOf(lsa *ospf.LSA) []spfLink {
	if lsa == nil {
		return nil
	}
	var out []spfLink
	switch b := lsa.Body.(type) {
	case *ospf.RouterLSA:
		for _, l := range b.Links {
			switch l.Type {
			case ospf.LinkPointToPoint, ospf.LinkVirtual:
				out = append(out, spfLink{toRouter: true, router: ospf.RouterID(l.ID), metric: uint32(l.Metric)})
			case ospf.LinkTransit:
				out = append(out, spfLink{toNet: true, netLSID: l.ID, metric: uint32(l.Metric), ifaceAddr: l.Data})
			}
		}
	case *ospf.NetworkLSA:
		for _, rid := range b.AttachedRouters {
			out = append(out, spfLink{toRouter: true, router: rid, metric: 0})
		}
	}
	return out
}

// relaxSPFLink extends the shortest-path tree across one link out of v,
// pushing (or re-pushing with a lower cost) the candidate it reaches.
func (r *Router) relaxSPFLink(a *Area, settled map[uint64]*spfVertex, cand *spfHeap, v *spfVertex, l spfLink) {
	var next *spfVertex
	if l.toRouter {
		lsa := r.findRouterLSA(a, l.router)
		if lsa == nil {
			return
		}
		body := lsa.Body.(*ospf.RouterLSA)
		if !linksBack(body, v) {
			return // RFC 2328 §16.1 step 2: require the link to be bidirectional
		}
		next = &spfVertex{isRouter: true, routerID: l.router, lsa: lsa}
	} else {
		lsa := r.findNetworkLSA(a, l.netLSID)
		if lsa == nil {
			return
		}
		next = &spfVertex{netLSID: l.netLSID, netMask: lsa.Body.(*ospf.NetworkLSA).NetworkMask, lsa: lsa}
	}
	if _, done := settled[next.key()]; done {
		return
	}

	newCost := v.cost + l.metric
	nh := v.nextHops
	if v.key() == (&spfVertex{isRouter: true, routerID: r.id}).key() {
		// Direct neighbor of the root: the next hop is this link itself.
		nh = []NextHop{{PhyInt: l.phyint, Gateway: net.IP(ospf.RouterID(l.ifaceAddr).IP())}}
	}
	next.cost = newCost
	next.nextHops = mergeNextHops(nh, nil)
	heap.Push(cand, next)
}

// linksBack reports whether router-LSA body lists a link back toward v,
// the bidirectionality check RFC 2328 §16.1 step 2 requires before trusting
// an advertised link.
func linksBack(body *ospf.RouterLSA, v *spfVertex) bool {
	for _, l := range body.Links {
		if v.isRouter && (l.Type == ospf.LinkPointToPoint || l.Type == ospf.LinkVirtual) && ospf.RouterID(l.ID) == v.routerID {
			return true
		}
		if !v.isRouter && l.Type == ospf.LinkTransit && l.ID == v.netLSID {
			return true
		}
	}
	return false
}

func (r *Router) findRouterLSA(a *Area, id ospf.RouterID) *ospf.LSA {
	lsa, ok := a.LSDB.Lookup(ospf.LSAKey{Type: ospf.LSARouter, LSID: uint32(id), AdvRouter: id})
	if !ok {
		return nil
	}
	return lsa
}

func (r *Router) findNetworkLSA(a *Area, lsid uint32) *ospf.LSA {
	for _, lsa := range a.LSDB.All() {
		if lsa.Header.Type == ospf.LSANetwork && lsa.Header.LSID == lsid {
			return lsa
		}
	}
	return nil
}

// mergeNextHops unions two equal-cost next-hop sets, capping at
// maxEqualCostPaths.
func mergeNextHops(a, b []NextHop) []NextHop {
	out := append([]NextHop{}, a...)
	for _, nh := range b {
		dup := false
		for _, have := range out {
			if have.PhyInt == nh.PhyInt && have.Gateway.Equal(nh.Gateway) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, nh)
		}
	}
	if len(out) > maxEqualCostPaths {
		out = out[:maxEqualCostPaths]
	}
	return out
}

const maxEqualCostPaths = 16

func buildIntraAreaRoutes(settled map[uint64]*spfVertex) map[string]*RouteEntry {
	out := map[string]*RouteEntry{}
	add := func(dest Destination, cost uint32, nextHops []NextHop) {
		key := dest.key()
		existing, ok := out[key]
		switch {
		case !ok || cost < existing.Cost:
			out[key] = &RouteEntry{Dest: dest, PathType: PathIntraArea, Cost: cost, NextHops: nextHops}
		case cost == existing.Cost:
			existing.NextHops = mergeNextHops(existing.NextHops, nextHops)
		}
	}

	for _, v := range settled {
		if !v.isRouter {
			netLSA := v.lsa.Body.(*ospf.NetworkLSA)
			dest := Destination{
				Net:  net.IP(ospf.RouterID(v.netLSID & v.netMask).IP()),
				Mask: net.IP(ospf.RouterID(netLSA.NetworkMask).IP()),
			}
			add(dest, v.cost, v.nextHops)
			continue
		}

		// A host route per reachable router; summary and AS-external
		// resolution walks these to find the cost toward an ABR/ASBR
		// (RFC 2328 §16.1 step 3, §16.2).
		hostKey := Destination{Net: v.routerID.IP(), Mask: net.IPv4(255, 255, 255, 255)}
		add(hostKey, v.cost, v.nextHops)
		if e, ok := out[hostKey.key()]; ok {
			e.routerHost = true
		}

		if v.lsa == nil {
			continue
		}
		body, ok := v.lsa.Body.(*ospf.RouterLSA)
		if !ok {
			continue
		}
		for _, l := range body.Links {
			if l.Type != ospf.LinkStub {
				continue
			}
			dest := Destination{
				Net:  net.IP(ospf.RouterID(l.ID).IP()),
				Mask: net.IP(ospf.RouterID(l.Data).IP()),
			}
			add(dest, v.cost+uint32(l.Metric), v.nextHops)
		}
	}
	return out
}

func areaHasTransitVL(settled map[uint64]*spfVertex, a *Area) bool {
	for _, ifc := range a.Interfaces() {
		if ifc.Type == IfaceVirtualLink {
			if v, ok := settled[uint64(*ifc.VirtualPeer)]; ok && v.isRouter {
				return true
			}
		}
	}
	return false
}

// applySummaryLSAs walks the area's summary- and ASBR-summary-LSAs to
// extend intra-area routes with inter-area reachability (RFC 2328 §16.2),
// only considering summaries from routers this area's SPF reached.
func (r *Router) applySummaryLSAs(a *Area) {
	for _, lsa := range a.LSDB.All() {
		if lsa.Header.Type != ospf.LSASummary && lsa.Header.Type != ospf.LSAASBRSummary {
			continue
		}
		if lsa.Header.AdvRouter == r.id {
			continue // never install a route learned from our own origination
		}
		abr := a.spfRoutes[Destination{Net: lsa.Header.AdvRouter.IP(), Mask: net.IPv4(255, 255, 255, 255)}.key()]
		if abr == nil {
			abr = findRouterVertexRoute(a, lsa.Header.AdvRouter)
		}
		if abr == nil {
			continue
		}
		body := lsa.Body.(*ospf.SummaryLSA)
		cost := abr.Cost + (body.Metric &^ 0)
		dest := Destination{Net: net.IP(ospf.RouterID(lsa.Header.LSID).IP()), Mask: net.IP(ospf.RouterID(body.NetworkMask).IP())}
		existing, ok := a.spfRoutes[dest.key()]
		if ok && existing.PathType == PathIntraArea {
			continue // intra-area always wins over inter-area for the same destination
		}
		if !ok || cost < existing.Cost {
			a.spfRoutes[dest.key()] = &RouteEntry{Dest: dest, PathType: PathInterArea, Cost: cost, Area: a.ID, NextHops: abr.NextHops}
		}
	}
}

func findRouterVertexRoute(a *Area, id ospf.RouterID) *RouteEntry {
	key := Destination{Net: id.IP(), Mask: net.IPv4(255, 255, 255, 255)}.key()
	return a.spfRoutes[key]
}

// recomputeRoutingTable merges every area's intra/inter-area routes and the
// AS-external routes into the router's single best-match routing table,
// applying RFC 2328 §11's
// preference order: intra-area, then inter-area, then external type-1, then
// external type-2; ties broken by lowest cost, then by longest prefix at
// lookup time.
func (r *Router) recomputeRoutingTable() {
	merged := map[string]*RouteEntry{}
	for _, a := range r.areas {
		for k, route := range a.spfRoutes {
			better, ok := merged[k]
			if !ok || routeBeats(route, better) {
				merged[k] = route
			}
		}
	}
	r.applyExternalRoutes(merged)

	for k, route := range merged {
		prior := r.routes[k]
		r.installRoute(route, prior)
	}
	for k, prior := range r.routes {
		if _, ok := merged[k]; !ok {
			r.withdrawRoute(prior)
		}
	}
	r.routes = merged
}

// routeBeats reports whether a is strictly preferred over b per RFC 2328
// §11's path-type ordering, then (between type-2 externals) the type-2
// metric, then cost.
func routeBeats(a, b *RouteEntry) bool {
	if a.PathType != b.PathType {
		return a.PathType < b.PathType
	}
	if a.PathType == PathType2External && a.Type2Cost != b.Type2Cost {
		return a.Type2Cost < b.Type2Cost
	}
	return a.Cost < b.Cost
}
