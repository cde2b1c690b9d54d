package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// originateSummaries runs the area-border summarization pass (RFC 2328
// §12.4.3): for every area this router borders, advertise the other areas'
// intra-area and inter-area routes into it as type-3 summary-LSAs, and every
// reachable ASBR as a type-4 ASBR-summary-LSA. Routes covered by a
// configured address range are collapsed into one LSA per range at the
// maximum component cost, or suppressed entirely when the range says so.
func (r *Router) originateSummaries() {
	if len(r.areas) < 2 {
		return // not an ABR, nothing to summarize
	}
	for _, into := range r.areas {
		wanted := r.buildSummariesInto(into)
		r.reconcileSummaries(into, wanted)
	}
}

// summaryCandidate is one (type, destination, cost) tuple the ABR wants
// advertised into an area.
type summaryCandidate struct {
	typ  ospf.LSAType
	lsid uint32
	mask uint32
	cost uint32
}

func (r *Router) buildSummariesInto(into *Area) map[ospf.LSAKey]summaryCandidate {
	wanted := map[ospf.LSAKey]summaryCandidate{}

	for _, from := range r.areas {
		if from == into {
			continue
		}
		collapsed := map[string]*summaryCandidate{}
		for _, route := range from.spfRoutes {
			if route.routerHost {
				continue
			}
			if route.PathType != PathIntraArea {
				// Inter-area routes are re-advertised only from the
				// backbone into non-backbone areas (RFC 2328 §12.4.3).
				if route.PathType != PathInterArea || from.ID != ospf.Backbone {
					continue
				}
			}
			if rng := from.rangeCovering(route.Dest); rng != nil {
				if rng.suppress {
					continue
				}
				key := rng.net.String() + "/" + rng.mask.String()
				c := collapsed[key]
				if c == nil {
					c = &summaryCandidate{
						typ:  ospf.LSASummary,
						lsid: ipToUint32(rng.net),
						mask: ipToUint32(rng.mask),
						cost: route.Cost,
					}
					collapsed[key] = c
				} else if route.Cost > c.cost {
					c.cost = route.Cost
				}
				continue
			}
			cand := summaryCandidate{
				typ:  ospf.LSASummary,
				lsid: ipToUint32(route.Dest.Net),
				mask: ipToUint32(route.Dest.Mask),
				cost: route.Cost,
			}
			wanted[ospf.LSAKey{Type: cand.typ, LSID: cand.lsid, AdvRouter: r.id}] = cand
		}
		for _, c := range collapsed {
			wanted[ospf.LSAKey{Type: c.typ, LSID: c.lsid, AdvRouter: r.id}] = *c
		}

		// ASBR reachability crosses area boundaries as type-4 summaries.
		if !into.Stub {
			for _, route := range from.asbrRoutes() {
				cand := summaryCandidate{
					typ:  ospf.LSAASBRSummary,
					lsid: ipToUint32(route.Dest.Net),
					mask: 0xffffffff,
					cost: route.Cost,
				}
				wanted[ospf.LSAKey{Type: cand.typ, LSID: cand.lsid, AdvRouter: r.id}] = cand
			}
		}
	}

	// A stub area gets a default summary instead of AS-external reachability
	// (RFC 2328 §12.4.3.1).
	if into.Stub {
		wanted[ospf.LSAKey{Type: ospf.LSASummary, LSID: 0, AdvRouter: r.id}] = summaryCandidate{
			typ: ospf.LSASummary, lsid: 0, mask: 0, cost: into.StubDefaultCost,
		}
	}
	return wanted
}

// reconcileSummaries diffs the wanted summary set against what into's LSDB
// currently carries from this router, re-originating what changed and
// flushing what is no longer justified.
func (r *Router) reconcileSummaries(into *Area, wanted map[ospf.LSAKey]summaryCandidate) {
	for key, cand := range wanted {
		cur, ok := into.LSDB.Lookup(key)
		if ok {
			body := cur.Body.(*ospf.SummaryLSA)
			if body.NetworkMask == cand.mask && body.Metric == cand.cost && cur.Header.AgeValue() < ospf.MaxAge {
				continue // unchanged, leave the installed instance alone
			}
		}
		lsa := &ospf.LSA{
			Header: ospf.LSAHeader{Type: cand.typ, LSID: cand.lsid, AdvRouter: r.id},
			Body:   &ospf.SummaryLSA{NetworkMask: cand.mask, Metric: cand.cost},
		}
		r.installSelfOriginated(into, lsa)
	}

	for _, lsa := range into.LSDB.All() {
		t := lsa.Header.Type
		if (t != ospf.LSASummary && t != ospf.LSAASBRSummary) || lsa.Header.AdvRouter != r.id {
			continue
		}
		if _, ok := wanted[lsa.Header.Key()]; !ok && lsa.Header.AgeValue() < ospf.MaxAge {
			r.flushLSA(into, lsa)
		}
	}
}

// rangeCovering returns the configured address range containing dest, if any.
func (a *Area) rangeCovering(dest Destination) *addressRange {
	for _, rng := range a.ranges {
		mask := net.IPMask(rng.mask.To4())
		covered := net.IPNet{IP: rng.net.Mask(mask), Mask: mask}
		if covered.Contains(dest.Net) {
			return rng
		}
	}
	return nil
}

// asbrRoutes returns the routes this area's SPF computed toward AS boundary
// routers, identified by the ASBoundary bit in their router-LSAs.
func (a *Area) asbrRoutes() []*RouteEntry {
	var out []*RouteEntry
	for _, lsa := range a.LSDB.All() {
		if lsa.Header.Type != ospf.LSARouter {
			continue
		}
		body, ok := lsa.Body.(*ospf.RouterLSA)
		if !ok || !body.ASBoundary {
			continue
		}
		if route := findRouterVertexRoute(a, lsa.Header.AdvRouter); route != nil {
			out = append(out, route)
		}
	}
	return out
}
