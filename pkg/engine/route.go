package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/platform"
)

// applyExternalRoutes extends merged with AS-external routes computed from
// the AS-external LSDB (RFC 2328 §16.4/§16.6), leaving intra/inter-area
// entries already present in merged untouched since they always outrank
// external routes in routeBeats.
func (r *Router) applyExternalRoutes(merged map[string]*RouteEntry) {
	for _, lsa := range r.asExternalDB.All() {
		if lsa.Header.AgeValue() >= ospf.MaxAge {
			continue // flushed instance awaiting acknowledgment
		}
		route := r.externalRouteFor(lsa)
		if route == nil {
			continue
		}
		existing, ok := merged[route.Dest.key()]
		if !ok || routeBeats(route, existing) {
			merged[route.Dest.key()] = route
		}
	}
}

// installRoute pushes route into the platform's kernel routing table if it
// changed since prior,
// comparing by next-hop set and cost rather than reinstalling unconditionally
// every SPF run.
func (r *Router) installRoute(route, prior *RouteEntry) {
	if route.routerHost {
		return // internal cost-resolution entry, kernel never sees it
	}
	if prior != nil && routesEqual(route, prior) {
		return
	}
	dest := net.IPNet{IP: route.Dest.Net, Mask: net.IPMask(route.Dest.Mask.To4())}
	mpath := make([]platform.MultiPath, 0, len(route.NextHops))
	for _, nh := range route.NextHops {
		mpath = append(mpath, platform.MultiPath{PhyInt: nh.PhyInt, Gateway: nh.Gateway, IfaceAddr: nh.IfaceAddr})
	}
	var old []platform.MultiPath
	if prior != nil {
		for _, nh := range prior.NextHops {
			old = append(old, platform.MultiPath{PhyInt: nh.PhyInt, Gateway: nh.Gateway, IfaceAddr: nh.IfaceAddr})
		}
	}
	if err := r.platform.RouteAdd(dest, mpath, old, false); err != nil {
		r.log.Warn("route install failed", "dest", route.Dest.key(), "error", err)
	}
}

// withdrawRoute removes a route no longer present in the computed table.
func (r *Router) withdrawRoute(prior *RouteEntry) {
	if prior.routerHost {
		return
	}
	dest := net.IPNet{IP: prior.Dest.Net, Mask: net.IPMask(prior.Dest.Mask.To4())}
	var old []platform.MultiPath
	for _, nh := range prior.NextHops {
		old = append(old, platform.MultiPath{PhyInt: nh.PhyInt, Gateway: nh.Gateway, IfaceAddr: nh.IfaceAddr})
	}
	if err := r.platform.RouteDelete(dest, old); err != nil {
		r.log.Warn("route withdraw failed", "dest", prior.Dest.key(), "error", err)
	}
}

func routesEqual(a, b *RouteEntry) bool {
	if a.PathType != b.PathType || a.Cost != b.Cost || len(a.NextHops) != len(b.NextHops) {
		return false
	}
	for i, nh := range a.NextHops {
		if nh.PhyInt != b.NextHops[i].PhyInt || !nh.Gateway.Equal(b.NextHops[i].Gateway) {
			return false
		}
	}
	return true
}
