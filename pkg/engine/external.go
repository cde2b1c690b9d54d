package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// originateASExternal (re-)originates the type-5 AS-external LSA for the
// externally redistributed route stored under key, or withdraws it if the
// route was removed from r.externalRoutes.
func (r *Router) originateASExternal(key string) {
	route, ok := r.externalRoutes[key]
	if !ok {
		return
	}
	if r.overflow.active {
		r.log.Debug("suppressing AS-external origination, router in overflow", "dest", key)
		return
	}
	if r.overflow.limit > 0 && r.selfOriginatedExternals() >= r.overflow.limit {
		if _, have := r.asExternalDB.Lookup(ospf.LSAKey{Type: ospf.LSAASExternal, LSID: ipToUint32(route.Dest.Net), AdvRouter: r.id}); !have {
			// Originating this LSA would cross the ceiling: enter overflow
			// with the existing set intact.
			r.overflow.enter(r.now)
			r.log.Warn("AS-external LSA limit reached, entering overflow",
				"limit", r.overflow.limit, "dest", key)
			return
		}
	}

	var fwd uint32
	if route.ForwardingAddress != nil {
		fwd = ipToUint32(route.ForwardingAddress)
	}
	body := &ospf.ASExternalLSA{
		NetworkMask:       ipToUint32(route.Dest.Mask),
		ExternalType2:     route.Type2,
		Metric:            route.Metric,
		ForwardingAddress: fwd,
		ExternalRouteTag:  route.Tag,
	}
	lsa := &ospf.LSA{
		Header: ospf.LSAHeader{
			Type:      ospf.LSAASExternal,
			LSID:      ipToUint32(route.Dest.Net),
			AdvRouter: r.id,
		},
		Body: body,
	}
	r.installSelfOriginated(r.anyArea(), lsa)
	r.checkOverflow()
}

// selfOriginatedExternals counts the type-5 LSAs this router currently
// originates, the quantity bounded by the overflow ceiling.
func (r *Router) selfOriginatedExternals() int {
	n := 0
	for _, lsa := range r.asExternalDB.All() {
		if lsa.Header.AdvRouter == r.id && lsa.Header.AgeValue() < ospf.MaxAge {
			n++
		}
	}
	return n
}

// withdrawASExternal flushes the type-5 LSA for a route removed by CfgDone's
// reconciliation pass.
func (r *Router) withdrawASExternal(dest Destination) {
	key := ospf.LSAKey{Type: ospf.LSAASExternal, LSID: ipToUint32(dest.Net), AdvRouter: r.id}
	if lsa, ok := r.asExternalDB.Lookup(key); ok {
		r.flushLSA(r.anyArea(), lsa)
	}
}

// externalRouteFor computes the routing-table entry an AS-external LSA
// contributes (RFC 2328 §16.4): type-1 cost is cost-to-ASBR plus the
// advertised metric, type-2 cost is the advertised metric alone with
// cost-to-ASBR used only to break ties between type-2 candidates.
func (r *Router) externalRouteFor(lsa *ospf.LSA) *RouteEntry {
	body, ok := lsa.Body.(*ospf.ASExternalLSA)
	if !ok {
		return nil
	}
	asbr := lsa.Header.AdvRouter
	target := asbr.IP()
	if body.ForwardingAddress != 0 {
		target = ospf.RouterID(body.ForwardingAddress).IP()
	}
	toASBR := r.longestMatch(target)
	if toASBR == nil {
		return nil
	}

	dest := Destination{
		Net:  net.IP(ospf.RouterID(lsa.Header.LSID).IP()),
		Mask: net.IP(ospf.RouterID(body.NetworkMask).IP()),
	}
	if body.ExternalType2 {
		return &RouteEntry{
			Dest: dest, PathType: PathType2External,
			Cost: toASBR.Cost, Type2Cost: body.Metric,
			NextHops: toASBR.NextHops,
		}
	}
	return &RouteEntry{
		Dest: dest, PathType: PathType1External,
		Cost:     toASBR.Cost + body.Metric,
		NextHops: toASBR.NextHops,
	}
}

// longestMatch does a best-match lookup of ip across every area's
// intra/inter-area routes computed so far this SPF pass.
func (r *Router) longestMatch(ip net.IP) *RouteEntry {
	var best *RouteEntry
	var bestLen int
	for _, a := range r.areas {
		for _, route := range a.spfRoutes {
			mask := net.IPMask(route.Dest.Mask.To4())
			network := net.IPNet{IP: route.Dest.Net.Mask(mask), Mask: mask}
			if !network.Contains(ip) {
				continue
			}
			ones, _ := mask.Size()
			if best == nil || ones > bestLen {
				best, bestLen = route, ones
			}
		}
	}
	return best
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
