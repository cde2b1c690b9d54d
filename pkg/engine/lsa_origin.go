package engine

import (
	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// networkLSAID returns the LS-ID transit links and the network-LSA itself
// use to identify ifc's segment: the DR's own interface address (RFC 2328
// §12.1.4), or this router's own address as a fallback when the DR's address
// isn't yet known (e.g. the DR is this router).
func networkLSAID(ifc *Interface) uint32 {
	if ifc.DR == 0 {
		return ifc.AddrUint32()
	}
	if nbr, ok := ifc.NeighborByID(ifc.DR); ok {
		return ipToUint32(nbr.Address)
	}
	return ifc.AddrUint32()
}

// originateRouterLSA (re-)builds and floods this router's router-LSA for
// area, reflecting every link currently eligible to be advertised (RFC 2328
// §12.4.1).
func (r *Router) originateRouterLSA(a *Area) {
	body := RouterLSABuilder(r, a)
	lsa := &ospf.LSA{
		Header: ospf.LSAHeader{
			Type:      ospf.LSARouter,
			LSID:      uint32(r.id),
			AdvRouter: r.id,
		},
		Body: body,
	}
	r.installSelfOriginated(a, lsa)
}

// RouterLSABuilder is kept as a function value (not a method) so both
// originateRouterLSA and tests can construct a router-LSA body without a
// full install/flood side effect.
func RouterLSABuilder(r *Router, a *Area) *ospf.RouterLSA {
	body := &ospf.RouterLSA{
		AreaBorder: len(r.areas) > 1,
		ASBoundary: len(r.externalRoutes) > 0,
	}

	for _, ifc := range a.Interfaces() {
		switch ifc.Type {
		case IfacePointToPoint:
			if nbr := onlyFullNeighbor(ifc); nbr != nil {
				body.Links = append(body.Links, ospf.RouterLink{
					Type: ospf.LinkPointToPoint, ID: uint32(nbr.RouterID), Data: ifc.AddrUint32(), Metric: ifc.Cost,
				})
			}
			body.Links = append(body.Links, ospf.RouterLink{
				Type: ospf.LinkStub, ID: networkAddr(ifc), Data: ifc.NetworkMask(), Metric: ifc.Cost,
			})

		case IfaceVirtualLink:
			if nbr := onlyFullNeighbor(ifc); nbr != nil {
				body.Links = append(body.Links, ospf.RouterLink{
					Type: ospf.LinkVirtual, ID: uint32(nbr.RouterID), Data: ifc.AddrUint32(), Metric: ifc.Cost,
				})
			}

		case IfaceBroadcast, IfaceNBMA, IfacePointToMultipoint:
			if ifc.HasAnyFullNeighbor() || ifc.IsDROrBackup() {
				body.Links = append(body.Links, ospf.RouterLink{
					Type: ospf.LinkTransit, ID: networkLSAID(ifc), Data: ifc.AddrUint32(), Metric: ifc.Cost,
				})
			} else {
				body.Links = append(body.Links, ospf.RouterLink{
					Type: ospf.LinkStub, ID: networkAddr(ifc), Data: ifc.NetworkMask(), Metric: ifc.Cost,
				})
			}
		}
	}

	for _, h := range a.hosts {
		body.Links = append(body.Links, ospf.RouterLink{
			Type: ospf.LinkStub, ID: ipToUint32(h.addr), Data: 0xffffffff, Metric: h.cost,
		})
	}
	return body
}

func onlyFullNeighbor(ifc *Interface) *Neighbor {
	for _, n := range ifc.Neighbors() {
		if n.State == NbrFull {
			return n
		}
	}
	return nil
}

func networkAddr(ifc *Interface) uint32 {
	mask := ifc.NetworkMask()
	return ifc.AddrUint32() & mask
}

// HasAnyFullNeighbor reports whether ifc itself has a fully adjacent
// neighbor, the per-interface analogue of Area.HasAnyFullNeighbor.
func (ifc *Interface) HasAnyFullNeighbor() bool {
	return onlyFullNeighbor(ifc) != nil
}

// originateNetworkLSA (re-)builds and floods the network-LSA for the
// transit segment on ifc, listing every fully adjacent router including
// this one (RFC 2328 §12.4.2). Only called while this router is DR.
func (r *Router) originateNetworkLSA(ifc *Interface) {
	body := &ospf.NetworkLSA{NetworkMask: ifc.NetworkMask(), AttachedRouters: []ospf.RouterID{r.id}}
	for _, n := range ifc.Neighbors() {
		if n.State == NbrFull {
			body.AttachedRouters = append(body.AttachedRouters, n.RouterID)
		}
	}
	lsa := &ospf.LSA{
		Header: ospf.LSAHeader{
			Type:      ospf.LSANetwork,
			LSID:      networkLSAID(ifc),
			AdvRouter: r.id,
		},
		Body: body,
	}
	r.installSelfOriginated(ifc.Area, lsa)
}
