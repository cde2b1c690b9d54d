package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/auth"
)

// configTxn accumulates the set of configuration keys reasserted during one
// cfgStart/cfgDone bracket, so cfgDone can remove what was previously
// configured but not mentioned again - the same "reconcile by diffing a
// seen-set" shape as KeyRing.Prune, applied one level up. Every mutator
// records its key here, but cfgDone prunes only interfaces, virtual links,
// areas and external routes; neighbors, ranges, hosts and authentication
// keys that are not reasserted stay configured.
type configTxn struct {
	areas     map[ospf.AreaID]bool
	ifaces    map[int]bool
	nbrs      map[ifaceNbrKey]bool
	ranges    map[rangeKey]bool
	hosts     map[string]bool
	vlinks    map[ospf.RouterID]bool
	extRoutes map[string]bool
	authKeys  map[ifaceKeyKey]bool
}

type ifaceNbrKey struct {
	phyint int
	router ospf.RouterID
}

type rangeKey struct {
	area ospf.AreaID
	net  string
}

type ifaceKeyKey struct {
	phyint int
	keyID  uint8
}

// CfgStart opens a configuration transaction. Every cfg*
// mutator must be called between a CfgStart/CfgDone pair; CfgDone removes
// the interfaces, virtual links, areas and external routes configured before
// the transaction and not reasserted in it (see configTxn).
func (r *Router) CfgStart() {
	r.cfg = &configTxn{
		areas:     map[ospf.AreaID]bool{},
		ifaces:    map[int]bool{},
		nbrs:      map[ifaceNbrKey]bool{},
		ranges:    map[rangeKey]bool{},
		hosts:     map[string]bool{},
		vlinks:    map[ospf.RouterID]bool{},
		extRoutes: map[string]bool{},
		authKeys:  map[ifaceKeyKey]bool{},
	}
}

// CfgDone closes the transaction opened by CfgStart, pruning interfaces,
// virtual links, areas left without interfaces, and external routes not
// reasserted since, and re-originates router-LSAs and schedules SPF.
func (r *Router) CfgDone() {
	if r.cfg == nil {
		return
	}
	for id, ifc := range r.ifaces {
		if ifc.VirtualPeer != nil {
			if !r.cfg.vlinks[*ifc.VirtualPeer] {
				r.removeInterface(ifc)
			}
		} else if !r.cfg.ifaces[id] {
			r.removeInterface(ifc)
		}
	}
	for id, a := range r.areas {
		if !r.cfg.areas[id] && len(a.interfaces) == 0 {
			delete(r.areas, id)
		}
	}
	for key, route := range r.externalRoutes {
		if !r.cfg.extRoutes[key] {
			r.withdrawASExternal(route.Dest)
			delete(r.externalRoutes, key)
		}
	}
	r.cfg = nil
	for _, a := range r.areas {
		r.originateRouterLSA(a)
	}
	r.scheduleSPF()
}

// CfgOspf sets the process-wide router ID. ASBR status is not set here: it
// follows from whether any external routes are configured (CfgExRt).
func (r *Router) CfgOspf(id ospf.RouterID) {
	r.id = id
}

// CfgArea declares (or updates) one area's stub-ness and default cost.
func (r *Router) CfgArea(id ospf.AreaID, stub bool, stubDefaultCost uint32) *Area {
	a := r.areaOrCreate(id)
	a.Stub = stub
	a.StubDefaultCost = stubDefaultCost
	if r.cfg != nil {
		r.cfg.areas[id] = true
	}
	return a
}

// CfgIfc declares (or updates) a physical interface and attaches it to area.
// Re-attaching an existing interface to a different area is treated as
// delete-then-recreate so its neighbors/LSDB state can't straddle areas.
func (r *Router) CfgIfc(phyint int, area ospf.AreaID, addr, mask net.IP, typ IfaceType, priority uint8, cost uint16, helloInterval uint16, deadInterval uint32) *Interface {
	a := r.areaOrCreate(area)
	ifc, exists := r.ifaces[phyint]
	if exists && ifc.Area.ID != area {
		r.removeInterface(ifc)
		exists = false
	}
	if !exists {
		ifc = NewInterface(phyint, a, typ)
		r.ifaces[phyint] = ifc
		a.interfaces[phyint] = ifc
	}
	ifc.Addr = addr
	ifc.Mask = mask
	ifc.Type = typ
	ifc.Priority = priority
	ifc.Cost = cost
	ifc.HelloInterval = helloInterval
	ifc.RouterDeadInterval = deadInterval

	if r.cfg != nil {
		r.cfg.ifaces[phyint] = true
	}
	if ifc.State == IfaceDown {
		r.interfaceUp(ifc)
	}
	return ifc
}

// CfgNbr statically configures a neighbor (required on NBMA/point-to-
// multipoint interfaces, which have no broadcast-discovered neighbors).
func (r *Router) CfgNbr(phyint int, addr net.IP, routerID ospf.RouterID, priority uint8) {
	ifc, ok := r.ifaces[phyint]
	if !ok {
		return
	}
	nbr, ok := ifc.neighbors[routerID]
	if !ok {
		nbr = NewNeighbor(routerID, addr, ifc)
		ifc.neighbors[routerID] = nbr
	}
	nbr.Priority = priority
	if r.cfg != nil {
		r.cfg.nbrs[ifaceNbrKey{phyint, routerID}] = true
	}
}

// CfgRnge declares an area address range used for inter-area summarization
// at an ABR (RFC 2328 §12.4.3); net/mask subsumed networks are summarized as
// one LSA at cost max(component costs) instead of individually, unless
// suppress is set in which case nothing is advertised for it at all.
func (r *Router) CfgRnge(area ospf.AreaID, netw, mask net.IP, suppress bool) {
	a := r.areaOrCreate(area)
	if a.ranges == nil {
		a.ranges = map[string]*addressRange{}
	}
	key := netw.String() + "/" + mask.String()
	a.ranges[key] = &addressRange{net: netw, mask: mask, suppress: suppress}
	if r.cfg != nil {
		r.cfg.ranges[rangeKey{area, key}] = true
	}
}

// addressRange is one configured area range.
type addressRange struct {
	net      net.IP
	mask     net.IP
	suppress bool
}

// CfgHost declares a host route to be originated directly by this router as
// a stub link in its own router-LSA (RFC 2328 §12.4.1's "host route").
func (r *Router) CfgHost(addr net.IP, cost uint16, area ospf.AreaID) {
	a := r.areaOrCreate(area)
	if a.hosts == nil {
		a.hosts = map[string]hostRoute{}
	}
	a.hosts[addr.String()] = hostRoute{addr: addr, cost: cost}
	if r.cfg != nil {
		r.cfg.hosts[addr.String()] = true
	}
}

type hostRoute struct {
	addr net.IP
	cost uint16
}

// CfgVL configures a virtual link to peer through transitArea (RFC 2328
// §15), modeled internally as an Interface of type IfaceVirtualLink.
func (r *Router) CfgVL(peer ospf.RouterID, transitArea ospf.AreaID, helloInterval uint16, deadInterval uint32) *Interface {
	phyint := virtualLinkPhyint(peer)
	backbone := r.areaOrCreate(ospf.Backbone)
	ifc, exists := r.ifaces[phyint]
	if !exists {
		ifc = NewInterface(phyint, backbone, IfaceVirtualLink)
		r.ifaces[phyint] = ifc
		backbone.interfaces[phyint] = ifc
	}
	ifc.VirtualPeer = &peer
	ifc.TransitArea = transitArea
	ifc.HelloInterval = helloInterval
	ifc.RouterDeadInterval = deadInterval
	if r.cfg != nil {
		r.cfg.vlinks[peer] = true
	}
	return ifc
}

// virtualLinkPhyint maps a virtual link's peer router ID to a synthetic
// phyint namespace disjoint from real interface indices, so virtual links
// can share the Router.ifaces map without colliding with physical ones.
func virtualLinkPhyint(peer ospf.RouterID) int {
	return -int(peer) - 1
}

// CfgExRt installs or updates an externally redistributed route, causing an
// AS-external-LSA to be originated or refreshed for it.
func (r *Router) CfgExRt(dest Destination, metric uint32, type2 bool, fwdAddr net.IP, tag uint32) {
	key := dest.key()
	r.externalRoutes[key] = &ExternalRoute{Dest: dest, Metric: metric, Type2: type2, ForwardingAddress: fwdAddr, Tag: tag}
	if r.cfg != nil {
		r.cfg.extRoutes[key] = true
	}
	r.originateASExternal(key)
}

// CfgAuKey installs an authentication key on an interface.
func (r *Router) CfgAuKey(phyint int, k auth.Key) {
	ifc, ok := r.ifaces[phyint]
	if !ok {
		return
	}
	ifc.AuthKeys.Set(k)
	switch k.Type {
	case auth.TypeMD5:
		ifc.AuType = ospf.AuMD5
	case auth.TypeSimple:
		ifc.AuType = ospf.AuSimple
	}
	if r.cfg != nil {
		r.cfg.authKeys[ifaceKeyKey{phyint, k.ID}] = true
	}
}

// removeInterface tears down ifc: kills its neighbors, flushes any LSAs it
// alone justified, and detaches it from its area.
func (r *Router) removeInterface(ifc *Interface) {
	for _, nbr := range ifc.neighbors {
		r.fireNbrEvent(nbr, EvKillNbr)
	}
	ifc.helloTimer.Cancel()
	ifc.waitTimer.Cancel()
	ifc.ackTimer.Cancel()
	delete(ifc.Area.interfaces, ifc.PhyInt)
	delete(r.ifaces, ifc.PhyInt)
	ifc.State = IfaceDown
}
