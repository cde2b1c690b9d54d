package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/platform"
)

// groupMembership tracks which multicast groups have directly attached
// members on which interfaces, learned from IGMP join/leave indications
// (RFC 1584 §2.1). It feeds both group-membership-LSA origination and the
// downstream half of the forwarding-cache computation.
type groupMembership struct {
	// members maps group address -> set of phyints with local members.
	members map[string]map[int]bool
}

func newGroupMembership() *groupMembership {
	return &groupMembership{members: map[string]map[int]bool{}}
}

func (g *groupMembership) join(group net.IP, phyint int) bool {
	key := group.String()
	if g.members[key] == nil {
		g.members[key] = map[int]bool{}
	}
	if g.members[key][phyint] {
		return false
	}
	g.members[key][phyint] = true
	return true
}

func (g *groupMembership) leave(group net.IP, phyint int) bool {
	key := group.String()
	set, ok := g.members[key]
	if !ok || !set[phyint] {
		return false
	}
	delete(set, phyint)
	if len(set) == 0 {
		delete(g.members, key)
	}
	return true
}

func (g *groupMembership) interfacesFor(group net.IP) []int {
	var out []int
	for phyint := range g.members[group.String()] {
		out = append(out, phyint)
	}
	return out
}

// JoinIndication is the platform's report that an IGMP membership report
// arrived for group on phyint: record the
// local member and re-originate the group-membership-LSA so the rest of the
// MOSPF domain learns about it.
func (r *Router) JoinIndication(group net.IP, phyint int) {
	if !r.groups.join(group, phyint) {
		return
	}
	r.originateGroupMembershipLSA(group)
	r.invalidateMcacheForGroup(group)
}

// LeaveIndication is the inverse: the last member on phyint left group.
func (r *Router) LeaveIndication(group net.IP, phyint int) {
	if !r.groups.leave(group, phyint) {
		return
	}
	r.originateGroupMembershipLSA(group)
	r.invalidateMcacheForGroup(group)
}

// originateGroupMembershipLSA rebuilds the type-6 LSA for group in every
// area with a member-carrying interface, or flushes it where the last
// member departed (RFC 1584 §10). The LS-ID carries the group address; each
// link names a vertex (this router, or a transit network this router is DR
// for) that has attached members.
func (r *Router) originateGroupMembershipLSA(group net.IP) {
	groupID := ipToUint32(group)
	for _, a := range r.areas {
		var links []ospf.RouterLink
		for _, phyint := range r.groups.interfacesFor(group) {
			ifc, ok := r.ifaces[phyint]
			if !ok || ifc.Area != a {
				continue
			}
			if ifc.State == IfaceDR {
				links = append(links, ospf.RouterLink{Type: ospf.LinkTransit, ID: networkLSAID(ifc)})
			} else {
				links = append(links, ospf.RouterLink{Type: ospf.LinkStub, ID: uint32(r.id)})
			}
		}

		key := ospf.LSAKey{Type: ospf.LSAGroupMember, LSID: groupID, AdvRouter: r.id}
		if len(links) == 0 {
			if lsa, ok := a.LSDB.Lookup(key); ok && lsa.Header.AgeValue() < ospf.MaxAge {
				r.flushLSA(a, lsa)
			}
			continue
		}
		lsa := &ospf.LSA{
			Header: ospf.LSAHeader{Type: ospf.LSAGroupMember, LSID: groupID, AdvRouter: r.id, Options: ospf.OptionMC},
			Body:   &ospf.GroupMembershipLSA{Links: links},
		}
		r.installSelfOriginated(a, lsa)
	}
}

// MCLookup returns (building if necessary) the multicast forwarding cache
// entry for (source, group), the engine's half of the MOSPF datapath.
// A negative entry - no upstream, no downstream -
// is cached too, so repeated datagrams from an unreachable source don't
// re-run the computation each time.
func (r *Router) MCLookup(source, group net.IP) *platform.MulticastCacheEntry {
	key := mcacheKey{source: source.String(), group: group.String()}
	if e, ok := r.mcache[key]; ok {
		return e
	}
	e := r.buildMcacheEntry(source, group)
	r.mcache[key] = e
	if err := r.platform.AddMcache(source, group, *e); err != nil {
		r.log.Error("failed to install multicast cache entry", "source", source, "group", group, "error", err)
	}
	return e
}

// buildMcacheEntry runs the RFC 1584 §12 shortest-path computation rooted
// at the source network: the upstream interface is the one the unicast
// best-match toward the source uses (reverse-path forwarding), and the
// downstream set is every other interface with local members plus every
// neighbor whose group-membership-LSA claims members for the group.
func (r *Router) buildMcacheEntry(source, group net.IP) *platform.MulticastCacheEntry {
	entry := &platform.MulticastCacheEntry{Source: source, Group: group}

	toSource := r.longestMatchInstalled(source)
	if toSource == nil {
		return entry // source unreachable: negative entry
	}
	upstream := map[int]bool{}
	for _, nh := range toSource.NextHops {
		upstream[nh.PhyInt] = true
		entry.Upstream = append(entry.Upstream, nh.PhyInt)
	}

	seen := map[int]bool{}
	for _, phyint := range r.groups.interfacesFor(group) {
		if upstream[phyint] || seen[phyint] {
			continue
		}
		seen[phyint] = true
		entry.Downstream = append(entry.Downstream, platform.MulticastCacheDownstream{
			PhyInt: phyint, TTLThreshold: 1,
		})
	}

	groupID := ipToUint32(group)
	for _, a := range r.areas {
		for _, lsa := range a.LSDB.All() {
			if lsa.Header.Type != ospf.LSAGroupMember || lsa.Header.LSID != groupID {
				continue
			}
			if lsa.Header.AdvRouter == r.id {
				continue
			}
			nbr := r.findNeighbor(lsa.Header.AdvRouter)
			if nbr == nil || nbr.State != NbrFull {
				continue
			}
			phyint := nbr.Iface.PhyInt
			if upstream[phyint] || seen[phyint] {
				continue
			}
			seen[phyint] = true
			entry.Downstream = append(entry.Downstream, platform.MulticastCacheDownstream{
				PhyInt: phyint, NeighborAddr: nbr.Address, TTLThreshold: 1,
			})
		}
	}
	return entry
}

// longestMatchInstalled is best-match over the router's installed routing
// table (as opposed to longestMatch, which looks at per-area SPF output
// mid-computation).
func (r *Router) longestMatchInstalled(ip net.IP) *RouteEntry {
	var best *RouteEntry
	var bestLen int
	for _, route := range r.routes {
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
	return best
}

func (r *Router) findNeighbor(id ospf.RouterID) *Neighbor {
	for _, ifc := range r.ifaces {
		if nbr, ok := ifc.NeighborByID(id); ok {
			return nbr
		}
	}
	return nil
}

// invalidateMcache drops every cached forwarding entry whenever any
// underlying LSA changes (RFC 1584 §12.1). Entries rebuild lazily on the
// next lookup.
func (r *Router) invalidateMcache() {
	for key, e := range r.mcache {
		if err := r.platform.DelMcache(e.Source, e.Group); err != nil {
			r.log.Debug("failed to remove multicast cache entry", "source", e.Source, "group", e.Group, "error", err)
		}
		delete(r.mcache, key)
	}
}

func (r *Router) invalidateMcacheForGroup(group net.IP) {
	gk := group.String()
	for key, e := range r.mcache {
		if key.group != gk {
			continue
		}
		if err := r.platform.DelMcache(e.Source, e.Group); err != nil {
			r.log.Debug("failed to remove multicast cache entry", "source", e.Source, "group", e.Group, "error", err)
		}
		delete(r.mcache, key)
	}
}
