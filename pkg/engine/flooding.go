package engine

import (
	"bytes"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// dbOf returns the LSDB an LSA of the given type is flooded within, per the
// flooding scope of its type: AS for 5/11, and the area's database for
// every other type, including link-scope opaque LSAs (type 9).
func (r *Router) dbOf(a *Area, t ospf.LSAType) *LSDB {
	switch t.Scope() {
	case ospf.ScopeAS:
		return r.asExternalDB
	default:
		return a.LSDB
	}
}

// installSelfOriginated assigns a fresh sequence number and age, computes
// the checksum, installs lsa into its scope's database, and floods it to
// every eligible neighbor (RFC 2328 §13.3). It is the single entry point
// every origination path (router-LSA refresh, grace-LSA, external
// redistribution,...) funnels through.
func (r *Router) installSelfOriginated(a *Area, lsa *ospf.LSA) {
	db := r.dbOf(a, lsa.Header.Type)
	if cur, ok := db.Lookup(lsa.Header.Key()); ok {
		lsa.Header.SequenceNumber = nextSequence(cur.Header.SequenceNumber)
	} else {
		lsa.Header.SequenceNumber = ospf.InitialSequenceNum
	}
	lsa.Header.Age = 0

	buf := &bytes.Buffer{}
	_ = lsa.Encode(buf) // fixes up Length/Checksum as a side effect

	db.Install(lsa, r.now, true)
	r.metrics.LSAOriginated(lsa.Header.Type.String())
	r.floodLSA(a, lsa, nil)
}

// nextSequence implements RFC 2328 §13.1's wraparound rule: when the
// sequence number would otherwise overflow, the LSA must first be flushed
// to MaxAge (by the caller, before re-origination resumes at
// InitialSequenceNum).
func nextSequence(cur int32) int32 {
	if cur >= ospf.MaxSequenceNum {
		return ospf.InitialSequenceNum
	}
	return cur + 1
}

// floodLSA implements RFC 2328 §13.3: add lsa to the retransmission list of
// every eligible neighbor on every interface within its scope, except the
// one it arrived on (from, nil for self-originated LSAs flooding for the
// first time).
func (r *Router) floodLSA(a *Area, lsa *ospf.LSA, from *Neighbor) {
	if r.opaqueNotify != nil {
		switch lsa.Header.Type {
		case ospf.LSAOpaqueLink, ospf.LSAOpaqueArea, ospf.LSAOpaqueAS:
			area := ospf.Backbone
			if a != nil {
				area = a.ID
			}
			r.opaqueNotify(area, lsa)
		}
	}
	scope := lsa.Header.Type.Scope()
	for _, candidateArea := range r.areasInScope(a, scope) {
		for _, ifc := range candidateArea.Interfaces() {
			if scope == ospf.ScopeLink && from != nil && from.Iface != ifc {
				continue
			}
			listed := false
			for _, nbr := range ifc.Neighbors() {
				if nbr == from {
					continue
				}
				if nbr.State < NbrExchange {
					continue
				}
				nbr.addRetransmit(lsa)
				r.armLSURetransmit(nbr)
				listed = true
			}
			if listed {
				r.transmitLSU(ifc, lsa)
			}
		}
	}
}

// transmitLSU floods one LSA out ifc immediately (RFC 2328 §13.3 step 5):
// multicast on broadcast segments, unicast per neighbor elsewhere.
func (r *Router) transmitLSU(ifc *Interface, lsa *ospf.LSA) {
	upd := &ospf.LinkStateUpdate{LSAs: []*ospf.LSA{lsa}}
	switch ifc.Type {
	case IfaceBroadcast:
		dst := AllSPFRouters
		if ifc.State == IfaceDROther {
			dst = AllDRouters
		}
		r.sendOSPF(ifc, ospf.PacketLSU, upd, dst)
	case IfacePointToPoint, IfaceVirtualLink:
		r.sendOSPF(ifc, ospf.PacketLSU, upd, nil)
	default: // NBMA, point-to-multipoint
		for _, nbr := range ifc.Neighbors() {
			if nbr.State >= NbrExchange {
				r.sendOSPF(ifc, ospf.PacketLSU, upd, nbr.Address)
			}
		}
	}
}

// armLSURetransmit (re)schedules nbr's link-state retransmission timer: any
// entry still on the retransmission list when it fires is resent unicast
// and the timer rearmed (RFC 2328 §13.3's per-neighbor RxmtInterval).
func (r *Router) armLSURetransmit(nbr *Neighbor) {
	nbr.lsuRxmtTimer.Cancel()
	nbr.lsuRxmtTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(nbr.Iface.RxmtInterval)*1000), func(timers.Milliseconds) {
		if nbr.State < NbrExchange || len(nbr.lsRetransmit) == 0 {
			return
		}
		upd := &ospf.LinkStateUpdate{}
		for _, lsa := range nbr.lsRetransmit {
			upd.LSAs = append(upd.LSAs, lsa)
		}
		r.sendOSPF(nbr.Iface, ospf.PacketLSU, upd, nbr.Address)
		r.armLSURetransmit(nbr)
	})
}

func (r *Router) areasInScope(a *Area, scope ospf.FloodingScope) []*Area {
	if scope != ospf.ScopeAS {
		return []*Area{a}
	}
	out := make([]*Area, 0, len(r.areas))
	for _, ar := range r.areas {
		if !ar.Stub {
			out = append(out, ar)
		}
	}
	return out
}

// ReceiveLSU processes one Link State Update from nbr (RFC 2328 §13):
// verify each LSA, decide whether it's newer/same/older than what is
// stored, and act accordingly (install+flood, acknowledge, or request a
// fresher copy via SeqNumberMismatch).
func (r *Router) ReceiveLSU(nbr *Neighbor, upd *ospf.LinkStateUpdate) {
	for _, lsa := range upd.LSAs {
		r.receiveOneLSA(nbr, lsa)
	}
}

func (r *Router) receiveOneLSA(nbr *Neighbor, lsa *ospf.LSA) {
	a := nbr.Iface.Area
	db := r.dbOf(a, lsa.Header.Type)

	if lsa.Header.AdvRouter == r.id {
		r.handleSelfOriginatedReceived(a, lsa)
		return
	}

	if lsa.Header.AgeValue() == ospf.MaxAge {
		if _, ok := db.Lookup(lsa.Header.Key()); !ok {
			r.sendDirectAck(nbr, lsa.Header)
			return
		}
	}

	if !db.IsNewer(&lsa.Header) {
		if db.Same(&lsa.Header) {
			nbr.removeFromRetransmission(lsa.Header.Key())
			if !nbr.Master {
				r.sendDirectAck(nbr, lsa.Header)
			}
			return
		}
		// Our copy is newer: if the neighbor's copy is also stale in its
		// own request list, this is the SeqNumberMismatch condition.
		if _, ok := nbr.requestListHas(lsa.Header.Key()); ok {
			r.fireNbrEvent(nbr, EvSeqNumberMismatch)
		}
		return
	}

	db.Install(lsa, r.now, false)
	r.floodLSA(a, lsa, nbr)
	nbr.removeFromRetransmission(lsa.Header.Key())
	r.satisfyRequest(nbr, lsa.Header.Key())
	r.queueDelayedAck(nbr, lsa.Header)

	if lsa.Header.Type == ospf.LSAOpaqueLink && lsa.Header.LSID>>24 == ospf.OpaqueTypeGraceLSA {
		if lsa.Header.AgeValue() >= ospf.MaxAge {
			// A flushed grace-LSA ends the neighbor's restart.
			if r.IsHelping(nbr) {
				r.ExitHelperMode(nbr)
			}
		} else if body, ok := lsa.Body.(*ospf.OpaqueLSA); ok {
			if period, ok := body.GracePeriod(); ok {
				r.ReceiveGraceLSA(nbr, period)
			}
		}
	}

	r.scheduleSPF()
}

// satisfyRequest drops key from nbr's link state request list; once the
// list empties during Loading, the adjacency completes (RFC 2328 §10.9).
func (r *Router) satisfyRequest(nbr *Neighbor, key ospf.LSAKey) {
	for i, e := range nbr.lsRequestList {
		if e.Type == key.Type && e.LSID == key.LSID && e.AdvRouter == key.AdvRouter {
			nbr.lsRequestList = append(nbr.lsRequestList[:i], nbr.lsRequestList[i+1:]...)
			break
		}
	}
	if len(nbr.lsRequestList) == 0 && nbr.State == NbrLoading {
		nbr.rxmtTimer.Cancel()
		r.fireNbrEvent(nbr, EvLoadingDone)
	}
}

// handleSelfOriginatedReceived implements RFC 2328 §13's special case: an
// LSA arrives whose advertising router is this router itself, usually
// because a neighbor restarted with a stale copy in its database. If it is
// newer than our own, re-originate with an incremented sequence number;
// otherwise flush it.
func (r *Router) handleSelfOriginatedReceived(a *Area, lsa *ospf.LSA) {
	db := r.dbOf(a, lsa.Header.Type)
	cur, ok := db.Lookup(lsa.Header.Key())
	if !ok {
		r.flushLSA(a, lsa)
		return
	}
	if lsa.Header.SequenceNumber > cur.Header.SequenceNumber {
		r.installSelfOriginated(a, cur)
	}
}

// flushLSA sets lsa's age to MaxAge and reinstalls/refloods it, the
// mechanism used both for explicit withdrawal (grace-LSA end, external
// route removed) and for MaxAge sweeps.
func (r *Router) flushLSA(a *Area, lsa *ospf.LSA) {
	lsa.Header.Age = ospf.MaxAge
	db := r.dbOf(a, lsa.Header.Type)
	db.Install(lsa, r.now, lsa.Header.AdvRouter == r.id)
	r.floodLSA(a, lsa, nil)
}

// scheduleSPF recomputes routes for every configured area.
// Coalescing multiple triggers within one tick into separate immediate runs
// is acceptable here since RunSPF is idempotent and cheap relative to a
// tick's packet-processing budget.
func (r *Router) scheduleSPF() {
	for _, a := range r.areas {
		r.RunSPF(a)
	}
	r.originateSummaries()
	r.invalidateMcache()
}

// sweepAging runs MaxAge and LSRefreshTime sweeps across every database the
// router owns.
func (r *Router) sweepAging() {
	for _, a := range r.areas {
		r.sweepAreaAging(a)
	}
	r.sweepASExternalAging()
}

func (r *Router) sweepAreaAging(a *Area) {
	for _, k := range a.LSDB.SweepRefresh(r.now) {
		if lsa, ok := a.LSDB.Lookup(k); ok {
			r.installSelfOriginated(a, lsa)
		}
	}
	r.sweepMaxAge(a, a.LSDB)
}

func (r *Router) sweepASExternalAging() {
	if !r.overflow.active {
		for _, k := range r.asExternalDB.SweepRefresh(r.now) {
			if lsa, ok := r.asExternalDB.Lookup(k); ok {
				r.installSelfOriginated(r.anyArea(), lsa)
			}
		}
	}
	r.sweepMaxAge(r.anyArea(), r.asExternalDB)
}

// sweepMaxAge drives each MaxAge LSA through its two-step exit: flood the
// flush once when the age cap is first reached, then delete from the
// database once no retransmission list still references it.
func (r *Router) sweepMaxAge(a *Area, db *LSDB) {
	for _, k := range db.SweepMaxAge(r.now) {
		lsa, ok := db.Lookup(k)
		if !ok || lsa.Header.IsDoNotAge() {
			continue
		}
		if lsa.Header.AgeValue() < ospf.MaxAge {
			// Aged out naturally: flood the MaxAge instance to start the
			// flush acknowledgement round.
			r.flushLSA(a, lsa)
			continue
		}
		if r.maxAgeRemovable(k) {
			db.Remove(k)
		}
	}
}

// maxAgeRemovable reports whether no neighbor's retransmission list still
// references k.
func (r *Router) maxAgeRemovable(k ospf.LSAKey) bool {
	for _, ifc := range r.ifaces {
		for _, nbr := range ifc.Neighbors() {
			if _, ok := nbr.lsRetransmit[k]; ok {
				return false
			}
		}
	}
	return true
}
