package engine

import (
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// interfaceUp brings ifc up (RFC 2328 §9.2): starts the Hello timer, and
// for point-to-point/point-to-multipoint/virtual-link types enters the
// point-to-point state; broadcast/NBMA segments enter Waiting to give the wait timer a
// chance to observe an existing DR before this router elects itself one.
func (r *Router) interfaceUp(ifc *Interface) {
	switch ifc.Type {
	case IfacePointToPoint, IfacePointToMultipoint, IfaceVirtualLink:
		ifc.State = IfacePointToPointState
	default:
		ifc.State = IfaceWaiting
		ifc.waitTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(ifc.RouterDeadInterval)*1000), func(timers.Milliseconds) {
			r.endWaitTimer(ifc)
		})
	}
	r.scheduleHello(ifc)
}

func (r *Router) nowMillis() timers.Milliseconds { return timers.Milliseconds(r.now * 1000) }

// scheduleHello arms ifc's recurring Hello timer.
func (r *Router) scheduleHello(ifc *Interface) {
	ifc.helloTimer.Cancel()
	var arm func()
	arm = func() {
		ifc.helloTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(ifc.HelloInterval)*1000), func(timers.Milliseconds) {
			r.sendHello(ifc, nil)
			arm()
		})
	}
	arm()
	r.sendHello(ifc, nil)
}

// endWaitTimer fires the BackupSeen/WaitTimer event (RFC 2328 §9.4): the
// interface concludes its wait period and runs DR election with whatever
// neighbor state it has observed so far.
func (r *Router) endWaitTimer(ifc *Interface) {
	if ifc.State != IfaceWaiting {
		return
	}
	r.electDR(ifc)
}

// scheduleDRElection re-runs DR election on ifc outside of the wait-timer
// path, for the BackupSeen/NeighborChange events RFC 2328 §9.4 defines
// (a neighbor was added/removed/changed priority or DR/BDR claim).
func (r *Router) scheduleDRElection(ifc *Interface) {
	if ifc.Type != IfaceBroadcast && ifc.Type != IfaceNBMA {
		return
	}
	if ifc.State == IfaceWaiting {
		return
	}
	r.electDR(ifc)
}

// drCandidate is one router eligible to be DR/BDR on a segment: this
// router itself, or a neighbor in state 2-Way or better with non-zero
// priority, together with the DR and BDR that router currently declares in
// its Hellos (RFC 2328 §9.4's input tuples).
type drCandidate struct {
	id       ospf.RouterID
	priority uint8
	claimDR  ospf.RouterID
	claimBDR ospf.RouterID
}

// declaresDR/declaresBDR report whether the candidate names itself in the
// corresponding Hello field.
func (c drCandidate) declaresDR() bool  { return c.claimDR == c.id }
func (c drCandidate) declaresBDR() bool { return c.claimDR != c.id && c.claimBDR == c.id }

// electDR runs RFC 2328 §9.4's DR/BDR election algorithm, driven by the
// DR/BDR each candidate declares about itself (recorded from its Hellos by
// receiveHello), not by this interface's previously committed view.
func (r *Router) electDR(ifc *Interface) {
	var candidates []drCandidate
	if ifc.Priority > 0 {
		candidates = append(candidates, drCandidate{
			id: r.id, priority: ifc.Priority, claimDR: ifc.DR, claimBDR: ifc.BDR,
		})
	}
	for _, n := range ifc.neighbors {
		if n.State < NbrTwoWay || n.Priority == 0 {
			continue
		}
		candidates = append(candidates, drCandidate{
			id: n.RouterID, priority: n.Priority, claimDR: n.DR, claimBDR: n.BDR,
		})
	}

	oldDR, oldBDR := ifc.DR, ifc.BDR

	elect := func() (ospf.RouterID, ospf.RouterID) {
		// Step 2: the BDR comes from candidates not declaring themselves DR,
		// preferring those declaring themselves BDR; ties break on priority,
		// then router ID.
		bdr, bdrFound := electOne(candidates,
			func(c drCandidate) bool { return c.declaresBDR() },
			func(c drCandidate) bool { return !c.declaresDR() })

		// Step 3: the DR comes from candidates declaring themselves DR. Absent
		// any, the BDR is promoted and the BDR slot re-elected without it.
		dr, drFound := electOne(candidates,
			func(c drCandidate) bool { return c.declaresDR() }, nil)
		if !drFound && bdrFound {
			dr = bdr
			bdr, bdrFound = electOne(candidates,
				func(c drCandidate) bool { return c.id != dr && c.declaresBDR() },
				func(c drCandidate) bool { return c.id != dr && !c.declaresDR() })
		}
		if !bdrFound {
			bdr = 0
		}
		return dr, bdr
	}
	dr, bdr := elect()

	// Step 4: if this router newly became, or stopped being, DR or BDR,
	// steps 2 and 3 run again with its own declarations set to the result.
	if ifc.Priority > 0 && ((dr == r.id) != (oldDR == r.id) || (bdr == r.id) != (oldBDR == r.id)) {
		candidates[0].claimDR, candidates[0].claimBDR = dr, bdr
		dr, bdr = elect()
	}

	ifc.DR = dr
	ifc.BDR = bdr

	if ifc.DR == r.id {
		ifc.State = IfaceDR
	} else if ifc.BDR == r.id {
		ifc.State = IfaceBackup
	} else if len(candidates) > 0 {
		ifc.State = IfaceDROther
	}

	if oldDR != ifc.DR || oldBDR != ifc.BDR {
		for _, n := range ifc.neighbors {
			if n.State >= NbrTwoWay {
				r.fireNbrEvent(n, EvAdjOK)
			}
		}
		r.scheduleSPF()
	}
}

// electOne picks the highest-(priority, router-ID) candidate satisfying
// prefer, falling back to the broader fallback filter when nothing matches.
// A nil fallback makes prefer the only filter.
func electOne(cands []drCandidate, prefer, fallback func(drCandidate) bool) (ospf.RouterID, bool) {
	pick := func(filter func(drCandidate) bool) (ospf.RouterID, bool) {
		var best drCandidate
		found := false
		for _, c := range cands {
			if !filter(c) {
				continue
			}
			if !found || c.priority > best.priority || (c.priority == best.priority && c.id > best.id) {
				best = c
				found = true
			}
		}
		return best.id, found
	}
	if id, ok := pick(prefer); ok {
		return id, true
	}
	if fallback == nil {
		return 0, false
	}
	return pick(fallback)
}
