package engine

import (
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/platform"
)

// hitlessState tracks the Restarting role of RFC 3623 graceful restart:
// while active, SPF and routing-table installation are
// frozen so the pre-restart multi-path decisions remain live in the kernel.
// The Helper role is tracked per-neighbor instead, in Neighbor.restartHelper.
type hitlessState struct {
	restarting  bool
	gracePeriod uint32
	graceStart  Seconds
	graceLSAKey ospf.LSAKey
}

// helperState is carried on a Neighbor while this router is helping it
// through a graceful restart: it records the router-LSA link that neighbor
// contributed at the moment helper mode began. The recorded link is not
// used when router-LSAs are built; they reflect the current adjacencies.
type helperState struct {
	gracePeriod     uint32
	start           Seconds
	frozenAdjacency ospf.RouterLink
}

func newHitlessState() *hitlessState {
	return &hitlessState{}
}

// BeginHitlessRestart implements the engine's `hitless_restart(grace_seconds,
// helper_mode)` indication: originate a grace-LSA, freeze SPF
// and route installation, and ask the platform to persist what's needed to
// rebuild adjacencies across the impending process restart.
func (r *Router) BeginHitlessRestart(graceSeconds uint32) {
	r.hitless.restarting = true
	r.hitless.gracePeriod = graceSeconds
	r.hitless.graceStart = r.now

	lsa := r.originateGraceLSA(graceSeconds)
	r.hitless.graceLSAKey = lsa.Header.Key()

	var seqs []platform.InterfaceMD5Seq
	for _, ifc := range r.ifaces {
		if seq := ifc.AuthKeys.CurrentSequence(); seq != 0 {
			if key, ok := ifc.AuthKeys.ActiveGenerateKey(int64(r.now)); ok {
				seqs = append(seqs, platform.InterfaceMD5Seq{PhyInt: ifc.PhyInt, KeyID: key.ID, SequenceNum: seq})
			}
		}
	}
	if err := r.platform.StoreHitlessParms(graceSeconds, seqs); err != nil {
		r.log.Error("failed to persist hitless-restart parameters", "error", err)
	}
}

// originateGraceLSA builds and floods the opaque grace-LSA (RFC 3623 §3,
// LSAOpaqueLink scope) announcing the restart.
func (r *Router) originateGraceLSA(graceSeconds uint32) *ospf.LSA {
	var ifaceAddr uint32
	for _, ifc := range r.ifaces {
		ifaceAddr = ifc.AddrUint32()
		break
	}
	body := ospf.NewGraceLSA(graceSeconds, ospf.RestartReasonSoftwareRestart, ifaceAddr)
	lsa := &ospf.LSA{
		Header: ospf.LSAHeader{
			Type:      ospf.LSAOpaqueLink,
			LSID:      ospf.LSIDFromOpaque(ospf.OpaqueTypeGraceLSA, 0),
			AdvRouter: r.id,
		},
		Body: body,
	}
	r.installSelfOriginated(r.anyArea(), lsa)
	return lsa
}

// EndHitlessRestart flushes the grace-LSA (sets it to MaxAge and refloods)
// and resumes normal SPF/route installation.
func (r *Router) EndHitlessRestart() {
	if !r.hitless.restarting {
		return
	}
	r.hitless.restarting = false
	if a := r.anyArea(); a != nil {
		if lsa, ok := a.LSDB.Lookup(r.hitless.graceLSAKey); ok {
			r.flushLSA(a, lsa)
		}
	}
	for _, a := range r.areas {
		r.RunSPF(a)
	}
}

// ReceiveGraceLSA implements the Helper role's entry point: accept a
// neighbor's grace announcement and record its current router-LSA link
// (see helperState; the link is not reasserted in later router-LSAs).
func (r *Router) ReceiveGraceLSA(nbr *Neighbor, graceSeconds uint32) {
	h := &helperState{gracePeriod: graceSeconds, start: r.now}
	if rlsa := r.findRouterLSA(nbr.Iface.Area, r.id); rlsa != nil {
		body := rlsa.Body.(*ospf.RouterLSA)
		for _, l := range body.Links {
			if ospf.RouterID(l.ID) == nbr.RouterID {
				h.frozenAdjacency = l
			}
		}
	}
	nbr.restartHelper = h
	r.log.Info("entering hitless-restart helper mode", "neighbor", nbr.RouterID.String(), "grace_seconds", graceSeconds)
}

// ExitHelperMode stops helping nbr. It is invoked when nbr's grace period
// elapses, when nbr's flushed grace-LSA arrives, or when the adjacency with
// nbr reaches Full; other topology changes do not end helper mode.
func (r *Router) ExitHelperMode(nbr *Neighbor) {
	nbr.restartHelper = nil
}

// IsHelping reports whether the router is currently in helper mode for nbr.
func (r *Router) IsHelping(nbr *Neighbor) bool {
	return nbr.restartHelper != nil
}

// sweepHitlessTimers expires grace periods whose deadline has passed: the
// router's own restart (returns to normal operation) and any helper-mode
// entries being tracked for neighbors.
func (r *Router) sweepHitlessTimers() {
	if r.hitless.restarting && r.now-r.hitless.graceStart >= Seconds(r.hitless.gracePeriod) {
		r.EndHitlessRestart()
	}
	for _, ifc := range r.ifaces {
		for _, nbr := range ifc.Neighbors() {
			if h := nbr.restartHelper; h != nil && r.now-h.start >= Seconds(h.gracePeriod) {
				r.ExitHelperMode(nbr)
			}
		}
	}
}

func (r *Router) anyArea() *Area {
	for _, a := range r.areas {
		return a
	}
	return nil
}
