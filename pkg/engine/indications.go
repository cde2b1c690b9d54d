package engine

import (
	"net"

	"github.com/ospfd/ospfd/pkg/engine/timers"
	"github.com/ospfd/ospfd/pkg/platform"
)

// This file carries the platform-to-engine indications:
// link state changes, remnant route reconciliation, kernel route deletions,
// and orderly shutdown. The exported Tick/Receive/TimeoutMs wrappers here
// are what pkg/sim/router and cmd/ospfd drive the engine through.

// Tick advances the engine's clock to now and fires due timers, then runs
// the aging and grace-period sweeps that are functions of elapsed time
// rather than of any single timer.
func (r *Router) Tick(now Seconds) {
	r.tick(now)
	r.sweepAging()
	r.sweepHitlessTimers()
	if r.overflow.active && r.overflow.ready(now) {
		r.exitOverflow()
	}
}

// Receive hands the engine one received IP datagram's OSPF payload.
func (r *Router) Receive(phyint int, src net.IP, pkt []byte) {
	r.receiveIPPacket(phyint, src, pkt)
}

// TimeoutMs reports milliseconds until the engine's next timer deadline.
func (r *Router) TimeoutMs() (int64, bool) { return r.timeoutMs() }

// Now returns the engine's current elapsed-time reading.
func (r *Router) Now() Seconds { return r.now }

// RestoreMD5Sequence seeds an interface's MD5 cryptographic sequence
// counter from a persisted hitless-restart value, so a rebuilt engine never
// regresses it. keyID is accepted for symmetry with the
// persisted record; the counter is ring-wide.
func (r *Router) RestoreMD5Sequence(phyint int, keyID uint8, seq uint32) {
	if ifc, ok := r.ifaces[phyint]; ok {
		ifc.AuthKeys.RestoreSequence(seq)
	}
}

// PhyUp is the platform's report that phyint gained link: bring the attached interface out of Down.
func (r *Router) PhyUp(phyint int) {
	ifc, ok := r.ifaces[phyint]
	if !ok || ifc.State != IfaceDown {
		return
	}
	r.log.Info("interface up", "phyint", phyint, "name", r.platform.PhyName(phyint))
	r.interfaceUp(ifc)
	r.originateRouterLSA(ifc.Area)
}

// PhyDown is the inverse: kill every neighbor on the interface and withdraw
// whatever its presence justified.
func (r *Router) PhyDown(phyint int) {
	ifc, ok := r.ifaces[phyint]
	if !ok || ifc.State == IfaceDown {
		return
	}
	r.log.Info("interface down", "phyint", phyint, "name", r.platform.PhyName(phyint))
	for _, nbr := range ifc.Neighbors() {
		r.fireNbrEvent(nbr, EvLLDown)
	}
	ifc.helloTimer.Cancel()
	ifc.waitTimer.Cancel()
	ifc.ackTimer.Cancel()
	ifc.State = IfaceDown
	ifc.DR = 0
	ifc.BDR = 0
	r.originateRouterLSA(ifc.Area)
	r.scheduleSPF()
}

// RemnantNotification receives the pre-existing kernel routes discovered at
// startup: any remnant the engine would not
// itself have installed is deleted so the kernel table converges on OSPF's
// view.
func (r *Router) RemnantNotification(remnants []platform.Remnant) {
	for _, rem := range remnants {
		key := Destination{Net: rem.Net.IP, Mask: net.IP(rem.Net.Mask)}.key()
		if _, ok := r.routes[key]; ok {
			continue
		}
		if err := r.platform.RouteDelete(rem.Net, rem.Paths); err != nil {
			r.log.Error("failed to delete remnant route", "dest", rem.Net.String(), "error", err)
		}
	}
}

// KrtDeleteNotification reports that the kernel deleted a route behind the
// engine's back; if the engine still wants it, reinstall it.
func (r *Router) KrtDeleteNotification(dest net.IPNet) {
	key := Destination{Net: dest.IP, Mask: net.IP(dest.Mask)}.key()
	route, ok := r.routes[key]
	if !ok {
		return
	}
	r.log.Info("reinstalling route deleted from kernel", "dest", dest.String())
	r.installRoute(route, nil)
}

// Shutdown begins an orderly exit: flush
// every self-originated LSA so neighbors stop routing through this box, then
// after delay seconds ask the platform to halt. delay 0 halts on the next
// tick.
func (r *Router) Shutdown(delay Seconds) {
	if r.shuttingDown {
		return
	}
	r.shuttingDown = true
	r.log.Info("shutting down", "delay_seconds", int64(delay))

	for _, a := range r.areas {
		for _, lsa := range a.LSDB.All() {
			if lsa.Header.AdvRouter == r.id {
				r.flushLSA(a, lsa)
			}
		}
	}
	for _, lsa := range r.asExternalDB.All() {
		if lsa.Header.AdvRouter == r.id {
			r.flushLSA(r.anyArea(), lsa)
		}
	}

	r.timers.After(r.nowMillis(), timers.Milliseconds(delay*1000), func(timers.Milliseconds) {
		r.platform.Halt(0, "ospf shutdown complete")
	})
}
