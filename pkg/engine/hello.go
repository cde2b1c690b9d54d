package engine

import (
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// sendHello transmits a Hello packet out ifc (RFC 2328 §9.5). dst nil means
// "the interface's normal destination" (AllSPFRouters on broadcast/NBMA
// segments, the lone neighbor on point-to-point/virtual links); a non-nil
// dst is used for NBMA's initial unicast poll of a configured neighbor.
func (r *Router) sendHello(ifc *Interface, dst net.IP) {
	if ifc.State == IfaceDown {
		return
	}
	h := &ospf.Hello{
		NetworkMask:            net.IP(append([]byte(nil), ifc.Mask...)),
		HelloInterval:          ifc.HelloInterval,
		Options:                r.localOptions(),
		RouterPriority:         ifc.Priority,
		RouterDeadInterval:     ifc.RouterDeadInterval,
		DesignatedRouter:       ifc.DR.IP(),
		BackupDesignatedRouter: ifc.BDR.IP(),
	}
	for _, n := range ifc.neighbors {
		if n.State >= NbrInit {
			h.Neighbors = append(h.Neighbors, n.RouterID)
		}
	}

	if dst != nil {
		r.sendOSPF(ifc, ospf.PacketHello, h, dst)
		return
	}
	switch ifc.Type {
	case IfacePointToPoint, IfaceVirtualLink:
		r.sendOSPF(ifc, ospf.PacketHello, h, nil)
	case IfacePointToMultipoint:
		for _, n := range ifc.neighbors {
			r.sendOSPF(ifc, ospf.PacketHello, h, n.Address)
		}
	case IfaceNBMA:
		for _, n := range ifc.neighbors {
			if n.Priority > 0 || ifc.IsDROrBackup() || n.State >= NbrTwoWay {
				r.sendOSPF(ifc, ospf.PacketHello, h, n.Address)
			}
		}
	default: // broadcast
		r.sendOSPF(ifc, ospf.PacketHello, h, AllSPFRouters)
	}
}

// receiveHello implements RFC 2328 §10.5: validate the Hello against this
// interface's parameters, create the neighbor structure if new, fire the
// appropriate 1-Way/2-Way event, and re-run DR election if anything the
// neighbor reports about itself or the segment's DR/BDR changed.
func (r *Router) receiveHello(ifc *Interface, srcAddr net.IP, routerID ospf.RouterID, h *ospf.Hello) {
	if ifc.Type != IfaceVirtualLink && ifc.Type != IfacePointToPoint {
		if !sameNetwork(ifc, srcAddr, h.NetworkMask) {
			r.log.Debug("dropping hello with mismatched network mask", "interface", ifc.PhyInt, "router_id", routerID.String())
			return
		}
	}
	if h.HelloInterval != ifc.HelloInterval || h.RouterDeadInterval != ifc.RouterDeadInterval {
		r.log.Debug("dropping hello with mismatched timers", "interface", ifc.PhyInt, "router_id", routerID.String())
		return
	}

	nbr, ok := ifc.neighbors[routerID]
	if !ok {
		nbr = NewNeighbor(routerID, srcAddr, ifc)
		ifc.neighbors[routerID] = nbr
	}
	prevPriority := nbr.Priority
	nbr.Priority = h.RouterPriority
	nbr.Options = h.Options
	prevDR, prevBDR := nbr.DR, nbr.BDR
	nbr.DR = ospf.RouterIDFromIP(h.DesignatedRouter)
	nbr.BDR = ospf.RouterIDFromIP(h.BackupDesignatedRouter)

	r.fireNbrEvent(nbr, EvHelloReceived)

	seenSelf := false
	for _, id := range h.Neighbors {
		if id == r.id {
			seenSelf = true
			break
		}
	}
	if seenSelf {
		r.fireNbrEvent(nbr, Ev2WayReceived)
	} else {
		r.fireNbrEvent(nbr, Ev1WayReceived)
		return
	}

	if ifc.Type == IfaceBroadcast || ifc.Type == IfaceNBMA {
		if ifc.State == IfaceWaiting && nbr.DR == nbr.RouterID && nbr.BDR == ospf.RouterID(0) {
			r.endWaitTimer(ifc)
		} else if prevDR != nbr.DR || prevBDR != nbr.BDR || prevPriority != nbr.Priority {
			r.scheduleDRElection(ifc)
		}
	}
}

func sameNetwork(ifc *Interface, srcAddr net.IP, peerMask net.IP) bool {
	if len(ifc.Mask) == 0 || peerMask.String() != ifc.Mask.String() {
		return false
	}
	mask := net.IPMask(ifc.Mask.To4())
	return ifc.Addr.Mask(mask).Equal(srcAddr.Mask(mask))
}

// resetInactivityTimer (re)arms nbr's RouterDeadInterval timer (RFC 2328
// §10.2), firing EvInactivityTimer if no Hello arrives before it expires.
func (r *Router) resetInactivityTimer(nbr *Neighbor) {
	nbr.inactivityTimer.Cancel()
	nbr.inactivityTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(int64(nbr.Iface.RouterDeadInterval)*1000), func(timers.Milliseconds) {
		r.fireNbrEvent(nbr, EvInactivityTimer)
	})
}
