package router

import (
	"net"

	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

// handleDatagramBytes decodes one UDP-delivered simulated datagram and
// either processes it now or parks it on the delayed queue if its
// timestamp is beyond the current tick window.
func (h *Harness) handleDatagramBytes(buf []byte) {
	d, err := simproto.DecodeDatagram(buf)
	if err != nil {
		h.log.Debug("dropping malformed simulated datagram", "error", err)
		return
	}
	if h.datagramTick(d) > h.tick {
		h.delayed = append(h.delayed, d)
		return
	}
	h.processDatagram(d)
}

// datagramTick converts a datagram's virtual timestamp into the tick at
// which the receiver may first observe it.
func (h *Harness) datagramTick(d *simproto.Datagram) uint32 {
	ms := uint64(d.Sim.TimestampSec)*1000 + uint64(d.Sim.TimestampMsec)
	return uint32(ms * simproto.TicksPerSecond / 1000)
}

// processDatagram delivers d locally, fans it out as a multicast, or
// forwards it through the local routing table.
func (h *Harness) processDatagram(d *simproto.Datagram) {
	if d.IP.Dst == 0 {
		h.deliverLocal(d)
		return
	}
	if simproto.IsMulticast(d.IP.Dst) {
		h.deliverLocal(d)
		if h.mforwarding {
			h.forwardMulticast(d)
		}
		return
	}
	if h.ownsAddress(d.IP.Dst) {
		h.deliverLocal(d)
		return
	}
	if !h.forwarding {
		return
	}
	h.forward(d)
}

// ownsAddress reports whether dst is one of this router's own interface
// addresses.
func (h *Harness) ownsAddress(dst uint32) bool {
	for _, ifc := range h.ifaces {
		if ifc.addr == dst {
			return true
		}
	}
	return false
}

// arrivalPhyint resolves which of our interfaces a datagram from src
// arrived on: the one whose network contains the source. Datagrams from
// beyond the local segment fall back to the best-match egress toward the
// source.
func (h *Harness) arrivalPhyint(src uint32) int {
	for _, ifc := range h.ifaces {
		if ifc.addr&ifc.mask == src&ifc.mask {
			return ifc.phyint
		}
	}
	if e, ok := h.rt.BestMatch(src); ok {
		return e.PhyInt
	}
	return -1
}

// deliverLocal hands a datagram addressed to us (or a group we listen on)
// to its protocol handler.
func (h *Harness) deliverLocal(d *simproto.Datagram) {
	phyint := h.arrivalPhyint(d.IP.Src)
	switch d.IP.Proto {
	case simproto.ProtoOSPF:
		if h.engine == nil || phyint < 0 {
			return
		}
		h.engine.Receive(phyint, uint32IP(d.IP.Src), d.Payload)
	case simproto.ProtoICMP:
		h.receiveICMP(d)
	case simproto.ProtoIGMP:
		if h.engine != nil && phyint >= 0 {
			h.engine.JoinIndication(uint32IP(d.IP.Dst), phyint)
		}
	default:
		h.log.Debug("dropping datagram with unknown protocol", "proto", d.IP.Proto)
	}
}

// forward relays a transit datagram per the local routing table, emulating
// the ICMP errors a real kernel would generate.
func (h *Harness) forward(d *simproto.Datagram) {
	if d.IP.TTL <= 1 {
		h.sendICMPError(d, simproto.IcmpTimeExceeded, 0)
		return
	}
	e, ok := h.rt.BestMatch(d.IP.Dst)
	if !ok {
		h.sendICMPError(d, simproto.IcmpUnreachable, simproto.IcmpCodeNetUnreachable)
		return
	}
	if e.Reject {
		h.sendICMPError(d, simproto.IcmpUnreachable, simproto.IcmpCodeHostUnreachable)
		return
	}
	ifc, ok := h.ifaces[e.PhyInt]
	if !ok || !ifc.operational {
		h.sendICMPError(d, simproto.IcmpUnreachable, simproto.IcmpCodeHostUnreachable)
		return
	}

	out := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(e.PhyInt),
		},
		IP:      d.IP,
		Payload: d.Payload,
	}
	out.IP.TTL--
	if err := h.emitVia(out, ifc, e.Gateway); err != nil {
		h.log.Debug("forward failed", "dst", uint32IP(d.IP.Dst), "error", err)
	}
}

// forwardMulticast relays a multicast datagram along the MOSPF forwarding
// cache's downstream interfaces, honoring TTL thresholds.
func (h *Harness) forwardMulticast(d *simproto.Datagram) {
	if h.engine == nil || d.IP.TTL <= 1 {
		return
	}
	entry := h.engine.MCLookup(uint32IP(d.IP.Src), uint32IP(d.IP.Dst))
	arrival := h.arrivalPhyint(d.IP.Src)
	onUpstream := false
	for _, up := range entry.Upstream {
		if up == arrival {
			onUpstream = true
			break
		}
	}
	if !onUpstream {
		return // reverse-path check failed
	}
	for _, down := range entry.Downstream {
		if d.IP.TTL <= down.TTLThreshold {
			continue
		}
		ifc, ok := h.ifaces[down.PhyInt]
		if !ok || !ifc.operational {
			continue
		}
		out := &simproto.Datagram{
			Sim: simproto.SimHeader{
				TimestampSec:  uint32(h.virtualSeconds()),
				TimestampMsec: uint32(h.virtualMillis() % 1000),
				PhyInt:        int32(down.PhyInt),
			},
			IP:      d.IP,
			Payload: d.Payload,
		}
		out.IP.TTL--
		if err := h.emit(out, ifc); err != nil {
			h.log.Debug("multicast forward failed", "group", uint32IP(d.IP.Dst), "error", err)
		}
	}
}

// emit transmits d out ifc: multicast/broadcast fans out to every attached
// router on the segment, unicast resolves the destination's delivery port
// through the address map.
func (h *Harness) emit(d *simproto.Datagram, ifc *harnessIfc) error {
	return h.emitVia(d, ifc, 0)
}

// emitVia is emit with an explicit next-hop gateway: when gw is non-zero
// the datagram is handed to that router rather than to its final
// destination, modeling hop-by-hop forwarding.
func (h *Harness) emitVia(d *simproto.Datagram, ifc *harnessIfc, gw uint32) error {
	buf := d.Encode()

	// Destination zero is the engine's "direct to the segment" sentinel
	// (point-to-point sends); it fans out like a multicast.
	if d.IP.Dst == 0 || simproto.IsMulticast(d.IP.Dst) || d.IP.Dst == ifc.network|^ifc.mask {
		for _, routerID := range h.netMembers[ifc.network] {
			if routerID == uint32(h.id) {
				continue
			}
			h.sendToRouter(routerID, buf)
		}
		return nil
	}

	hop := d.IP.Dst
	if gw != 0 {
		hop = gw
	}
	entry, ok := h.addrmap[hop]
	if !ok {
		return errNoMapEntry(hop)
	}
	return h.sendUDP(entry.UDPPort, buf)
}

// sendToRouter delivers buf to routerID's port via any address-map entry
// owned by it.
func (h *Harness) sendToRouter(routerID uint32, buf []byte) {
	for _, entry := range h.addrmap {
		if entry.RouterID == routerID {
			if err := h.sendUDP(entry.UDPPort, buf); err != nil {
				h.log.Debug("delivery failed", "router", routerID, "error", err)
			}
			return
		}
	}
}

func (h *Harness) sendUDP(port uint16, buf []byte) error {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}
	_, err := h.udp.WriteToUDP(buf, addr)
	return err
}

type errNoMapEntry uint32

func (e errNoMapEntry) Error() string {
	return "sim: no address-map entry for " + uint32IP(uint32(e)).String()
}
