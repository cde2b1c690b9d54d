package router

import (
	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

// maxProbeIterations bounds how many probes are sent at one TTL before the
// hop is reported as timed out and the session moves on.
const maxProbeIterations = 2

// probeTimeoutTicks is how long a probe waits for an answer, in virtual
// ticks (2 virtual seconds).
const probeTimeoutTicks = 2 * simproto.TicksPerSecond

// maxTraceTTL caps traceroute/mtrace depth.
const maxTraceTTL = 30

// traceSession is one in-flight ping, traceroute, or multicast-traceroute,
// driven from the controller and stepped once per tick. The
// three variants share the probe/retry state machine; they differ only in
// the TTL schedule (ping probes at full TTL, the traceroutes walk TTL
// upward) and in the protocol used to probe.
type traceSession struct {
	kind   uint16 // MsgStartPing / MsgStartTR / MsgStartMtrace
	dest   uint32
	source uint32 // mtrace only

	ttl      uint8
	iter     int
	sequence uint16
	sentAt   uint32 // tick of the outstanding probe, 0 = none outstanding
	delay    uint16 // ticks between ping probes
	nextAt   uint32 // tick of the next scheduled probe
	done     bool
}

// startTrace begins a session keyed by destination; a new request for the
// same destination replaces the old session.
func (h *Harness) startTrace(kind uint16, req *simproto.TraceRequest) {
	s := &traceSession{
		kind:   kind,
		dest:   req.Dest,
		source: req.Source,
		delay:  req.TickDelay,
		nextAt: h.tick,
	}
	switch kind {
	case simproto.MsgStartPing:
		s.ttl = simproto.DefaultTTL
		if s.delay == 0 {
			s.delay = simproto.TicksPerSecond
		}
	default:
		s.ttl = 1
	}
	h.traces[req.Dest] = s
}

// stepTraces advances every session: fire due probes, expire unanswered
// ones.
func (h *Harness) stepTraces() {
	for dest, s := range h.traces {
		if s.done {
			delete(h.traces, dest)
			continue
		}
		if s.sentAt != 0 && h.tick-s.sentAt >= probeTimeoutTicks {
			h.probeTimedOut(s)
		}
		if s.sentAt == 0 && h.tick >= s.nextAt {
			h.sendProbe(s)
		}
	}
}

// sendProbe emits one echo probe at the session's current TTL.
func (h *Harness) sendProbe(s *traceSession) {
	s.sequence++
	s.iter++
	s.sentAt = h.tick

	icmp := simproto.ICMPMessage{
		Type:     simproto.IcmpEcho,
		Ident:    uint16(h.id),
		Sequence: s.sequence,
	}
	// Multicast traceroute probes the distribution tree by addressing the
	// group with a bounded TTL, so each hop answers in turn; the unicast
	// variants address the destination directly the same way.
	dst := s.dest
	src := h.anyAddr()

	e, ok := h.rt.BestMatch(dst)
	if !ok && !simproto.IsMulticast(dst) {
		h.reportTrace(simproto.MsgIcmpError, 0, s.ttl, simproto.IcmpCodeNetUnreachable)
		s.done = true
		return
	}
	phyint := 0
	gw := uint32(0)
	if ok {
		phyint = e.PhyInt
		gw = e.Gateway
	} else if len(h.ifaces) > 0 {
		for p := range h.ifaces {
			phyint = p
			break
		}
	}
	ifc, okIfc := h.ifaces[phyint]
	if !okIfc {
		s.done = true
		return
	}

	d := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(phyint),
		},
		IP: simproto.IPHeader{
			Src:   src,
			Dst:   dst,
			Proto: simproto.ProtoICMP,
			TTL:   s.ttl,
		},
		Payload: icmp.Encode(),
	}
	if err := h.emitVia(d, ifc, gw); err != nil {
		h.log.Debug("probe transmit failed", "dest", uint32IP(dst), "error", err)
	}
}

// probeTimedOut handles an expired probe: retry at the same TTL up to the
// iteration cap, then report the hop as silent and move on.
func (h *Harness) probeTimedOut(s *traceSession) {
	s.sentAt = 0
	if s.iter < maxProbeIterations {
		s.nextAt = h.tick // retry immediately next step
		return
	}
	s.iter = 0
	switch s.kind {
	case simproto.MsgStartPing:
		h.reportTrace(simproto.MsgTracerouteTmo, 0, s.ttl, 0)
		s.nextAt = h.tick + uint32(s.delay)
	default:
		h.reportTrace(simproto.MsgTracerouteTmo, 0, s.ttl, 0)
		h.advanceTTL(s)
	}
}

func (h *Harness) advanceTTL(s *traceSession) {
	if s.ttl >= maxTraceTTL {
		h.reportTrace(simproto.MsgTracerouteDone, 0, s.ttl, 0)
		s.done = true
		return
	}
	s.ttl++
	s.nextAt = h.tick
}

// receiveICMP handles an ICMP datagram addressed to us: answer echoes, and
// feed replies/errors back into whatever session they answer.
func (h *Harness) receiveICMP(d *simproto.Datagram) {
	msg, err := simproto.DecodeICMP(d.Payload)
	if err != nil {
		return
	}
	switch msg.Type {
	case simproto.IcmpEcho:
		h.sendEchoReply(d, msg)

	case simproto.IcmpEchoReply:
		s, ok := h.findSession(msg, d.IP.Src)
		if !ok {
			return
		}
		elapsed := (h.tick - s.sentAt) * 1000 / simproto.TicksPerSecond
		s.sentAt = 0
		s.iter = 0
		switch s.kind {
		case simproto.MsgStartPing:
			h.reportTrace(simproto.MsgEchoReply, d.IP.Src, s.ttl, uint8(0), elapsed)
			s.nextAt = h.tick + uint32(s.delay)
		default:
			// The destination answered: the trace is complete.
			h.reportTrace(simproto.MsgTracerouteTTL, d.IP.Src, s.ttl, 0, elapsed)
			h.reportTrace(simproto.MsgTracerouteDone, d.IP.Src, s.ttl, 0, elapsed)
			s.done = true
		}

	case simproto.IcmpTimeExceeded:
		s, ok := h.sessionForError(msg)
		if !ok {
			return
		}
		elapsed := (h.tick - s.sentAt) * 1000 / simproto.TicksPerSecond
		s.sentAt = 0
		s.iter = 0
		h.reportTrace(simproto.MsgTracerouteTTL, d.IP.Src, s.ttl, 0, elapsed)
		if s.kind != simproto.MsgStartPing {
			h.advanceTTL(s)
		}

	case simproto.IcmpUnreachable:
		s, ok := h.sessionForError(msg)
		if !ok {
			return
		}
		// An unreachable finalizes the hop immediately; no second probe is
		// sent at this TTL.
		s.sentAt = 0
		h.reportTrace(simproto.MsgIcmpError, d.IP.Src, s.ttl, msg.Code)
		h.reportTrace(simproto.MsgTracerouteDone, d.IP.Src, s.ttl, msg.Code)
		s.done = true
	}
}

// findSession matches an echo reply to the session that sent its probe.
func (h *Harness) findSession(msg *simproto.ICMPMessage, from uint32) (*traceSession, bool) {
	if msg.Ident != uint16(h.id) {
		return nil, false
	}
	if s, ok := h.traces[from]; ok && s.sentAt != 0 {
		return s, true
	}
	// Multicast sessions are keyed by group, not by the responder.
	for _, s := range h.traces {
		if s.sentAt != 0 && s.sequence == msg.Sequence {
			return s, true
		}
	}
	return nil, false
}

// sessionForError matches an ICMP error to a session via the original
// destination echoed in the error body.
func (h *Harness) sessionForError(msg *simproto.ICMPMessage) (*traceSession, bool) {
	if s, ok := h.traces[msg.Original]; ok && s.sentAt != 0 {
		return s, true
	}
	return nil, false
}

// sendEchoReply answers an echo request.
func (h *Harness) sendEchoReply(d *simproto.Datagram, msg *simproto.ICMPMessage) {
	phyint := h.arrivalPhyint(d.IP.Src)
	ifc, ok := h.ifaces[phyint]
	if !ok {
		return
	}
	reply := simproto.ICMPMessage{
		Type:     simproto.IcmpEchoReply,
		Ident:    msg.Ident,
		Sequence: msg.Sequence,
	}
	dst := d.IP.Src
	out := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(phyint),
		},
		IP: simproto.IPHeader{
			Src:   ifc.addr,
			Dst:   dst,
			Proto: simproto.ProtoICMP,
			TTL:   simproto.DefaultTTL,
		},
		Payload: reply.Encode(),
	}
	gw := uint32(0)
	if e, ok := h.rt.BestMatch(dst); ok {
		out.Sim.PhyInt = int32(e.PhyInt)
		if i2, ok2 := h.ifaces[e.PhyInt]; ok2 {
			ifc = i2
		}
		gw = e.Gateway
	}
	if err := h.emitVia(out, ifc, gw); err != nil {
		h.log.Debug("echo reply failed", "dst", uint32IP(dst), "error", err)
	}
}

// sendICMPError emits a time-exceeded or unreachable error back toward a
// datagram's source, carrying the original destination so the sender can
// correlate it with a session.
func (h *Harness) sendICMPError(d *simproto.Datagram, icmpType, code uint8) {
	if d.IP.Proto == simproto.ProtoICMP {
		// Never answer an ICMP error with another; echoes are fine.
		if msg, err := simproto.DecodeICMP(d.Payload); err != nil || msg.Type != simproto.IcmpEcho {
			return
		}
	}
	phyint := h.arrivalPhyint(d.IP.Src)
	ifc, ok := h.ifaces[phyint]
	if !ok {
		return
	}
	errMsg := simproto.ICMPMessage{
		Type:     icmpType,
		Code:     code,
		Original: d.IP.Dst,
	}
	out := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(phyint),
		},
		IP: simproto.IPHeader{
			Src:   ifc.addr,
			Dst:   d.IP.Src,
			Proto: simproto.ProtoICMP,
			TTL:   simproto.DefaultTTL,
		},
		Payload: errMsg.Encode(),
	}
	gw := uint32(0)
	if e, ok := h.rt.BestMatch(d.IP.Src); ok {
		if i2, ok2 := h.ifaces[e.PhyInt]; ok2 {
			ifc = i2
			out.Sim.PhyInt = int32(e.PhyInt)
		}
		gw = e.Gateway
	}
	if err := h.emitVia(out, ifc, gw); err != nil {
		h.log.Debug("icmp error transmit failed", "dst", uint32IP(d.IP.Src), "error", err)
	}
}

// reportTrace sends a session event to the controller. elapsed is optional.
func (h *Harness) reportTrace(kind uint16, responder uint32, ttl uint8, code uint8, elapsed...uint32) {
	rep := simproto.TraceReport{Responder: responder, TTL: ttl, Code: code}
	if len(elapsed) > 0 {
		rep.VirtualMs = elapsed[0]
	}
	if err := h.sendFrame(kind, rep.Encode()); err != nil {
		h.log.Debug("trace report failed", "error", err)
	}
}

// anyAddr returns one of our interface addresses to source probes from.
func (h *Harness) anyAddr() uint32 {
	for _, ifc := range h.ifaces {
		return ifc.addr
	}
	return 0
}
