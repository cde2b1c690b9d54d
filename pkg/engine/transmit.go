package engine

import (
	"bytes"
	"net"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/auth"
	"github.com/ospfd/ospfd/pkg/engine/timers"
)

// AllSPFRouters and AllDRouters are the well-known OSPF multicast groups
// (RFC 2328 §A.1).
var (
	AllSPFRouters = net.IPv4(224, 0, 0, 5)
	AllDRouters   = net.IPv4(224, 0, 0, 6)
)

// sendOSPF assembles the common header around body, signs it per ifc's
// configured authentication, and hands it to the platform addressed to dst.
// dst is the sentinel platform.GatewayDirect/GatewayAllRouters, or a real
// next-hop/group address.
func (r *Router) sendOSPF(ifc *Interface, typ ospf.PacketType, body interface {
	Encode(*bytes.Buffer) error
}, dst net.IP) {
	bodyBuf := &bytes.Buffer{}
	if err := body.Encode(bodyBuf); err != nil {
		r.log.Error("failed to encode outbound packet", "type", typ.String(), "error", err)
		return
	}

	hdr := ospf.Header{
		Version:  2,
		Type:     typ,
		Length:   uint16(ospf.HeaderLength + bodyBuf.Len()),
		RouterID: r.id,
		AreaID:   ifc.Area.ID,
		AuType:   ifc.AuType,
	}

	headerBuf := &bytes.Buffer{}
	if err := hdr.Encode(headerBuf); err != nil {
		r.log.Error("failed to encode header", "error", err)
		return
	}
	pkt := append(headerBuf.Bytes(), bodyBuf.Bytes()...)
	pkt = r.authenticateOutbound(ifc, pkt)

	gw := dst
	if dst == nil {
		gw = net.IPv4(0, 0, 0, 0) // platform.GatewayDirect sentinel value
	}
	if err := r.platform.SendPacket(pkt, ifc.PhyInt, gw); err != nil {
		r.log.Warn("sendpkt failed", "interface", ifc.PhyInt, "error", err)
	}
}

// authenticateOutbound signs pkt per ifc's configured authentication type,
// appending the MD5 digest (and advancing the key ring's sequence number)
// when AuMD5 is configured.
func (r *Router) authenticateOutbound(ifc *Interface, pkt []byte) []byte {
	key, ok := ifc.AuthKeys.ActiveGenerateKey(int64(r.now))
	if !ok {
		return pkt
	}
	switch key.Type {
	case auth.TypeSimple:
		copy(pkt[16:24], key.Secret)
		return pkt
	case auth.TypeMD5:
		seq := ifc.AuthKeys.NextSequence()
		md5auth := ospf.MD5AuthData{KeyID: key.ID, AuthDataLen: 16, SequenceNum: seq}.Encode()
		copy(pkt[16:24], md5auth[:])
		digest := auth.Digest(pkt, key.Secret)
		return append(pkt, digest[:]...)
	default:
		return pkt
	}
}

// sendDirectAck transmits an immediate, single-LSA LSAck to nbr, used for
// duplicate or MaxAge-unknown acknowledgments (RFC 2328 §13.5).
func (r *Router) sendDirectAck(nbr *Neighbor, header ospf.LSAHeader) {
	ack := &ospf.LinkStateAcknowledgment{LSAHeaders: []ospf.LSAHeader{header}}
	r.sendOSPF(nbr.Iface, ospf.PacketLSAck, ack, nbr.Address)
}

// queueDelayedAck adds header to nbr's interface's opportunistic delayed-ack
// batch, flushed by the interface's ack timer (RFC 2328 §13.5).
func (r *Router) queueDelayedAck(nbr *Neighbor, header ospf.LSAHeader) {
	ifc := nbr.Iface
	ifc.delayedAcks = append(ifc.delayedAcks, header)
	if len(ifc.delayedAcks) == 1 {
		// First entry arms the flush; the delay stays under RxmtInterval so
		// an ack always beats the sender's retransmission.
		ifc.ackTimer = r.timers.After(r.nowMillis(), timers.Milliseconds(1000), func(timers.Milliseconds) {
			r.flushDelayedAcks(ifc)
		})
	}
}

// flushDelayedAcks sends one LSAck packet bundling every header queued on
// ifc since the last flush (RFC 2328 §13.5), driven by ifc's ack timer.
func (r *Router) flushDelayedAcks(ifc *Interface) {
	if len(ifc.delayedAcks) == 0 {
		return
	}
	ack := &ospf.LinkStateAcknowledgment{LSAHeaders: ifc.delayedAcks}
	ifc.delayedAcks = nil
	dst := net.IP(nil)
	if ifc.Type == IfaceBroadcast || ifc.Type == IfaceNBMA {
		dst = AllSPFRouters
	}
	r.sendOSPF(ifc, ospf.PacketLSAck, ack, dst)
}

// dispatch routes a decoded OSPF packet body to the right handler by type.
// hdr has already passed area and
// authentication checks in receiveIPPacket.
func (r *Router) dispatch(ifc *Interface, hdr *ospf.Header, srcAddr net.IP, body []byte) {
	switch hdr.Type {
	case ospf.PacketHello:
		pkt, err := ospf.DecodeHello(body)
		if err != nil {
			r.log.Debug("dropping malformed hello", "error", err)
			return
		}
		r.receiveHello(ifc, srcAddr, hdr.RouterID, pkt)

	case ospf.PacketDBD:
		pkt, err := ospf.DecodeDatabaseDescription(body)
		if err != nil {
			r.log.Debug("dropping malformed dbd", "error", err)
			return
		}
		r.receiveDBD(ifc, hdr.RouterID, pkt)

	case ospf.PacketLSR:
		pkt, err := ospf.DecodeLinkStateRequest(body)
		if err != nil {
			r.log.Debug("dropping malformed lsr", "error", err)
			return
		}
		r.receiveLSR(ifc, hdr.RouterID, pkt)

	case ospf.PacketLSU:
		pkt, err := ospf.DecodeLinkStateUpdate(body)
		if err != nil {
			r.log.Debug("dropping malformed lsu", "error", err)
			return
		}
		nbr, ok := ifc.NeighborByID(hdr.RouterID)
		if !ok {
			return
		}
		r.ReceiveLSU(nbr, pkt)

	case ospf.PacketLSAck:
		pkt, err := ospf.DecodeLinkStateAcknowledgment(body)
		if err != nil {
			r.log.Debug("dropping malformed lsack", "error", err)
			return
		}
		nbr, ok := ifc.NeighborByID(hdr.RouterID)
		if !ok {
			return
		}
		for _, h := range pkt.LSAHeaders {
			nbr.removeFromRetransmission(h.Key())
		}
	}
}
