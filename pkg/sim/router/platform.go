package router

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/ospfd/ospfd/pkg/engine/hitless"
	"github.com/ospfd/ospfd/pkg/platform"
	"github.com/ospfd/ospfd/pkg/sim/rttbl"
	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

// The Harness is the engine's Platform. Everything here runs on the harness's
// single main-loop goroutine.

// SendPacket wraps pkt in the simulation envelope and delivers it. gw is
// the destination address the engine chose: an OSPF multicast group, a
// neighbor address, or 0.0.0.0, which emitVia fans out to every router on
// the segment.
func (h *Harness) SendPacket(pkt []byte, phyint int, gw net.IP) error {
	ifc, ok := h.ifaces[phyint]
	if !ok {
		return fmt.Errorf("sim: send on unknown phyint %d", phyint)
	}
	dst := ipUint32(gw)
	d := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(phyint),
		},
		IP: simproto.IPHeader{
			Src:   ifc.addr,
			Dst:   dst,
			Proto: simproto.ProtoOSPF,
			TTL:   1, // OSPF never crosses a router hop
		},
		Payload: pkt,
	}
	return h.emit(d, ifc)
}

// SendPacketRouted transmits via the harness's own routing table, used for
// virtual-link traffic whose egress the engine does not know.
func (h *Harness) SendPacketRouted(pkt []byte) error {
	if len(pkt) < 24 {
		return fmt.Errorf("sim: routed packet too short")
	}
	// The OSPF header's area/virtual-link addressing doesn't carry an IP
	// destination; route toward the endpoint named in the packet header's
	// router ID via the local table.
	dst := binary.BigEndian.Uint32(pkt[4:8])
	e, ok := h.rt.BestMatch(dst)
	if !ok || e.Reject {
		return fmt.Errorf("sim: no route for virtual-link endpoint %08x", dst)
	}
	ifc, ok := h.ifaces[e.PhyInt]
	if !ok {
		return fmt.Errorf("sim: route egress phyint %d unknown", e.PhyInt)
	}
	d := &simproto.Datagram{
		Sim: simproto.SimHeader{
			TimestampSec:  uint32(h.virtualSeconds()),
			TimestampMsec: uint32(h.virtualMillis() % 1000),
			PhyInt:        int32(e.PhyInt),
		},
		IP: simproto.IPHeader{
			Src:   ifc.addr,
			Dst:   dst,
			Proto: simproto.ProtoOSPF,
			TTL:   simproto.DefaultTTL,
		},
		Payload: pkt,
	}
	return h.emit(d, ifc)
}

func (h *Harness) PhyOperational(phyint int) bool {
	ifc, ok := h.ifaces[phyint]
	return ok && ifc.operational
}

func (h *Harness) PhyOpen(phyint int) error {
	if ifc, ok := h.ifaces[phyint]; ok {
		ifc.operational = true
	}
	return nil
}

func (h *Harness) PhyClose(phyint int) error {
	if ifc, ok := h.ifaces[phyint]; ok {
		ifc.operational = false
	}
	return nil
}

// Join/Leave are bookkeeping only: simulated multicast delivery fans out by
// network membership, so group joins just record intent for logging parity.
func (h *Harness) Join(group net.IP, phyint int) error  { return nil }
func (h *Harness) Leave(group net.IP, phyint int) error { return nil }

func (h *Harness) IPForward(enable bool) error {
	h.forwarding = enable
	return nil
}

func (h *Harness) SetMulticastRouting(enable bool) error {
	h.mforwarding = enable
	return nil
}

func (h *Harness) SetMulticastRoutingOnInterface(phyint int, enable bool) error {
	if ifc, ok := h.ifaces[phyint]; ok {
		ifc.mforward = enable
	}
	return nil
}

// RouteAdd installs into the harness's local table - the one used for
// forwarding, independent of the engine's own.
func (h *Harness) RouteAdd(dest net.IPNet, mpath, old []platform.MultiPath, reject bool) error {
	maskLen, _ := dest.Mask.Size()
	if mpath == nil && old != nil {
		h.rt.Delete(ipUint32(dest.IP), maskLen)
		return nil
	}
	e := rttbl.Entry{
		Net:     ipUint32(dest.IP),
		MaskLen: maskLen,
		Reject:  reject,
	}
	if len(mpath) > 0 {
		e.PhyInt = mpath[0].PhyInt
		e.Gateway = ipUint32(mpath[0].Gateway)
	}
	h.rt.Insert(e)
	return nil
}

func (h *Harness) RouteDelete(dest net.IPNet, old []platform.MultiPath) error {
	maskLen, _ := dest.Mask.Size()
	h.rt.Delete(ipUint32(dest.IP), maskLen)
	return nil
}

func (h *Harness) AddMcache(src, grp net.IP, entry platform.MulticastCacheEntry) error {
	h.mcache[mckey{src: ipUint32(src), grp: ipUint32(grp)}] = entry
	return nil
}

func (h *Harness) DelMcache(src, grp net.IP) error {
	delete(h.mcache, mckey{ipUint32(src), ipUint32(grp)})
	return nil
}

// UploadRemnants: a simulated router boots with an empty kernel table, so
// there is never anything to reclaim.
func (h *Harness) UploadRemnants() ([]platform.Remnant, error) { return nil, nil }

func (h *Harness) PhyName(phyint int) string {
	return fmt.Sprintf("sim%d", phyint)
}

// SysSPFLog forwards engine protocol logs to the controller as LOGMSG
// frames so the UI can surface them per router.
func (h *Harness) SysSPFLog(code int, msg string) {
	h.sendLog(fmt.Sprintf("spf[%d]: %s", code, msg))
}

// StoreHitlessParms persists the restart block through the hitless
// persister, stamping in the current virtual clock so a rebuilt engine
// resumes with time preserved.
func (h *Harness) StoreHitlessParms(graceSeconds uint32, md5Seqs []platform.InterfaceMD5Seq) error {
	p := &hitless.Parms{
		GracePeriod: graceSeconds,
		RouterID:    uint32(h.id),
		ElapsedSecs: h.virtualSeconds(),
	}
	for _, s := range md5Seqs {
		p.MD5Seqs = append(p.MD5Seqs, hitless.MD5Seq{
			PhyInt:      int32(s.PhyInt),
			KeyID:       s.KeyID,
			SequenceNum: s.SequenceNum,
		})
	}
	return h.persister.Store(p)
}

// Halt: during hitless preparation this is the "prepared successfully"
// signal and the harness continues; otherwise the router
// reports the code to the controller and disconnects, which the controller
// renders as color red.
func (h *Harness) Halt(code int, msg string) {
	if h.hitlessPrep {
		h.hitlessPrepared = true
		return
	}
	h.sendLog(fmt.Sprintf("halt[%d]: %s", code, msg))
	h.halted = true
}

// SysElapsedTime is derived from the controller's tick counter; the engine
// never sees wall-clock time.
func (h *Harness) SysElapsedTime() (seconds int64, milliseconds int64) {
	ms := h.virtualMillis()
	return ms / 1000, ms
}

func (h *Harness) virtualSeconds() int64 {
	return int64(h.tick / simproto.TicksPerSecond)
}

func (h *Harness) virtualMillis() int64 {
	return int64(h.tick) * 1000 / simproto.TicksPerSecond
}

func ipUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func uint32IP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
