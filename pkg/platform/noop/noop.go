// Package noop implements pkg/platform.Platform as a logging-only stub: it
// performs no kernel I/O and never blocks. It backs unit tests and is the
// default platform for cmd/ospfd until a real kernel adapter is wired in.
package noop

import (
	"net"
	"time"

	"github.com/ospfd/ospfd/internal/logger"
	"github.com/ospfd/ospfd/pkg/platform"
)

// Platform is a no-op implementation of platform.Platform.
type Platform struct {
	start time.Time
	names map[int]string
}

// New returns a Platform whose elapsed-time clock starts at construction.
func New() *Platform {
	return &Platform{start: time.Now(), names: map[int]string{}}
}

func (p *Platform) SendPacket(pkt []byte, phyint int, gw net.IP) error {
	logger.Debug("noop: send packet", "phyint", phyint, "gateway", gw, "bytes", len(pkt))
	return nil
}

func (p *Platform) SendPacketRouted(pkt []byte) error {
	logger.Debug("noop: send routed packet", "bytes", len(pkt))
	return nil
}

func (p *Platform) PhyOperational(phyint int) bool { return true }

func (p *Platform) PhyOpen(phyint int) error {
	logger.Debug("noop: phy open", "phyint", phyint)
	return nil
}

func (p *Platform) PhyClose(phyint int) error {
	logger.Debug("noop: phy close", "phyint", phyint)
	return nil
}

func (p *Platform) Join(group net.IP, phyint int) error {
	logger.Debug("noop: join", "group", group, "phyint", phyint)
	return nil
}

func (p *Platform) Leave(group net.IP, phyint int) error {
	logger.Debug("noop: leave", "group", group, "phyint", phyint)
	return nil
}

func (p *Platform) IPForward(enable bool) error {
	logger.Debug("noop: ip forward", "enable", enable)
	return nil
}

func (p *Platform) SetMulticastRouting(enable bool) error {
	logger.Debug("noop: multicast routing", "enable", enable)
	return nil
}

func (p *Platform) SetMulticastRoutingOnInterface(phyint int, enable bool) error {
	logger.Debug("noop: multicast routing", "phyint", phyint, "enable", enable)
	return nil
}

func (p *Platform) RouteAdd(dest net.IPNet, mpath, old []platform.MultiPath, reject bool) error {
	logger.Debug("noop: route add", "dest", dest.String(), "paths", len(mpath), "reject", reject)
	return nil
}

func (p *Platform) RouteDelete(dest net.IPNet, old []platform.MultiPath) error {
	logger.Debug("noop: route delete", "dest", dest.String())
	return nil
}

func (p *Platform) AddMcache(src, grp net.IP, entry platform.MulticastCacheEntry) error {
	logger.Debug("noop: add mcache", "src", src, "grp", grp)
	return nil
}

func (p *Platform) DelMcache(src, grp net.IP) error {
	logger.Debug("noop: del mcache", "src", src, "grp", grp)
	return nil
}

func (p *Platform) UploadRemnants() ([]platform.Remnant, error) { return nil, nil }

func (p *Platform) PhyName(phyint int) string {
	if name, ok := p.names[phyint]; ok {
		return name
	}
	return "eth?"
}

// SetPhyName lets tests/configuration register a printable name for phyint.
func (p *Platform) SetPhyName(phyint int, name string) { p.names[phyint] = name }

func (p *Platform) SysSPFLog(code int, msg string) {
	logger.Info("spf log", "code", code, "msg", msg)
}

func (p *Platform) StoreHitlessParms(graceSeconds uint32, md5Seqs []platform.InterfaceMD5Seq) error {
	logger.Info("noop: store hitless parms (discarded)", "grace_seconds", graceSeconds, "interfaces", len(md5Seqs))
	return nil
}

func (p *Platform) Halt(code int, msg string) {
	logger.Error("noop: halt requested", "code", code, "msg", msg)
}

func (p *Platform) SysElapsedTime() (seconds int64, milliseconds int64) {
	d := time.Since(p.start)
	return int64(d / time.Second), int64(d / time.Millisecond)
}
