package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/ospfd/ospfd/internal/protocol/frame"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/engine/auth"
	"github.com/ospfd/ospfd/pkg/engine/hitless"
	"github.com/ospfd/ospfd/pkg/platform"
	"github.com/ospfd/ospfd/pkg/sim/rttbl"
	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

// harnessIfc is one simulated interface: its address, network, and link
// state as the harness models them.
type harnessIfc struct {
	phyint      int
	addr        uint32
	mask        uint32
	network     uint32 // addr & mask, the membership map's key
	operational bool
	mforward    bool
}

type mckey struct {
	src uint32
	grp uint32
}

var _ platform.Platform = (*Harness)(nil)

// Harness runs one simulated router: engine, transport, local routing
// table, and trace sessions.
type Harness struct {
	id       ospf.RouterID
	ctrlAddr string
	log      *slog.Logger

	conn    net.Conn
	udp     *net.UDPConn
	udpPort uint16

	engine    *engine.Router
	persister *hitless.Persister

	tick    uint32
	acked   uint32 // highest tick we have responded to
	started bool   // FIRST_TICK seen

	addrmap    map[uint32]simproto.AddrMapEntry
	netMembers map[uint32][]uint32
	ifaces     map[int]*harnessIfc
	rt         *rttbl.Table
	mcache     map[mckey]platform.MulticastCacheEntry

	// delayed holds packets whose timestamp is beyond the current tick
	// window, replayed once the clock reaches them.
	delayed []*simproto.Datagram

	traces map[uint32]*traceSession

	lastConfig *Config

	forwarding  bool
	mforwarding bool

	// hitlessPrep marks that a Halt from the engine means "restart
	// parameters persisted", not "terminate".
	hitlessPrep     bool
	hitlessPrepared bool
	halted          bool
}

// New returns a Harness for the given router ID, connecting to the
// controller at ctrlAddr. dataDir holds the hitless parameter file.
func New(id ospf.RouterID, ctrlAddr, dataDir string, log *slog.Logger) *Harness {
	return &Harness{
		id:         id,
		ctrlAddr:   ctrlAddr,
		log:        log,
		persister:  hitless.NewPersister(hitless.DefaultPath(dataDir)),
		addrmap:    map[uint32]simproto.AddrMapEntry{},
		netMembers: map[uint32][]uint32{},
		ifaces:     map[int]*harnessIfc{},
		rt:         rttbl.New(),
		mcache:     map[mckey]platform.MulticastCacheEntry{},
		traces:     map[uint32]*traceSession{},
	}
}

// ctrlMsg and dataMsg are the two inbound event kinds multiplexed into the
// single-threaded main loop.
type ctrlMsg struct {
	f   frame.Frame
	err error
}

type dataMsg struct {
	buf []byte
	err error
}

// Run connects to the controller, announces itself, and processes control
// frames and simulated datagrams until the context is cancelled, the
// controller disconnects, or a SHUTDOWN arrives. All protocol work happens
// on this goroutine; the two socket readers only ferry bytes in.
func (h *Harness) Run(ctx context.Context) error {
	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return fmt.Errorf("sim: udp listen: %w", err)
	}
	h.udp = udp
	defer udp.Close()
	h.udpPort = uint16(udp.LocalAddr().(*net.UDPAddr).Port)

	conn, err := net.Dial("tcp", h.ctrlAddr)
	if err != nil {
		return fmt.Errorf("sim: dial controller %s: %w", h.ctrlAddr, err)
	}
	h.conn = conn
	defer conn.Close()

	hello := simproto.Hello{RouterID: uint32(h.id), UDPPort: h.udpPort}
	if err := h.sendFrame(simproto.MsgHello, hello.Encode()); err != nil {
		return err
	}

	ctrlCh := make(chan ctrlMsg)
	go func() {
		r := frame.NewReader(conn)
		for {
			f, err := frame.Read(r)
			ctrlCh <- ctrlMsg{f: f, err: err}
			if err != nil {
				return
			}
		}
	}()

	dataCh := make(chan dataMsg)
	go func() {
		buf := make([]byte, 65536)
		for {
			n, _, err := udp.ReadFromUDP(buf)
			msg := dataMsg{err: err}
			if err == nil {
				msg.buf = append([]byte(nil), buf[:n]...)
			}
			dataCh <- msg
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case m := <-ctrlCh:
			if m.err != nil {
				if errors.Is(m.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("sim: controller read: %w", m.err)
			}
			done, err := h.handleControl(m.f)
			if err != nil {
				h.log.Error("control message failed", "type", m.f.Type, "error", err)
			}
			if done || h.halted {
				return nil
			}

		case m := <-dataCh:
			if m.err != nil {
				if errors.Is(m.err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("sim: udp read: %w", m.err)
			}
			h.handleDatagramBytes(m.buf)
		}
	}
}

// handleControl dispatches one controller frame. The returned bool reports
// an orderly shutdown.
func (h *Harness) handleControl(f frame.Frame) (bool, error) {
	switch f.Type {
	case simproto.MsgFirstTick, simproto.MsgTick:
		t, err := simproto.DecodeTick(f.Body)
		if err != nil {
			return false, err
		}
		h.started = true
		h.advanceTo(t.Tick)
		return false, nil

	case simproto.MsgConfig:
		cfg, err := ParseConfig(f.Body)
		if err != nil {
			return false, err
		}
		h.applyConfig(cfg)
		return false, nil

	case simproto.MsgConfigDel:
		h.clearConfig()
		return false, nil

	case simproto.MsgAddrMap:
		m, err := simproto.DecodeAddrMap(f.Body)
		if err != nil {
			return false, err
		}
		h.applyAddrMap(m)
		return false, nil

	case simproto.MsgShutdown:
		if h.engine != nil {
			h.engine.Shutdown(0)
		}
		return true, nil

	case simproto.MsgRestart:
		h.restartEngine(false, 0)
		return false, nil

	case simproto.MsgRestartHitless:
		req, err := simproto.DecodeRestartHitless(f.Body)
		if err != nil {
			return false, err
		}
		h.restartEngine(true, req.GraceSeconds)
		return false, nil

	case simproto.MsgAddMember, simproto.MsgDelMember:
		m, err := simproto.DecodeMember(f.Body)
		if err != nil {
			return false, err
		}
		if h.engine == nil {
			return false, nil
		}
		if f.Type == simproto.MsgAddMember {
			h.engine.JoinIndication(uint32IP(m.Group), int(m.PhyInt))
		} else {
			h.engine.LeaveIndication(uint32IP(m.Group), int(m.PhyInt))
		}
		return false, nil

	case simproto.MsgStartPing, simproto.MsgStartTR, simproto.MsgStartMtrace:
		req, err := simproto.DecodeTraceRequest(f.Body)
		if err != nil {
			return false, err
		}
		h.startTrace(f.Type, req)
		return false, nil

	case simproto.MsgStopPing:
		req, err := simproto.DecodeTraceRequest(f.Body)
		if err != nil {
			return false, err
		}
		delete(h.traces, req.Dest)
		return false, nil

	default:
		return false, fmt.Errorf("sim: unknown control message type %d", f.Type)
	}
}

// advanceTo moves the virtual clock to tick, replays any delayed packets
// whose timestamp is now within the window, steps the engine and trace
// sessions, and acknowledges with the current DBStats fingerprint.
func (h *Harness) advanceTo(tick uint32) {
	h.tick = tick

	pending := h.delayed
	h.delayed = nil
	for _, d := range pending {
		if h.datagramTick(d) > h.tick {
			h.delayed = append(h.delayed, d)
			continue
		}
		h.processDatagram(d)
	}

	if h.engine != nil {
		h.engine.Tick(engine.Seconds(h.virtualSeconds()))
	}
	h.stepTraces()

	resp := simproto.TickResponse{Tick: tick, Stats: h.dbStats()}
	if err := h.sendFrame(simproto.MsgTickResponse, resp.Encode()); err != nil {
		h.log.Error("tick response failed", "tick", tick, "error", err)
	}
	h.acked = tick
}

func (h *Harness) dbStats() simproto.DBStats {
	if h.engine == nil {
		return simproto.DBStats{}
	}
	s := h.engine.DBStats()
	return simproto.DBStats{
		LowArea:       uint32(s.LowArea),
		AreaLSAs:      s.AreaLSAs,
		AreaChecksum:  s.AreaChecksum,
		ASExternals:   s.ASExternals,
		ASExternalSum: s.ASExternalSum,
	}
}

// restartEngine tears the engine down and rebuilds it from the last
// configuration. hitless additionally brackets the teardown with the
// RFC 3623 preparation sequence and restores persisted MD5 sequence
// numbers into the new engine's key rings; the virtual clock carries over
// unchanged, so the rebuilt engine resumes mid-grace rather than at zero.
func (h *Harness) restartEngine(hitlessRestart bool, graceSeconds uint32) {
	if hitlessRestart && h.engine != nil {
		h.hitlessPrep = true
		h.engine.BeginHitlessRestart(graceSeconds)
		h.hitlessPrep = false
	}

	h.engine = nil
	if h.lastConfig != nil {
		h.applyConfig(h.lastConfig)
	}
	if h.engine == nil {
		return
	}

	if hitlessRestart {
		parms, err := h.persister.Load()
		if err != nil {
			h.log.Error("failed to load hitless parameters", "error", err)
			return
		}
		if parms != nil {
			for _, s := range parms.MD5Seqs {
				h.engine.RestoreMD5Sequence(int(s.PhyInt), s.KeyID, s.SequenceNum)
			}
			_ = h.persister.Clear()
		}
	}
}

// applyConfig builds (or rebuilds) the engine from cfg inside one
// cfgStart/cfgDone bracket and records the harness-side interface view.
func (h *Harness) applyConfig(cfg *Config) {
	h.lastConfig = cfg

	if h.engine == nil {
		h.engine = engine.NewRouter(h.id, h, h.log.With("component", "engine"))
	}
	r := h.engine

	r.CfgStart()
	r.CfgOspf(h.id)
	if cfg.ASExternalLimit > 0 {
		r.SetASExternalLimit(cfg.ASExternalLimit, engine.Seconds(cfg.ExitOverflowSecs))
	}
	for _, a := range cfg.Areas {
		r.CfgArea(ospf.AreaID(parseID(a.ID)), a.Stub, a.StubDefaultCost)
	}
	for _, ic := range cfg.Interfaces {
		addr := parseID(ic.Addr)
		mask := parseID(ic.Mask)
		r.CfgIfc(ic.PhyInt, ospf.AreaID(parseID(ic.Area)), uint32IP(addr), uint32IP(mask),
			ifaceType(ic.Type), ic.Priority, ic.Cost, ic.HelloInterval, ic.DeadInterval)
		h.ifaces[ic.PhyInt] = &harnessIfc{
			phyint:      ic.PhyInt,
			addr:        addr,
			mask:        mask,
			network:     addr & mask,
			operational: true,
		}
		// Connected networks are reachable without the engine's help.
		h.rt.Insert(rttbl.Entry{Net: addr & mask, MaskLen: rttbl.MaskLenFromMask(mask), PhyInt: ic.PhyInt})
		for _, nbr := range ic.Neighbors {
			r.CfgNbr(ic.PhyInt, uint32IP(parseID(nbr.Addr)), ospf.RouterID(parseID(nbr.RouterID)), nbr.Priority)
		}
		for _, k := range ic.AuthKeys {
			r.CfgAuKey(ic.PhyInt, auth.Key{
				ID:     k.KeyID,
				Type:   authType(k.Type),
				Secret: []byte(k.Secret),
			})
		}
	}
	for _, rng := range cfg.Ranges {
		r.CfgRnge(ospf.AreaID(parseID(rng.Area)), uint32IP(parseID(rng.Net)), uint32IP(parseID(rng.Mask)), rng.Suppress)
	}
	for _, hst := range cfg.Hosts {
		r.CfgHost(uint32IP(parseID(hst.Addr)), hst.Cost, ospf.AreaID(parseID(hst.Area)))
	}
	for _, vl := range cfg.VirtualLinks {
		r.CfgVL(ospf.RouterID(parseID(vl.Peer)), ospf.AreaID(parseID(vl.TransitArea)), vl.HelloInterval, vl.DeadInterval)
	}
	for _, ex := range cfg.ExternalRoutes {
		r.CfgExRt(engine.Destination{Net: uint32IP(parseID(ex.Net)), Mask: uint32IP(parseID(ex.Mask))},
			ex.Metric, ex.Type2, nil, ex.Tag)
	}
	r.CfgDone()
}

// clearConfig runs an empty configuration transaction, so CfgDone prunes
// every interface, virtual link, area and external route.
func (h *Harness) clearConfig() {
	h.lastConfig = nil
	if h.engine == nil {
		return
	}
	h.engine.CfgStart()
	h.engine.CfgDone()
}

// applyAddrMap merges (or replaces) the controller's address map push.
func (h *Harness) applyAddrMap(m *simproto.AddrMap) {
	if m.Full {
		h.addrmap = map[uint32]simproto.AddrMapEntry{}
		h.netMembers = map[uint32][]uint32{}
	}
	for _, e := range m.Entries {
		h.addrmap[e.Addr] = e
	}
	for _, n := range m.Nets {
		h.netMembers[n.Network] = n.Routers
	}
}

func (h *Harness) sendFrame(typ uint16, body []byte) error {
	f := frame.Frame{Version: simproto.Version, Type: typ, Body: body}
	_, err := f.WriteTo(h.conn)
	return err
}

func (h *Harness) sendLog(msg string) {
	if h.conn == nil {
		return
	}
	_ = h.sendFrame(simproto.MsgLogMsg, []byte(msg))
}

// UDPPort reports the port simulated datagrams should be sent to; valid
// after Run has bound the socket.
func (h *Harness) UDPPort() uint16 { return h.udpPort }
