// Package controller is the simulation's central process:
// it drives the virtual clock in lock-step ticks, distributes the global
// address map, relays operator commands to routers, and recolors each
// router's synchronization state from the DBStats fingerprints carried on
// tick acknowledgments.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ospfd/ospfd/internal/protocol/frame"
	"github.com/ospfd/ospfd/pkg/sim/router"
	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

// RouterTopology is one router's place in the simulated network: its ID and
// full engine configuration.
type RouterTopology struct {
	ID     uint32
	Config *router.Config
}

// Topology is the complete simulated network the controller drives.
type Topology struct {
	Routers []RouterTopology
}

// routerState is the controller's view of one attached router.
type routerState struct {
	id      uint32
	conn    net.Conn
	udpPort uint16

	lastAck  uint32
	stats    simproto.DBStats
	hasStats bool
	color    Color
}

// event is one inbound occurrence multiplexed into the controller's
// single-threaded main loop.
type event struct {
	conn  net.Conn
	frame frame.Frame
	err   error
	tick  bool // wall-clock tick interval elapsed
}

// Controller drives the simulation.
type Controller struct {
	topology *Topology
	log      *slog.Logger

	// OnColor, when set, receives recoloring pushes for the UI.
	OnColor func(routerID uint32, color Color)
	// OnLog receives per-router log lines.
	OnLog func(routerID uint32, msg string)
	// OnTrace receives ping/traceroute session events.
	OnTrace func(routerID uint32, kind uint16, report *simproto.TraceReport)

	ln     net.Listener
	events chan event
	quit   chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	tick    uint32
	frozen  bool
	routers map[uint32]*routerState
	byConn  map[net.Conn]*routerState
	prints  *fingerprintIndex
}

// New returns a Controller for topology.
func New(topology *Topology, log *slog.Logger) *Controller {
	return &Controller{
		topology: topology,
		log:      log,
		events:   make(chan event, 64),
		quit:     make(chan struct{}),
		routers:  map[uint32]*routerState{},
		byConn:   map[net.Conn]*routerState{},
		prints:   newFingerprintIndex(),
	}
}

// Start binds the listening socket on addr (":0" for an ephemeral port)
// and begins accepting router connections and running the tick loop.
func (c *Controller) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sim: controller listen: %w", err)
	}
	c.ln = ln

	c.wg.Add(3)
	go c.acceptLoop()
	go c.tickClock()
	go c.mainLoop()
	return nil
}

// Addr returns the bound controller address for routers to dial.
func (c *Controller) Addr() string {
	if c.ln == nil {
		return ""
	}
	return c.ln.Addr().String()
}

// Shutdown sends SHUTDOWN to every router and stops the loops.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, rs := range c.routers {
		c.sendTo(rs, simproto.MsgShutdown, nil)
		_ = rs.conn.Close()
	}
	c.mu.Unlock()
	if c.ln != nil {
		_ = c.ln.Close()
	}
	close(c.quit)
	c.wg.Wait()
}

// Freeze pauses or resumes the virtual clock.
func (c *Controller) Freeze(frozen bool) {
	c.mu.Lock()
	c.frozen = frozen
	c.mu.Unlock()
}

// Tick reports the current virtual clock value.
func (c *Controller) Tick() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Colors returns a snapshot of each router's current color.
func (c *Controller) Colors() map[uint32]Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[uint32]Color{}
	for id, rs := range c.routers {
		out[id] = rs.color
	}
	for _, rt := range c.topology.Routers {
		if _, ok := out[rt.ID]; !ok {
			out[rt.ID] = ColorRed
		}
	}
	return out
}

// RestartHitless asks routerID to perform a graceful restart.
func (c *Controller) RestartHitless(routerID, graceSeconds uint32) error {
	req := simproto.RestartHitless{GraceSeconds: graceSeconds}
	return c.command(routerID, simproto.MsgRestartHitless, req.Encode())
}

// Restart asks routerID to discard and rebuild its engine.
func (c *Controller) Restart(routerID uint32) error {
	return c.command(routerID, simproto.MsgRestart, nil)
}

// StartPing begins a ping session from routerID toward dest.
func (c *Controller) StartPing(routerID, dest uint32) error {
	req := simproto.TraceRequest{Dest: dest}
	return c.command(routerID, simproto.MsgStartPing, req.Encode())
}

// StopPing ends a ping session.
func (c *Controller) StopPing(routerID, dest uint32) error {
	req := simproto.TraceRequest{Dest: dest}
	return c.command(routerID, simproto.MsgStopPing, req.Encode())
}

// StartTraceroute begins a traceroute from routerID toward dest.
func (c *Controller) StartTraceroute(routerID, dest uint32) error {
	req := simproto.TraceRequest{Dest: dest}
	return c.command(routerID, simproto.MsgStartTR, req.Encode())
}

// StartMtrace begins a multicast traceroute from routerID for (source,
// group).
func (c *Controller) StartMtrace(routerID, source, group uint32) error {
	req := simproto.TraceRequest{Dest: group, Source: source}
	return c.command(routerID, simproto.MsgStartMtrace, req.Encode())
}

// AddMember declares a local group member on a router's interface.
func (c *Controller) AddMember(routerID, group uint32, phyint int32) error {
	req := simproto.Member{Group: group, PhyInt: phyint}
	return c.command(routerID, simproto.MsgAddMember, req.Encode())
}

// DelMember removes a local group member.
func (c *Controller) DelMember(routerID, group uint32, phyint int32) error {
	req := simproto.Member{Group: group, PhyInt: phyint}
	return c.command(routerID, simproto.MsgDelMember, req.Encode())
}

func (c *Controller) command(routerID uint32, typ uint16, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.routers[routerID]
	if !ok {
		return fmt.Errorf("sim: router %d not attached", routerID)
	}
	c.sendTo(rs, typ, body)
	return nil
}

func (c *Controller) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.log.Error("controller accept failed", "error", err)
			}
			return
		}
		go c.readLoop(conn)
	}
}

func (c *Controller) readLoop(conn net.Conn) {
	r := frame.NewReader(conn)
	for {
		f, err := frame.Read(r)
		select {
		case c.events <- event{conn: conn, frame: f, err: err}:
		case <-c.quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// tickClock emits a wall-clock pulse every 1000/TICKS_PER_SECOND ms; the
// main loop decides on each pulse whether the virtual clock may advance.
func (c *Controller) tickClock() {
	defer c.wg.Done()
	interval := time.Second / simproto.TicksPerSecond
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-t.C:
			select {
			case c.events <- event{tick: true}:
			default:
				// Main loop is behind; skipping a pulse just delays the
				// next virtual tick, it never skips one.
			}
		}
	}
}

// mainLoop serializes all controller state changes.
func (c *Controller) mainLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.events:
			switch {
			case ev.tick:
				c.maybeAdvance()
			case ev.err != nil:
				c.routerDisconnected(ev.conn)
			default:
				c.handleFrame(ev.conn, ev.frame)
			}
		}
	}
}

// maybeAdvance advances the virtual clock iff every attached router has
// acknowledged the current tick.
func (c *Controller) maybeAdvance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen || len(c.routers) == 0 {
		return
	}
	for _, rs := range c.routers {
		if rs.lastAck < c.tick {
			return
		}
	}
	c.tick++
	t := simproto.Tick{Tick: c.tick}
	for _, rs := range c.routers {
		c.sendTo(rs, simproto.MsgTick, t.Encode())
	}
}

func (c *Controller) handleFrame(conn net.Conn, f frame.Frame) {
	switch f.Type {
	case simproto.MsgHello:
		hello, err := simproto.DecodeHello(f.Body)
		if err != nil {
			c.log.Error("bad hello", "error", err)
			_ = conn.Close()
			return
		}
		c.routerAttached(conn, hello)

	case simproto.MsgTickResponse:
		resp, err := simproto.DecodeTickResponse(f.Body)
		if err != nil {
			return
		}
		c.recordAck(conn, resp)

	case simproto.MsgLogMsg:
		c.mu.Lock()
		rs := c.byConn[conn]
		c.mu.Unlock()
		if rs != nil && c.OnLog != nil {
			c.OnLog(rs.id, string(f.Body))
		}

	case simproto.MsgEchoReply, simproto.MsgIcmpError, simproto.MsgTracerouteTTL,
		simproto.MsgTracerouteTmo, simproto.MsgTracerouteDone, simproto.MsgPrintSession:
		c.mu.Lock()
		rs := c.byConn[conn]
		c.mu.Unlock()
		if rs == nil || c.OnTrace == nil {
			return
		}
		if rep, err := simproto.DecodeTraceReport(f.Body); err == nil {
			c.OnTrace(rs.id, f.Type, rep)
		}
	}
}

// routerAttached registers a newly connected router: push it the complete
// address map, push its addresses to everyone else, send its
// configuration, and start its clock.
func (c *Controller) routerAttached(conn net.Conn, hello *simproto.Hello) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs := &routerState{id: hello.RouterID, conn: conn, udpPort: hello.UDPPort, lastAck: c.tick, color: ColorWhite}
	c.routers[hello.RouterID] = rs
	c.byConn[conn] = rs

	full := c.buildAddrMap(0)
	full.Full = true
	c.sendTo(rs, simproto.MsgAddrMap, full.Encode())

	incr := c.buildAddrMap(hello.RouterID)
	for id, other := range c.routers {
		if id == hello.RouterID {
			continue
		}
		c.sendTo(other, simproto.MsgAddrMap, incr.Encode())
	}

	for _, rt := range c.topology.Routers {
		if rt.ID != hello.RouterID {
			continue
		}
		body, err := rt.Config.Encode()
		if err != nil {
			c.log.Error("config encode failed", "router", hello.RouterID, "error", err)
			break
		}
		c.sendTo(rs, simproto.MsgConfig, body)
		break
	}

	first := simproto.Tick{Tick: c.tick}
	c.sendTo(rs, simproto.MsgFirstTick, first.Encode())
	c.log.Info("router attached", "router_id", hello.RouterID, "udp_port", hello.UDPPort)
}

// buildAddrMap assembles address-map entries and network memberships. A
// zero onlyRouter builds the full map; otherwise only that router's
// addresses are included (the incremental push), though network
// memberships are always complete since they change for everyone.
func (c *Controller) buildAddrMap(onlyRouter uint32) *simproto.AddrMap {
	m := &simproto.AddrMap{}
	nets := map[uint32][]uint32{}
	for _, rt := range c.topology.Routers {
		rs, attached := c.routers[rt.ID]
		for _, ic := range rt.Config.Interfaces {
			addr := router.ParseAddr(ic.Addr)
			mask := router.ParseAddr(ic.Mask)
			if attached && (onlyRouter == 0 || onlyRouter == rt.ID) {
				m.Entries = append(m.Entries, simproto.AddrMapEntry{
					Addr:     addr,
					RouterID: rt.ID,
					UDPPort:  rs.udpPort,
				})
			}
			network := addr & mask
			nets[network] = append(nets[network], rt.ID)
		}
	}
	for network, members := range nets {
		m.Nets = append(m.Nets, simproto.NetMembers{Network: network, Routers: members})
	}
	return m
}

// recordAck notes a tick acknowledgment and recolors from its fingerprint.
func (c *Controller) recordAck(conn net.Conn, resp *simproto.TickResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := c.byConn[conn]
	if rs == nil {
		return
	}
	if resp.Tick > rs.lastAck {
		rs.lastAck = resp.Tick
	}
	c.prints.update(rs.stats, rs.hasStats, resp.Stats)
	rs.stats = resp.Stats
	rs.hasStats = true
	c.recolorLocked()
}

// routerDisconnected handles a closed connection: the router colors red and
// the clock keeps running for the survivors.
func (c *Controller) routerDisconnected(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := c.byConn[conn]
	if rs == nil {
		return
	}
	delete(c.byConn, conn)
	delete(c.routers, rs.id)
	if rs.hasStats {
		c.prints.drop(rs.stats)
	}
	rs.color = ColorRed
	if c.OnColor != nil {
		c.OnColor(rs.id, ColorRed)
	}
	c.recolorLocked()
	c.log.Info("router disconnected", "router_id", rs.id)
}

// recolorLocked reassigns every attached router's color and pushes changes
// to the UI. Caller holds c.mu.
func (c *Controller) recolorLocked() {
	for _, rs := range c.routers {
		color := ColorWhite
		if rs.hasStats {
			color = c.prints.classify(rs.stats)
		}
		if color != rs.color {
			rs.color = color
			if c.OnColor != nil {
				c.OnColor(rs.id, color)
			}
		}
	}
}

// sendTo writes one frame to a router. Caller holds c.mu.
func (c *Controller) sendTo(rs *routerState, typ uint16, body []byte) {
	f := frame.Frame{Version: simproto.Version, Type: typ, Body: body}
	if _, err := f.WriteTo(rs.conn); err != nil {
		c.log.Debug("send to router failed", "router_id", rs.id, "type", typ, "error", err)
	}
}
