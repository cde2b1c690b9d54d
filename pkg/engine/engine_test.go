package engine_test

import (
	"log/slog"
	"net"
	"testing"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/platform"
)

// ============================================================================
// Test fabric
//
// A fabric wires several engines together in memory: each router gets a
// fabricPlatform whose SendPacket enqueues onto the fabric, and the fabric
// delivers queued packets to every other router on the same segment. Virtual
// time is advanced one second at a time; packet delivery is instantaneous
// within a step.
// ============================================================================

type fabric struct {
	t       *testing.T
	now     int64
	routers map[ospf.RouterID]*fabricNode
	queue   []fabricPacket
}

type fabricNode struct {
	router *engine.Router
	plat   *fabricPlatform
	// segs maps phyint -> segment name.
	segs map[int]string
	// addrs maps phyint -> interface address.
	addrs map[int]net.IP
}

type fabricPacket struct {
	from   ospf.RouterID
	phyint int
	gw     net.IP
	data   []byte
}

func newFabric(t *testing.T) *fabric {
	return &fabric{t: t, routers: map[ospf.RouterID]*fabricNode{}}
}

// addRouter creates an engine attached to the fabric.
func (f *fabric) addRouter(id ospf.RouterID) *fabricNode {
	node := &fabricNode{segs: map[int]string{}, addrs: map[int]net.IP{}}
	node.plat = &fabricPlatform{fabric: f, id: id}
	node.router = engine.NewRouter(id, node.plat, slog.Default())
	f.routers[id] = node
	return node
}

// attach records that node's phyint sits on the named segment with addr.
func (f *fabric) attach(node *fabricNode, phyint int, segment string, addr net.IP) {
	node.segs[phyint] = segment
	node.addrs[phyint] = addr
}

// run advances virtual time by seconds, ticking every router once per
// second and draining the packet queue after each tick round.
func (f *fabric) run(seconds int64) {
	for i := int64(0); i < seconds; i++ {
		f.now++
		for _, node := range f.routers {
			node.router.Tick(engine.Seconds(f.now))
		}
		f.drain()
	}
}

// drain delivers queued packets until quiescence.
func (f *fabric) drain() {
	for rounds := 0; len(f.queue) > 0; rounds++ {
		if rounds > 1000 {
			f.t.Fatal("fabric did not quiesce after 1000 delivery rounds")
		}
		pkt := f.queue[0]
		f.queue = f.queue[1:]
		f.deliver(pkt)
	}
}

func (f *fabric) deliver(pkt fabricPacket) {
	sender := f.routers[pkt.from]
	segment, ok := sender.segs[pkt.phyint]
	if !ok {
		return
	}
	src := sender.addrs[pkt.phyint]

	unicast := pkt.gw != nil && !pkt.gw.IsMulticast() && !pkt.gw.Equal(net.IPv4zero)
	for id, node := range f.routers {
		if id == pkt.from {
			continue
		}
		for phyint, seg := range node.segs {
			if seg != segment {
				continue
			}
			if unicast && !node.addrs[phyint].Equal(pkt.gw) {
				continue
			}
			node.router.Receive(phyint, src, append([]byte(nil), pkt.data...))
		}
	}
}

// fabricPlatform implements platform.Platform against the fabric.
type fabricPlatform struct {
	fabric *fabric
	id     ospf.RouterID

	hitlessStores []hitlessStore
	halted        bool
}

type hitlessStore struct {
	grace uint32
	seqs  []platform.InterfaceMD5Seq
}

func (p *fabricPlatform) SendPacket(pkt []byte, phyint int, gw net.IP) error {
	p.fabric.queue = append(p.fabric.queue, fabricPacket{from: p.id, phyint: phyint, gw: gw, data: pkt})
	return nil
}

func (p *fabricPlatform) SendPacketRouted(pkt []byte) error { return nil }
func (p *fabricPlatform) PhyOperational(phyint int) bool    { return true }
func (p *fabricPlatform) PhyOpen(phyint int) error          { return nil }
func (p *fabricPlatform) PhyClose(phyint int) error         { return nil }
func (p *fabricPlatform) Join(group net.IP, phyint int) error  { return nil }
func (p *fabricPlatform) Leave(group net.IP, phyint int) error { return nil }
func (p *fabricPlatform) IPForward(enable bool) error          { return nil }
func (p *fabricPlatform) SetMulticastRouting(enable bool) error { return nil }
func (p *fabricPlatform) SetMulticastRoutingOnInterface(phyint int, enable bool) error {
	return nil
}
func (p *fabricPlatform) RouteAdd(dest net.IPNet, mpath, old []platform.MultiPath, reject bool) error {
	return nil
}
func (p *fabricPlatform) RouteDelete(dest net.IPNet, old []platform.MultiPath) error { return nil }
func (p *fabricPlatform) AddMcache(src, grp net.IP, entry platform.MulticastCacheEntry) error {
	return nil
}
func (p *fabricPlatform) DelMcache(src, grp net.IP) error          { return nil }
func (p *fabricPlatform) UploadRemnants() ([]platform.Remnant, error) { return nil, nil }
func (p *fabricPlatform) PhyName(phyint int) string                { return "test" }
func (p *fabricPlatform) SysSPFLog(code int, msg string)           {}
func (p *fabricPlatform) StoreHitlessParms(grace uint32, seqs []platform.InterfaceMD5Seq) error {
	p.hitlessStores = append(p.hitlessStores, hitlessStore{grace: grace, seqs: seqs})
	return nil
}
func (p *fabricPlatform) Halt(code int, msg string) { p.halted = true }
func (p *fabricPlatform) SysElapsedTime() (int64, int64) {
	return p.fabric.now, p.fabric.now * 1000
}

// configureIfc brackets one-interface configuration on node.
func configureIfc(node *fabricNode, phyint int, area ospf.AreaID, addr, mask net.IP, typ engine.IfaceType, priority uint8) {
	r := node.router
	r.CfgStart()
	r.CfgArea(area, false, 0)
	r.CfgIfc(phyint, area, addr, mask, typ, priority, 1, 10, 40)
	r.CfgDone()
}

func neighborState(t *testing.T, r *engine.Router) engine.NbrState {
	t.Helper()
	info, ok := r.FirstNeighbor()
	if !ok {
		return engine.NbrDown
	}
	return info.State
}

// ============================================================================
// Scenario: two routers on a point-to-point link reach Full and hold
// identical databases.
// ============================================================================

func TestP2PAdjacencyReachesFull(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x01010101) // 1.1.1.1
	b := f.addRouter(0x02020202) // 2.2.2.2
	f.attach(a, 1, "p2p", net.IPv4(10, 0, 0, 1))
	f.attach(b, 1, "p2p", net.IPv4(10, 0, 0, 2))

	configureIfc(a, 1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	configureIfc(b, 1, ospf.Backbone, net.IPv4(10, 0, 0, 2), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)

	f.run(80)

	if got := neighborState(t, a.router); got != engine.NbrFull {
		t.Fatalf("router A neighbor state = %s, want Full", got)
	}
	if got := neighborState(t, b.router); got != engine.NbrFull {
		t.Fatalf("router B neighbor state = %s, want Full", got)
	}

	sa, sb := a.router.DBStats(), b.router.DBStats()
	if sa.AreaLSAs != 2 {
		t.Errorf("router A database holds %d LSAs, want 2 router-LSAs", sa.AreaLSAs)
	}
	if sa != sb {
		t.Errorf("database fingerprints diverge after convergence: %+v vs %+v", sa, sb)
	}
}

// ============================================================================
// Scenario: three routers on a broadcast segment elect the highest-priority
// DR and second-highest BDR; the network-LSA's LS-ID is the DR's interface
// address.
// ============================================================================

func TestBroadcastDRElection(t *testing.T) {
	f := newFabric(t)
	ids := []ospf.RouterID{0x0a000001, 0x0a000002, 0x0a000003}
	prios := []uint8{0, 1, 2}
	nodes := make([]*fabricNode, 3)
	for i, id := range ids {
		nodes[i] = f.addRouter(id)
		addr := net.IPv4(10, 1, 1, byte(i+1))
		f.attach(nodes[i], 1, "lan", addr)
		configureIfc(nodes[i], 1, ospf.Backbone, addr, net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, prios[i])
	}

	f.run(120)

	for i, node := range nodes {
		info, ok := node.router.FirstInterface()
		if !ok {
			t.Fatalf("router %d has no interface", i)
		}
		if info.DR != ids[2] {
			t.Errorf("router %s sees DR %s, want %s", ids[i], info.DR, ids[2])
		}
		if info.BDR != ids[1] {
			t.Errorf("router %s sees BDR %s, want %s", ids[i], info.BDR, ids[1])
		}
	}

	// The DR originates the network-LSA keyed by its own interface address.
	drAddr := uint32(10<<24 | 1<<16 | 1<<8 | 3)
	key := ospf.LSAKey{Type: ospf.LSANetwork, LSID: drAddr, AdvRouter: ids[2]}
	for i, node := range nodes {
		if _, ok := node.router.LookupLSA(ospf.Backbone, key); !ok {
			t.Errorf("router %s is missing the network-LSA %v", ids[i], key)
		}
	}
}

// ============================================================================
// Scenario: an external route redistributed at one router reaches the other
// as a type-2 external route, and withdrawal flushes it.
// ============================================================================

func TestExternalRedistribution(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x0a000001)
	b := f.addRouter(0x0a000002)
	f.attach(a, 1, "p2p", net.IPv4(10, 0, 0, 1))
	f.attach(b, 1, "p2p", net.IPv4(10, 0, 0, 2))
	configureIfc(a, 1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	configureIfc(b, 1, ospf.Backbone, net.IPv4(10, 0, 0, 2), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	f.run(80)

	dest := engine.Destination{Net: net.IPv4(8, 0, 0, 0), Mask: net.IPv4(255, 0, 0, 0)}
	a.router.CfgStart()
	a.router.CfgArea(ospf.Backbone, false, 0)
	a.router.CfgIfc(1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1, 1, 10, 40)
	a.router.CfgExRt(dest, 10, true, nil, 0)
	a.router.CfgDone()
	f.run(10)

	route, ok := b.router.BestMatch(net.IPv4(8, 1, 2, 3))
	if !ok {
		t.Fatal("router B has no route for 8.0.0.0/8")
	}
	if route.PathType != engine.PathType2External {
		t.Errorf("route path type = %s, want type-2-external", route.PathType)
	}
	if route.Type2Cost != 10 {
		t.Errorf("route type-2 cost = %d, want 10", route.Type2Cost)
	}

	// Withdraw: reassert everything except the external route.
	a.router.CfgStart()
	a.router.CfgArea(ospf.Backbone, false, 0)
	a.router.CfgIfc(1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1, 1, 10, 40)
	a.router.CfgDone()
	f.run(10)

	if _, ok := b.router.BestMatch(net.IPv4(8, 1, 2, 3)); ok {
		t.Error("router B still routes 8.0.0.0/8 after withdrawal")
	}
}

// ============================================================================
// Scenario: the AS-external ceiling suspends type-5 origination.
// ============================================================================

func TestExternalOverflow(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x0a000001)
	f.attach(a, 1, "lan", net.IPv4(10, 0, 0, 1))
	configureIfc(a, 1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1)
	a.router.SetASExternalLimit(2, 60)

	a.router.CfgStart()
	a.router.CfgArea(ospf.Backbone, false, 0)
	a.router.CfgIfc(1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	for i := 0; i < 3; i++ {
		a.router.CfgExRt(engine.Destination{
			Net:  net.IPv4(byte(20+i), 0, 0, 0),
			Mask: net.IPv4(255, 0, 0, 0),
		}, 5, false, nil, 0)
	}
	a.router.CfgDone()
	f.run(2)

	if got := a.router.Stats().ASExternals; got != 2 {
		t.Errorf("type-5 LSA count = %d, want exactly 2 at the ceiling", got)
	}
	if !a.router.InOverflow() {
		t.Error("router should be in overflow after exceeding the ceiling")
	}

	// Deconfigure one external; after the exit interval passes the router
	// leaves overflow and re-originates the remaining set.
	a.router.CfgStart()
	a.router.CfgArea(ospf.Backbone, false, 0)
	a.router.CfgIfc(1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	for i := 0; i < 2; i++ {
		a.router.CfgExRt(engine.Destination{
			Net:  net.IPv4(byte(20+i), 0, 0, 0),
			Mask: net.IPv4(255, 0, 0, 0),
		}, 5, false, nil, 0)
	}
	a.router.CfgDone()
	f.run(70)

	if a.router.InOverflow() {
		t.Error("router should have exited overflow after the exit interval")
	}
}

// ============================================================================
// Scenario: hitless restart persists parameters and marks the router
// restarting; the neighbor enters helper mode on the grace-LSA.
// ============================================================================

func TestHitlessRestartRoundTrip(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x01010101)
	b := f.addRouter(0x02020202)
	f.attach(a, 1, "p2p", net.IPv4(10, 0, 0, 1))
	f.attach(b, 1, "p2p", net.IPv4(10, 0, 0, 2))
	configureIfc(a, 1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	configureIfc(b, 1, ospf.Backbone, net.IPv4(10, 0, 0, 2), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	f.run(80)

	if got := neighborState(t, a.router); got != engine.NbrFull {
		t.Fatalf("precondition: adjacency not full (%s)", got)
	}

	a.router.BeginHitlessRestart(100)
	f.drain()

	if len(a.plat.hitlessStores) != 1 {
		t.Fatalf("StoreHitlessParms called %d times, want 1", len(a.plat.hitlessStores))
	}
	if a.plat.hitlessStores[0].grace != 100 {
		t.Errorf("persisted grace period = %d, want 100", a.plat.hitlessStores[0].grace)
	}
	if !a.router.Stats().Restarting {
		t.Error("router A should report restarting")
	}

	// B saw the grace-LSA and entered helper mode for A.
	info, ok := b.router.FirstNeighbor()
	if !ok {
		t.Fatal("router B lost its neighbor")
	}
	if !info.Helper {
		t.Error("router B should be helping A through the restart")
	}

	// B stays Full throughout.
	if info.State != engine.NbrFull {
		t.Errorf("router B neighbor state = %s, want Full during grace", info.State)
	}

	// The grace period expiring on A ends the restart and flushes the
	// grace-LSA; B exits helper mode when its own grace tracking expires.
	f.run(110)
	if a.router.Stats().Restarting {
		t.Error("router A should have exited the restart after the grace period")
	}
	info, _ = b.router.FirstNeighbor()
	if info.Helper {
		t.Error("router B should have exited helper mode after the grace period")
	}
}

// ============================================================================
// Monitor iteration semantics.
// ============================================================================

func TestAreaIterationOrder(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x01010101)
	f.attach(a, 1, "s1", net.IPv4(10, 0, 1, 1))
	f.attach(a, 2, "s2", net.IPv4(10, 0, 2, 1))

	a.router.CfgStart()
	a.router.CfgArea(1, false, 0)
	a.router.CfgArea(2, false, 0)
	a.router.CfgIfc(1, 1, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	a.router.CfgIfc(2, 2, net.IPv4(10, 0, 2, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	a.router.CfgDone()

	first, ok := a.router.FirstArea()
	if !ok || first.ID != 1 {
		t.Fatalf("FirstArea = %+v ok=%v, want area 1", first, ok)
	}
	second, ok := a.router.NextArea(first.ID, false)
	if !ok || second.ID != 2 {
		t.Fatalf("NextArea(1) = %+v ok=%v, want area 2", second, ok)
	}
	if _, ok := a.router.NextArea(second.ID, false); ok {
		t.Error("iteration past the last area should report not-found")
	}

	if _, ok := a.router.NextArea(2, true); !ok {
		t.Error("exact lookup of area 2 should succeed")
	}
	if _, ok := a.router.NextArea(7, true); ok {
		t.Error("exact lookup of an unconfigured area should fail")
	}
}

// ============================================================================
// Self-origination freshness: a received stale self-originated LSA triggers
// re-origination with a higher sequence number.
// ============================================================================

func TestSelfOriginatedSequenceAdvances(t *testing.T) {
	f := newFabric(t)
	a := f.addRouter(0x01010101)
	b := f.addRouter(0x02020202)
	f.attach(a, 1, "p2p", net.IPv4(10, 0, 0, 1))
	f.attach(b, 1, "p2p", net.IPv4(10, 0, 0, 2))
	configureIfc(a, 1, ospf.Backbone, net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	configureIfc(b, 1, ospf.Backbone, net.IPv4(10, 0, 0, 2), net.IPv4(255, 255, 255, 0), engine.IfacePointToPoint, 1)
	f.run(80)

	key := ospf.LSAKey{Type: ospf.LSARouter, LSID: 0x01010101, AdvRouter: 0x01010101}
	lsaA, ok := a.router.LookupLSA(ospf.Backbone, key)
	if !ok {
		t.Fatal("router A has no router-LSA for itself")
	}
	lsaB, ok := b.router.LookupLSA(ospf.Backbone, key)
	if !ok {
		t.Fatal("router B never learned A's router-LSA")
	}
	if lsaA.Header.SequenceNumber != lsaB.Header.SequenceNumber {
		t.Errorf("sequence numbers diverge: A=%d B=%d",
			lsaA.Header.SequenceNumber, lsaB.Header.SequenceNumber)
	}
	if lsaA.Header.SequenceNumber < ospf.InitialSequenceNum {
		t.Errorf("sequence number %d below initial", lsaA.Header.SequenceNumber)
	}
}
