package monitor

import (
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/platform/noop"
)

// newTestServer builds an engine with two areas and starts a monitor server
// for it on an ephemeral port.
func newTestServer(t *testing.T) (*Server, *engine.Router, string) {
	t.Helper()
	r := engine.NewRouter(0x01010101, noop.New(), slog.Default())
	r.CfgStart()
	r.CfgArea(1, false, 0)
	r.CfgArea(2, true, 10)
	r.CfgIfc(1, 1, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(2, 2, net.IPv4(10, 0, 2, 1), net.IPv4(255, 255, 255, 0), engine.IfaceBroadcast, 1, 1, 10, 40)
	r.CfgDone()

	s := NewServer(r, nil, slog.Default())
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s, r, s.Addr().String()
}

func TestStatistics(t *testing.T) {
	_, _, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	stats, err := c.Statistics()
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.RouterID != 0x01010101 {
		t.Errorf("router id = %08x", stats.RouterID)
	}
	if stats.Areas != 2 {
		t.Errorf("areas = %d, want 2", stats.Areas)
	}
	if stats.Interfaces != 2 {
		t.Errorf("interfaces = %d, want 2", stats.Interfaces)
	}
}

func TestAreaIterationEndsWithNotFound(t *testing.T) {
	_, _, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var areas []uint32
	a, err := c.FirstArea()
	for {
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			t.Fatalf("iteration: %v", err)
		}
		areas = append(areas, a.Area)
		a, err = c.Area(a.Area, false)
	}
	if len(areas) != 2 || areas[0] != 1 || areas[1] != 2 {
		t.Errorf("areas = %v, want [1 2] in ascending order", areas)
	}
}

func TestAreaExactLookup(t *testing.T) {
	_, _, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	a, err := c.Area(2, true)
	if err != nil {
		t.Fatalf("exact lookup: %v", err)
	}
	if a.Area != 2 || a.Flags&1 == 0 {
		t.Errorf("area 2 = %+v, want stub flag set", a)
	}

	if _, err := c.Area(9, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing area: err = %v, want ErrNotFound", err)
	}
}

func TestInterfaceIteration(t *testing.T) {
	_, _, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ifc, err := c.FirstInterface()
	if err != nil {
		t.Fatalf("FirstInterface: %v", err)
	}
	if ifc.PhyInt != 1 {
		t.Errorf("first interface phyint = %d, want 1", ifc.PhyInt)
	}
	ifc, err = c.Interface(ifc.PhyInt, false)
	if err != nil {
		t.Fatalf("next interface: %v", err)
	}
	if ifc.PhyInt != 2 {
		t.Errorf("second interface phyint = %d, want 2", ifc.PhyInt)
	}
	if _, err := c.Interface(ifc.PhyInt, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("iteration end: err = %v, want ErrNotFound", err)
	}
}

func TestLSAFetch(t *testing.T) {
	_, r, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// The engine originates its router-LSAs when interfaces come up.
	key := ospf.LSAKey{Type: ospf.LSARouter, LSID: 0x01010101, AdvRouter: 0x01010101}
	if _, ok := r.LookupLSA(1, key); !ok {
		t.Skip("engine has not originated a router-LSA for area 1")
	}

	resp, err := c.LSA(1, uint8(ospf.LSARouter), 0x01010101, 0x01010101, true)
	if err != nil {
		t.Fatalf("LSA fetch: %v", err)
	}
	if resp.LSA.Header.Type != ospf.LSARouter || resp.LSA.Header.AdvRouter != 0x01010101 {
		t.Errorf("fetched LSA = %+v", resp.LSA.Header)
	}
}

func TestResetStats(t *testing.T) {
	_, r, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Feed the engine garbage so the dropped counter is non-zero.
	r.Receive(1, net.IPv4(10, 0, 1, 2), []byte{0xff, 0xff})

	before, err := c.Statistics()
	if err != nil {
		t.Fatal(err)
	}
	if before.RxDropped == 0 {
		t.Fatal("precondition: dropped counter still zero")
	}

	if err := c.ResetStats(); err != nil {
		t.Fatalf("ResetStats: %v", err)
	}
	after, err := c.Statistics()
	if err != nil {
		t.Fatal(err)
	}
	if after.RxPackets != 0 || after.RxDropped != 0 {
		t.Errorf("counters not reset: %d/%d", after.RxPackets, after.RxDropped)
	}
}

func TestSetLogLevel(t *testing.T) {
	_, _, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.SetLogLevel(LogLevelWarn); err != nil {
		t.Fatalf("SetLogLevel: %v", err)
	}
	// Out-of-range codes are rejected with a non-zero retcode.
	if err := c.SetLogLevel(99); err == nil {
		t.Error("expected error for unknown log level code")
	}
}

func TestOpaqueSubscription(t *testing.T) {
	_, r, addr := newTestServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.RegisterOpaque(); err != nil {
		t.Fatalf("RegisterOpaque: %v", err)
	}

	// A hitless restart floods a grace-LSA, which is opaque.
	r.BeginHitlessRestart(50)

	done := make(chan *LSAResponse, 1)
	go func() {
		n, err := c.ReadOpaque()
		if err == nil {
			done <- n
		}
	}()
	select {
	case n := <-done:
		if n.LSA.Header.Type != ospf.LSAOpaqueLink {
			t.Errorf("notified LSA type = %s, want link-scope opaque", n.LSA.Header.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no opaque notification within 2s")
	}
}
