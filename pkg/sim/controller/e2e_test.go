package controller_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/sim/controller"
	"github.com/ospfd/ospfd/pkg/sim/router"
)

// TestTwoRouterConvergence drives the full simulation stack: a controller
// and two in-process simulated routers on a point-to-point link with
// accelerated timers. The routers must attach, the virtual clock must
// advance in lock-step, and both databases must converge to the same
// fingerprint (color green).
func TestTwoRouterConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("full simulation run")
	}

	mkConfig := func(addr string) *router.Config {
		return &router.Config{
			Areas: []router.AreaConfig{{ID: "0.0.0.0"}},
			Interfaces: []router.IfcConfig{{
				PhyInt:        1,
				Area:          "0.0.0.0",
				Addr:          addr,
				Mask:          "255.255.255.0",
				Type:          "p2p",
				Priority:      1,
				Cost:          1,
				HelloInterval: 1,
				DeadInterval:  4,
			}},
		}
	}

	topo := &controller.Topology{
		Routers: []controller.RouterTopology{
			{ID: 0x01010101, Config: mkConfig("10.0.0.1")},
			{ID: 0x02020202, Config: mkConfig("10.0.0.2")},
		},
	}

	ctrl := controller.New(topo, slog.Default())
	if err := ctrl.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("controller start: %v", err)
	}
	defer ctrl.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, rt := range topo.Routers {
		h := router.New(ospf.RouterID(rt.ID), ctrl.Addr(), t.TempDir(), slog.Default())
		go func() {
			_ = h.Run(ctx)
		}()
	}

	deadline := time.Now().Add(30 * time.Second)
	var lastTick uint32
	for time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)
		lastTick = ctrl.Tick()
		colors := ctrl.Colors()
		green := 0
		for _, c := range colors {
			if c == controller.ColorGreen {
				green++
			}
		}
		if green == 2 && lastTick > 0 {
			return // converged
		}
	}
	t.Fatalf("no convergence before deadline: tick=%d colors=%v", lastTick, ctrl.Colors())
}
