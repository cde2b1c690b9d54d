package controller

import (
	"testing"

	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

func fp(n uint32) simproto.DBStats {
	return simproto.DBStats{AreaLSAs: n, AreaChecksum: n * 31}
}

func TestFingerprintClassification(t *testing.T) {
	idx := newFingerprintIndex()

	// Three routers share one fingerprint, one diverges, one is unique.
	idx.update(simproto.DBStats{}, false, fp(1))
	idx.update(simproto.DBStats{}, false, fp(1))
	idx.update(simproto.DBStats{}, false, fp(1))
	idx.update(simproto.DBStats{}, false, fp(2))
	idx.update(simproto.DBStats{}, false, fp(2))
	idx.update(simproto.DBStats{}, false, fp(3))

	if got := idx.classify(fp(1)); got != ColorGreen {
		t.Errorf("largest class = %s, want green", got)
	}
	if got := idx.classify(fp(2)); got != ColorOrange {
		t.Errorf("smaller class = %s, want orange", got)
	}
	if got := idx.classify(fp(3)); got != ColorWhite {
		t.Errorf("unique fingerprint = %s, want white", got)
	}
	if got := idx.classify(fp(9)); got != ColorRed {
		t.Errorf("unknown fingerprint = %s, want red", got)
	}
}

func TestFingerprintUpdateMoves(t *testing.T) {
	idx := newFingerprintIndex()
	idx.update(simproto.DBStats{}, false, fp(1))
	idx.update(simproto.DBStats{}, false, fp(1))

	// One router converges from fp(1) to fp(2): refcounts move with it.
	idx.update(fp(1), true, fp(2))
	if idx.counts[fp(1)] != 1 || idx.counts[fp(2)] != 1 {
		t.Errorf("counts after move: %v", idx.counts)
	}

	idx.drop(fp(1))
	if _, ok := idx.counts[fp(1)]; ok {
		t.Error("dropped fingerprint should be deleted at zero refs")
	}
}

func TestParseTopology(t *testing.T) {
	doc := []byte(`
routers:
  - router_id: 1.1.1.1
    areas:
      - id: 0.0.0.0
    interfaces:
      - phyint: 1
        area: 0.0.0.0
        addr: 10.1.1.1
        mask: 255.255.255.0
        type: broadcast
        priority: 1
  - router_id: 2.2.2.2
    areas:
      - id: 0.0.0.0
    interfaces:
      - phyint: 1
        area: 0.0.0.0
        addr: 10.1.1.2
        mask: 255.255.255.0
        type: broadcast
        priority: 2
`)
	topo, err := ParseTopology(doc)
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(topo.Routers) != 2 {
		t.Fatalf("routers = %d, want 2", len(topo.Routers))
	}
	if topo.Routers[0].ID != 0x01010101 {
		t.Errorf("first router id = %08x", topo.Routers[0].ID)
	}
	ic := topo.Routers[0].Config.Interfaces[0]
	if ic.HelloInterval != 10 || ic.DeadInterval != 40 || ic.Cost != 1 {
		t.Errorf("interface defaults not applied: %+v", ic)
	}
}

func TestParseTopologyRejectsEmpty(t *testing.T) {
	if _, err := ParseTopology([]byte("routers: []\n")); err == nil {
		t.Error("expected error for empty topology")
	}
	if _, err := ParseTopology([]byte("routers:\n  - router_id: not-an-ip\n")); err == nil {
		t.Error("expected error for invalid router_id")
	}
}
