package engine

import (
	"log/slog"
	"net"
	"testing"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/platform/noop"
)

// newABR builds a router bordering areas 1 and 2, one interface in each.
func newABR(t *testing.T) *Router {
	t.Helper()
	r := NewRouter(0x01010101, noop.New(), slog.Default())
	r.CfgStart()
	r.CfgArea(1, false, 0)
	r.CfgArea(2, false, 0)
	r.CfgIfc(1, 1, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(2, 2, net.IPv4(10, 0, 2, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgDone()
	return r
}

func TestABROriginatesSummaries(t *testing.T) {
	r := newABR(t)

	// Area 1's connected network must appear as a type-3 summary in area 2.
	key := ospf.LSAKey{Type: ospf.LSASummary, LSID: 0x0a000100, AdvRouter: 0x01010101}
	lsa, ok := r.areas[2].LSDB.Lookup(key)
	if !ok {
		t.Fatal("no summary for 10.0.1.0/24 in area 2")
	}
	body := lsa.Body.(*ospf.SummaryLSA)
	if body.NetworkMask != 0xffffff00 {
		t.Errorf("summary mask = %08x", body.NetworkMask)
	}

	// And symmetrically area 2's network into area 1.
	key2 := ospf.LSAKey{Type: ospf.LSASummary, LSID: 0x0a000200, AdvRouter: 0x01010101}
	if _, ok := r.areas[1].LSDB.Lookup(key2); !ok {
		t.Error("no summary for 10.0.2.0/24 in area 1")
	}
}

func TestRangeCollapsesSummaries(t *testing.T) {
	r := NewRouter(0x01010101, noop.New(), slog.Default())
	r.CfgStart()
	r.CfgArea(1, false, 0)
	r.CfgArea(2, false, 0)
	r.CfgIfc(1, 1, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(2, 1, net.IPv4(10, 0, 2, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(3, 2, net.IPv4(10, 1, 0, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgRnge(1, net.IPv4(10, 0, 0, 0), net.IPv4(255, 255, 0, 0), false)
	r.CfgDone()

	// The two area-1 networks collapse into the one configured range.
	rangeKey := ospf.LSAKey{Type: ospf.LSASummary, LSID: 0x0a000000, AdvRouter: 0x01010101}
	if _, ok := r.areas[2].LSDB.Lookup(rangeKey); !ok {
		t.Error("range summary 10.0.0.0/16 not originated into area 2")
	}
	componentKey := ospf.LSAKey{Type: ospf.LSASummary, LSID: 0x0a000100, AdvRouter: 0x01010101}
	if _, ok := r.areas[2].LSDB.Lookup(componentKey); ok {
		t.Error("component network advertised despite covering range")
	}
}

func TestSuppressedRangeAdvertisesNothing(t *testing.T) {
	r := NewRouter(0x01010101, noop.New(), slog.Default())
	r.CfgStart()
	r.CfgArea(1, false, 0)
	r.CfgArea(2, false, 0)
	r.CfgIfc(1, 1, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(2, 2, net.IPv4(10, 1, 0, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgRnge(1, net.IPv4(10, 0, 0, 0), net.IPv4(255, 255, 0, 0), true)
	r.CfgDone()

	for _, lsa := range r.areas[2].LSDB.All() {
		if lsa.Header.Type == ospf.LSASummary && lsa.Header.LSID>>16 == 0x0a00 && lsa.Header.AgeValue() < ospf.MaxAge {
			t.Errorf("suppressed range leaked summary %v", lsa.Header.Key())
		}
	}
}

func TestStubAreaGetsDefaultSummary(t *testing.T) {
	r := NewRouter(0x01010101, noop.New(), slog.Default())
	r.CfgStart()
	r.CfgArea(0, false, 0)
	r.CfgArea(5, true, 7)
	r.CfgIfc(1, 0, net.IPv4(10, 0, 1, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgIfc(2, 5, net.IPv4(10, 0, 2, 1), net.IPv4(255, 255, 255, 0), IfaceBroadcast, 1, 1, 10, 40)
	r.CfgDone()

	key := ospf.LSAKey{Type: ospf.LSASummary, LSID: 0, AdvRouter: 0x01010101}
	lsa, ok := r.areas[5].LSDB.Lookup(key)
	if !ok {
		t.Fatal("stub area has no default summary")
	}
	if lsa.Body.(*ospf.SummaryLSA).Metric != 7 {
		t.Errorf("default summary cost = %d, want the configured stub default 7", lsa.Body.(*ospf.SummaryLSA).Metric)
	}
}

func TestMCLookupCachesNegativeEntry(t *testing.T) {
	r := newABR(t)
	src := net.IPv4(192, 168, 9, 9) // unreachable source
	grp := net.IPv4(224, 1, 1, 1)

	e1 := r.MCLookup(src, grp)
	if len(e1.Upstream) != 0 || len(e1.Downstream) != 0 {
		t.Errorf("unreachable source should give a negative entry: %+v", e1)
	}
	e2 := r.MCLookup(src, grp)
	if e1 != e2 {
		t.Error("second lookup should return the cached entry")
	}
}

func TestJoinIndicationOriginatesGroupLSA(t *testing.T) {
	r := newABR(t)
	grp := net.IPv4(224, 1, 1, 1)
	r.JoinIndication(grp, 1)

	key := ospf.LSAKey{Type: ospf.LSAGroupMember, LSID: 0xe0010101, AdvRouter: 0x01010101}
	if _, ok := r.areas[1].LSDB.Lookup(key); !ok {
		t.Fatal("no group-membership-LSA after join")
	}

	r.LeaveIndication(grp, 1)
	lsa, ok := r.areas[1].LSDB.Lookup(key)
	if ok && lsa.Header.AgeValue() < ospf.MaxAge {
		t.Error("group-membership-LSA not flushed after last leave")
	}
}
