package rttbl

import "testing"

func ip(a, b, c, d uint32) uint32 { return a<<24 | b<<16 | c<<8 | d }

func TestBestMatchLongestPrefixWins(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Net: ip(10, 0, 0, 0), MaskLen: 8, PhyInt: 1})
	tbl.Insert(Entry{Net: ip(10, 1, 0, 0), MaskLen: 16, PhyInt: 2})
	tbl.Insert(Entry{Net: ip(10, 1, 1, 0), MaskLen: 24, PhyInt: 3})

	cases := []struct {
		addr    uint32
		wantPhy int
	}{
		{ip(10, 1, 1, 5), 3},
		{ip(10, 1, 2, 5), 2},
		{ip(10, 2, 0, 1), 1},
	}
	for _, tc := range cases {
		e, ok := tbl.BestMatch(tc.addr)
		if !ok {
			t.Fatalf("BestMatch(%08x): no match", tc.addr)
		}
		if e.PhyInt != tc.wantPhy {
			t.Errorf("BestMatch(%08x): phyint %d, want %d", tc.addr, e.PhyInt, tc.wantPhy)
		}
	}
}

func TestBestMatchNoRoute(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Net: ip(10, 0, 0, 0), MaskLen: 8, PhyInt: 1})
	if _, ok := tbl.BestMatch(ip(192, 168, 1, 1)); ok {
		t.Error("expected no match for address outside every prefix")
	}
}

func TestDefaultRoute(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Net: 0, MaskLen: 0, PhyInt: 9})
	e, ok := tbl.BestMatch(ip(8, 8, 8, 8))
	if !ok || e.PhyInt != 9 {
		t.Errorf("default route not matched: %+v ok=%v", e, ok)
	}
}

func TestInsertionOrderIrrelevant(t *testing.T) {
	// The same route set gives the same answers no matter the insertion
	// order.
	forward := New()
	forward.Insert(Entry{Net: ip(10, 0, 0, 0), MaskLen: 8, PhyInt: 1})
	forward.Insert(Entry{Net: ip(10, 1, 0, 0), MaskLen: 16, PhyInt: 2})

	backward := New()
	backward.Insert(Entry{Net: ip(10, 1, 0, 0), MaskLen: 16, PhyInt: 2})
	backward.Insert(Entry{Net: ip(10, 0, 0, 0), MaskLen: 8, PhyInt: 1})

	for _, addr := range []uint32{ip(10, 0, 0, 1), ip(10, 1, 0, 1), ip(10, 255, 0, 1)} {
		a, aok := forward.BestMatch(addr)
		b, bok := backward.BestMatch(addr)
		if aok != bok || (aok && a.PhyInt != b.PhyInt) {
			t.Errorf("order-dependent lookup for %08x: %+v vs %+v", addr, a, b)
		}
	}
}

func TestDeleteAndReplace(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Net: ip(10, 1, 0, 0), MaskLen: 16, PhyInt: 2})
	tbl.Insert(Entry{Net: ip(10, 1, 0, 0), MaskLen: 16, PhyInt: 7}) // replace
	if tbl.Len() != 1 {
		t.Fatalf("replace should not grow table: len=%d", tbl.Len())
	}
	e, _ := tbl.BestMatch(ip(10, 1, 2, 3))
	if e.PhyInt != 7 {
		t.Errorf("replacement not visible: %+v", e)
	}
	if !tbl.Delete(ip(10, 1, 0, 0), 16) {
		t.Fatal("Delete reported missing route")
	}
	if _, ok := tbl.BestMatch(ip(10, 1, 2, 3)); ok {
		t.Error("deleted route still matches")
	}
	if tbl.Delete(ip(10, 1, 0, 0), 16) {
		t.Error("second Delete should report false")
	}
}

func TestRejectRoute(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Net: ip(8, 0, 0, 0), MaskLen: 8, Reject: true})
	e, ok := tbl.BestMatch(ip(8, 1, 2, 3))
	if !ok || !e.Reject {
		t.Errorf("reject route not matched as reject: %+v ok=%v", e, ok)
	}
}

func TestMaskLenFromMask(t *testing.T) {
	cases := map[uint32]int{
		0xffffffff: 32,
		0xffffff00: 24,
		0xffff0000: 16,
		0xff000000: 8,
		0:          0,
	}
	for mask, want := range cases {
		if got := MaskLenFromMask(mask); got != want {
			t.Errorf("MaskLenFromMask(%08x) = %d, want %d", mask, got, want)
		}
	}
}
