package engine

import (
	"testing"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

func routerLSA(seq int32, age uint16) *ospf.LSA {
	return &ospf.LSA{
		Header: ospf.LSAHeader{
			Type:           ospf.LSARouter,
			LSID:           0x01010101,
			AdvRouter:      0x01010101,
			SequenceNumber: seq,
			Age:            age,
			Checksum:       0x1234,
		},
		Body: &ospf.RouterLSA{},
	}
}

func TestIsNewerBySequence(t *testing.T) {
	db := NewLSDB()
	db.Install(routerLSA(10, 0), 0, false)

	newer := routerLSA(11, 0)
	if !db.IsNewer(&newer.Header) {
		t.Error("higher sequence should be newer")
	}
	older := routerLSA(9, 0)
	if db.IsNewer(&older.Header) {
		t.Error("lower sequence should not be newer")
	}
	missing := routerLSA(1, 0)
	missing.Header.LSID = 0x09090909
	if !db.IsNewer(&missing.Header) {
		t.Error("an LSA absent from the database is always newer")
	}
}

func TestIsNewerMaxAgeWins(t *testing.T) {
	db := NewLSDB()
	db.Install(routerLSA(10, 100), 0, false)

	flushed := routerLSA(10, ospf.MaxAge)
	if !db.IsNewer(&flushed.Header) {
		t.Error("MaxAge instance at the same sequence should be newer")
	}
}

func TestSameInstanceWithinMaxAgeDiff(t *testing.T) {
	db := NewLSDB()
	db.Install(routerLSA(10, 100), 0, false)

	same := routerLSA(10, 100+ospf.MaxAgeDiff)
	if !db.Same(&same.Header) {
		t.Error("age within MaxAgeDiff should be the same instance")
	}
	far := routerLSA(10, 100+ospf.MaxAgeDiff+1)
	if db.Same(&far.Header) {
		t.Error("age beyond MaxAgeDiff is a distinct instance")
	}
}

func TestNextGreaterIteration(t *testing.T) {
	db := NewLSDB()
	keys := []ospf.LSAKey{
		{Type: ospf.LSARouter, LSID: 1, AdvRouter: 1},
		{Type: ospf.LSARouter, LSID: 2, AdvRouter: 1},
		{Type: ospf.LSANetwork, LSID: 1, AdvRouter: 1},
	}
	for _, k := range keys {
		db.Install(&ospf.LSA{
			Header: ospf.LSAHeader{Type: k.Type, LSID: k.LSID, AdvRouter: k.AdvRouter, SequenceNumber: 1},
			Body:   &ospf.RouterLSA{},
		}, 0, false)
	}

	var walked []ospf.LSAKey
	cur := ospf.LSAKey{}
	for {
		lsa, ok := db.NextGreater(cur)
		if !ok {
			break
		}
		cur = lsa.Header.Key()
		walked = append(walked, cur)
	}
	if len(walked) != 3 {
		t.Fatalf("walked %d keys, want 3", len(walked))
	}
	// Keys order by (type, LSID, adv-router): both router-LSAs first.
	if walked[0].Type != ospf.LSARouter || walked[0].LSID != 1 {
		t.Errorf("first key = %v", walked[0])
	}
	if walked[2].Type != ospf.LSANetwork {
		t.Errorf("last key = %v", walked[2])
	}
}

func TestSweepRefreshSelfOriginatedOnly(t *testing.T) {
	db := NewLSDB()
	mine := routerLSA(5, 0)
	db.Install(mine, 0, true)
	theirs := routerLSA(5, 0)
	theirs.Header.AdvRouter = 0x02020202
	db.Install(theirs, 0, false)

	due := db.SweepRefresh(Seconds(ospf.LSRefreshTime))
	if len(due) != 1 {
		t.Fatalf("SweepRefresh returned %d keys, want 1", len(due))
	}
	if due[0].AdvRouter != 0x01010101 {
		t.Errorf("refresh due for %v, want the self-originated LSA", due[0])
	}
}

func TestSweepMaxAge(t *testing.T) {
	db := NewLSDB()
	db.Install(routerLSA(5, 0), 0, false)

	if got := db.SweepMaxAge(Seconds(10)); len(got) != 0 {
		t.Errorf("young LSA swept: %v", got)
	}
	if got := db.SweepMaxAge(Seconds(ospf.MaxAge)); len(got) != 1 {
		t.Errorf("aged LSA not swept (got %d)", len(got))
	}
}
