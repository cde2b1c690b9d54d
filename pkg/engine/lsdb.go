package engine

import (
	"sort"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

// lsdbEntry is one stored LSA plus the bookkeeping the engine needs beyond
// what's in the wire header: when it was last refreshed/aged, and whether it
// is this router's own origination (and therefore subject to re-origination
// on MinLSInterval rather than just aging).
type lsdbEntry struct {
	lsa        *ospf.LSA
	installed  Seconds
	selfOrigin bool
}

// LSDB is a composite-key link-state database, storing LSAs of a single
// flooding scope (one area, or the AS-wide external/opaque-AS scope).
// A map keyed on (Type, LSID, AdvRouter) replaces the AVL/patricia trees of
// balanced-tree stores of older implementations; Go's map together with
// a sorted-key walk for iteration gives next-greater-key semantics (needed by
// the monitor protocol) without a balanced tree.
type LSDB struct {
	entries map[ospf.LSAKey]*lsdbEntry
}

// NewLSDB returns an empty database.
func NewLSDB() *LSDB {
	return &LSDB{entries: map[ospf.LSAKey]*lsdbEntry{}}
}

// Lookup returns the LSA stored under key, if any.
func (d *LSDB) Lookup(key ospf.LSAKey) (*ospf.LSA, bool) {
	e, ok := d.entries[key]
	if !ok {
		return nil, false
	}
	return e.lsa, true
}

// Install stores lsa, overwriting any previous instance under the same key.
// now is the engine's current elapsed-seconds reading, recorded so MaxAge
// sweeps and MinLSInterval/LSRefreshTime checks have a reference point.
func (d *LSDB) Install(lsa *ospf.LSA, now Seconds, selfOrigin bool) {
	d.entries[lsa.Header.Key()] = &lsdbEntry{lsa: lsa, installed: now, selfOrigin: selfOrigin}
}

// Remove deletes the LSA stored under key.
func (d *LSDB) Remove(key ospf.LSAKey) { delete(d.entries, key) }

// IsNewer reports whether candidate is more recent than whatever is
// currently installed under its key, per RFC 2328 §13.1's three-part
// precedence: sequence number, then checksum, then age (MaxAge wins, and
// within MaxAgeDiff seconds the two are considered the same instance).
func (d *LSDB) IsNewer(candidate *ospf.LSAHeader) bool {
	cur, ok := d.Lookup(candidate.Key())
	if !ok {
		return true
	}
	ch := cur.Header
	if candidate.SequenceNumber != ch.SequenceNumber {
		return candidate.SequenceNumber > ch.SequenceNumber
	}
	if candidate.Checksum != ch.Checksum {
		return candidate.Checksum > ch.Checksum
	}
	candAge, curAge := candidate.AgeValue(), ch.AgeValue()
	if candAge == ospf.MaxAge && curAge != ospf.MaxAge {
		return true
	}
	if curAge == ospf.MaxAge && candAge != ospf.MaxAge {
		return false
	}
	return false // identical instance
}

// Same reports whether candidate and the stored instance are the same
// instance per RFC 2328 §13.1 (equal sequence, checksum, and age within
// MaxAgeDiff).
func (d *LSDB) Same(candidate *ospf.LSAHeader) bool {
	cur, ok := d.Lookup(candidate.Key())
	if !ok {
		return false
	}
	ch := cur.Header
	if candidate.SequenceNumber != ch.SequenceNumber || candidate.Checksum != ch.Checksum {
		return false
	}
	diff := int(candidate.AgeValue()) - int(ch.AgeValue())
	if diff < 0 {
		diff = -diff
	}
	return diff <= ospf.MaxAgeDiff
}

// All returns every stored LSA, ordered by key for deterministic iteration.
func (d *LSDB) All() []*ospf.LSA {
	keys := d.sortedKeys()
	out := make([]*ospf.LSA, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.entries[k].lsa)
	}
	return out
}

// NextGreater returns the first stored LSA whose key sorts strictly after
// after, for the monitor protocol's next-greater-key iteration.
func (d *LSDB) NextGreater(after ospf.LSAKey) (*ospf.LSA, bool) {
	keys := d.sortedKeys()
	idx := sort.Search(len(keys), func(i int) bool { return lsaKeyLess(after, keys[i]) })
	if idx == len(keys) {
		return nil, false
	}
	return d.entries[keys[idx]].lsa, true
}

func (d *LSDB) sortedKeys() []ospf.LSAKey {
	keys := make([]ospf.LSAKey, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lsaKeyLess(keys[i], keys[j]) })
	return keys
}

func lsaKeyLess(a, b ospf.LSAKey) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.LSID != b.LSID {
		return a.LSID < b.LSID
	}
	return a.AdvRouter < b.AdvRouter
}

// Checksum returns the sum of every stored LSA's checksum field, used by
// DBStats fingerprinting to detect
// convergence without comparing LSDB contents LSA-by-LSA.
func (d *LSDB) Checksum() uint32 {
	var sum uint32
	for _, e := range d.entries {
		sum += uint32(e.lsa.Header.Checksum)
	}
	return sum
}

// Len reports the number of LSAs stored.
func (d *LSDB) Len() int { return len(d.entries) }

// SweepMaxAge walks the database and returns the keys of every LSA that has
// reached MaxAge and is not DoNotAge, for the caller to flush per RFC 2328
// §14. It does not remove them itself; removal happens once the flush's own
// MaxAge-LSA has been acknowledged by every neighbor (flooding.go).
func (d *LSDB) SweepMaxAge(now Seconds) []ospf.LSAKey {
	var out []ospf.LSAKey
	for k, e := range d.entries {
		if e.lsa.Header.IsDoNotAge() {
			continue
		}
		age := int64(e.lsa.Header.AgeValue()) + int64(now-e.installed)
		if age >= ospf.MaxAge {
			out = append(out, k)
		}
	}
	return out
}

// SweepRefresh returns the keys of self-originated LSAs due for refresh
// (RFC 2328 §12.4.4, LSRefreshTime since origination).
func (d *LSDB) SweepRefresh(now Seconds) []ospf.LSAKey {
	var out []ospf.LSAKey
	for k, e := range d.entries {
		if !e.selfOrigin {
			continue
		}
		if int64(now-e.installed) >= ospf.LSRefreshTime {
			out = append(out, k)
		}
	}
	return out
}
