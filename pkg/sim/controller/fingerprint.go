package controller

import "github.com/ospfd/ospfd/pkg/sim/simproto"

// Color is a router's synchronization color: red for
// disconnected, white for a unique fingerprint, orange for a smaller
// equivalence class, green for the largest class.
type Color int

const (
	ColorRed Color = iota
	ColorWhite
	ColorOrange
	ColorGreen
)

func (c Color) String() string {
	switch c {
	case ColorGreen:
		return "green"
	case ColorOrange:
		return "orange"
	case ColorWhite:
		return "white"
	default:
		return "red"
	}
}

// fingerprintIndex refcounts DBStats fingerprints across routers so
// synchronization can be visualized without comparing databases
// LSA-by-LSA.
type fingerprintIndex struct {
	counts map[simproto.DBStats]int
}

func newFingerprintIndex() *fingerprintIndex {
	return &fingerprintIndex{counts: map[simproto.DBStats]int{}}
}

// update moves a router's refcount from its previous fingerprint to the new
// one. had reports whether old was previously registered.
func (f *fingerprintIndex) update(old simproto.DBStats, had bool, next simproto.DBStats) {
	if had {
		f.counts[old]--
		if f.counts[old] <= 0 {
			delete(f.counts, old)
		}
	}
	f.counts[next]++
}

func (f *fingerprintIndex) drop(fp simproto.DBStats) {
	f.counts[fp]--
	if f.counts[fp] <= 0 {
		delete(f.counts, fp)
	}
}

// classify returns the color for a fingerprint given the current refcounts.
func (f *fingerprintIndex) classify(fp simproto.DBStats) Color {
	count := f.counts[fp]
	switch {
	case count <= 0:
		return ColorRed
	case count == 1:
		return ColorWhite
	case count == f.largest():
		return ColorGreen
	default:
		return ColorOrange
	}
}

func (f *fingerprintIndex) largest() int {
	max := 0
	for _, c := range f.counts {
		if c > max {
			max = c
		}
	}
	return max
}
