package engine

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/engine/auth"
	"github.com/ospfd/ospfd/pkg/engine/timers"
	"github.com/ospfd/ospfd/pkg/platform"
)

// Router is one OSPFv2 process: a single router ID, a set of areas and the
// interfaces/neighbors attached to them, an AS-external LSDB, and the
// computed routing and multicast-forwarding tables derived from them.
// A Router is driven entirely by Platform and by calls made
// between cfgStart/cfgDone brackets; it never spawns goroutines of its own
// beyond the one its Run loop occupies.
type Router struct {
	id       ospf.RouterID
	platform platform.Platform
	log      *slog.Logger

	areas map[ospf.AreaID]*Area
	// ifaces is keyed by phyint so receive_ip_packet can resolve an
	// arriving datagram to its owning interface in O(1).
	ifaces map[int]*Interface

	// asExternalDB holds type-5 AS-external LSAs, which flood AS-wide and
	// so are not scoped to any single Area.
	asExternalDB *LSDB

	externalRoutes map[string]*ExternalRoute

	routes map[string]*RouteEntry
	mcache map[mcacheKey]*platform.MulticastCacheEntry

	timers *timers.Heap
	now    Seconds

	overflow overflowState
	hitless  *hitlessState
	groups   *groupMembership

	// shuttingDown is latched by Shutdown; a router winding down flushes
	// its originations but keeps answering monitor queries until Halt.
	shuttingDown bool

	// cfg is non-nil only between cfgStart and cfgDone; it accumulates the
	// set of keys reasserted during the transaction so cfgDone can prune
	// whatever was not.
	cfg *configTxn

	// opaqueNotify, when set, is invoked for every opaque LSA the router
	// installs or refloods; the monitor subsystem uses it for its one-time
	// opaque subscription.
	opaqueNotify func(area ospf.AreaID, lsa *ospf.LSA)

	metrics Metrics

	// rxAccepted/rxDropped count packets since start (or since the last
	// monitor-initiated reset); the process-lifetime series lives in
	// pkg/metrics, these back the statistics query alone.
	rxAccepted uint64
	rxDropped  uint64

	// maxExchangeNbrs throttles simultaneous Exchange/Loading neighbors;
	// zero means unlimited.
	maxExchangeNbrs int

	seq uint64 // monotonic counter handed out for tie-breaking and IDs
}

// SetOpaqueNotify registers the single opaque-LSA subscriber. Passing nil
// unregisters it.
func (r *Router) SetOpaqueNotify(fn func(area ospf.AreaID, lsa *ospf.LSA)) {
	r.opaqueNotify = fn
}

// mcacheKey identifies one (source, group) multicast forwarding cache entry.
type mcacheKey struct {
	source string
	group  string
}

// ExternalRoute is one externally redistributed route, the input to
// AS-external-LSA origination.
type ExternalRoute struct {
	Dest              Destination
	Metric            uint32
	Type2             bool
	ForwardingAddress net.IP
	Tag               uint32
}

// NewRouter constructs a Router identified by id, driven by p. log should
// already be scoped (component="engine", router_id=...) by the caller;
// long-lived components receive a pre-scoped *slog.Logger rather than a
// bare logger plus fields.
func NewRouter(id ospf.RouterID, p platform.Platform, log *slog.Logger) *Router {
	return &Router{
		id:             id,
		platform:       p,
		log:            log,
		areas:          map[ospf.AreaID]*Area{},
		ifaces:         map[int]*Interface{},
		asExternalDB:   NewLSDB(),
		externalRoutes: map[string]*ExternalRoute{},
		routes:         map[string]*RouteEntry{},
		mcache:         map[mcacheKey]*platform.MulticastCacheEntry{},
		timers:         timers.New(),
		hitless:        newHitlessState(),
		groups:         newGroupMembership(),
		metrics:        nopMetrics{},
	}
}

// ID returns the router's own OSPF router ID.
func (r *Router) ID() ospf.RouterID { return r.id }

// tick advances the engine's notion of current time and fires every timer
// now due. sim/router calls this once per
// simulated clock tick; a real deployment's Run loop calls it from a select
// driven by a real *time.Timer instead.
func (r *Router) tick(now Seconds) {
	r.now = now
	r.timers.Fire(timers.Milliseconds(now * 1000))
}

// timeoutMs reports how many milliseconds remain until the next timer is
// due, implementing the "timeout_ms()" query that forms the
// engine's half of the select-style main loop: the caller blocks for at
// most this long before calling tick again.
func (r *Router) timeoutMs() (int64, bool) {
	return r.timers.TimeoutMillis(timers.Milliseconds(r.now * 1000))
}

// receiveIPPacket is the engine's sole ingress point for OSPF packets.
// srcAddr is the IP source address of
// the datagram that carried pkt; phyint identifies the receiving interface.
func (r *Router) receiveIPPacket(phyint int, srcAddr net.IP, pkt []byte) {
	ifc, ok := r.ifaces[phyint]
	if !ok || ifc.State == IfaceDown {
		return
	}
	hdr, err := ospf.DecodeHeader(pkt)
	if err != nil {
		r.log.Debug("dropping unparseable packet", "interface", phyint, "error", err)
		r.metrics.PacketDropped("malformed")
		r.rxDropped++
		return
	}
	if int(hdr.Length) > len(pkt) {
		return
	}
	if hdr.RouterID == r.id {
		return // packet looped back to ourselves
	}
	if hdr.AreaID != ifc.Area.ID {
		if !(hdr.AreaID == ospf.Backbone && ifc.Type == IfaceVirtualLink) {
			r.metrics.PacketDropped("wrong-area")
			r.rxDropped++
			return
		}
	}
	if !r.authenticate(ifc, hdr, pkt) {
		r.log.Debug("dropping packet failing authentication", "interface", phyint, "router_id", hdr.RouterID.String())
		r.metrics.PacketDropped("bad-auth")
		r.rxDropped++
		return
	}

	r.metrics.PacketReceived(hdr.Type.String())
	r.rxAccepted++
	body := pkt[ospf.HeaderLength:hdr.Length]
	r.dispatch(ifc, hdr, srcAddr, body)
}

// Run drives the engine's main loop against a real asynchronous platform:
// one cooperative, single-threaded select over packet arrival and the timer
// heap's next deadline, one single-threaded cooperative main loop per
// engine instance. Simulated deployments do not call Run;
// pkg/sim/router drives tick/receiveIPPacket directly from the controller's
// lock-step schedule instead.
func (r *Router) Run(ctx context.Context, packets <-chan InboundPacket) error {
	for {
		var wait time.Duration = time.Second
		if ms, ok := r.timeoutMs(); ok {
			wait = time.Duration(ms) * time.Millisecond
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case pkt, open := <-packets:
			timer.Stop()
			if !open {
				return nil
			}
			sec, _ := r.platform.SysElapsedTime()
			r.tick(Seconds(sec))
			r.receiveIPPacket(pkt.PhyInt, pkt.Src, pkt.Data)

		case <-timer.C:
			sec, _ := r.platform.SysElapsedTime()
			r.tick(Seconds(sec))
		}
	}
}

// InboundPacket is one datagram delivered to Run by the caller's I/O layer.
type InboundPacket struct {
	PhyInt int
	Src    net.IP
	Data   []byte
}

// areaOrCreate returns the Area for id, creating it (not-yet-configured, no
// interfaces) if this is the first reference to it.
func (r *Router) areaOrCreate(id ospf.AreaID) *Area {
	a, ok := r.areas[id]
	if !ok {
		a = NewArea(id)
		r.areas[id] = a
	}
	return a
}

// authenticate validates hdr/pkt against ifc's configured authentication,
// per RFC 2328 §D. AuNone always passes; AuSimple/AuMD5 check against the
// interface's auth.KeyRing.
func (r *Router) authenticate(ifc *Interface, hdr *ospf.Header, pkt []byte) bool {
	switch hdr.AuType {
	case ospf.AuNone:
		return true
	case ospf.AuSimple:
		return auth.ValidateSimplePassword(hdr.AuthData, simpleKeySecret(ifc, r.now))
	case ospf.AuMD5:
		md5 := ospf.DecodeMD5AuthData(hdr.AuthData)
		key, ok := ifc.AuthKeys.Accepts(md5.KeyID, int64(r.now))
		if !ok {
			return false
		}
		digestOff := int(hdr.Length)
		if digestOff+16 > len(pkt) {
			return false
		}
		var digest [16]byte
		copy(digest[:], pkt[digestOff:digestOff+16])

		signed := append([]byte(nil), pkt[:hdr.Length]...)
		return auth.VerifyDigest(signed, key.Secret, digest)
	default:
		return false
	}
}

func simpleKeySecret(ifc *Interface, now Seconds) []byte {
	if k, ok := ifc.AuthKeys.Accepts(0, int64(now)); ok {
		return k.Secret
	}
	return nil
}

// nextSeq hands out a process-local monotonically increasing counter, used
// where the engine needs a tie-breaker that isn't itself protocol state
// (e.g. ordering simultaneous configuration events for logging).
func (r *Router) nextSeq() uint64 {
	r.seq++
	return r.seq
}
