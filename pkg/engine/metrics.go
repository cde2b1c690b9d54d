package engine

// Metrics is the engine's instrumentation hook set. The interface lives
// here, next to its call sites, with the Prometheus implementation in
// pkg/metrics/prometheus - keeping the engine importable without pulling a
// metrics client in. A nil Metrics is never stored; SetMetrics ignores nil
// so call sites don't guard.
type Metrics interface {
	// PacketReceived counts one accepted OSPF packet by type.
	PacketReceived(packetType string)
	// PacketDropped counts one rejected packet by reason.
	PacketDropped(reason string)
	// SPFRun counts one Dijkstra run for an area.
	SPFRun(area string)
	// LSAOriginated counts one self-origination by LSA type.
	LSAOriginated(lsaType string)
	// NeighborTransition counts one neighbor state machine transition into
	// the named state.
	NeighborTransition(state string)
}

type nopMetrics struct{}

func (nopMetrics) PacketReceived(string)     {}
func (nopMetrics) PacketDropped(string)      {}
func (nopMetrics) SPFRun(string)             {}
func (nopMetrics) LSAOriginated(string)      {}
func (nopMetrics) NeighborTransition(string) {}

// SetMetrics installs an instrumentation sink; nil is ignored.
func (r *Router) SetMetrics(m Metrics) {
	if m != nil {
		r.metrics = m
	}
}
