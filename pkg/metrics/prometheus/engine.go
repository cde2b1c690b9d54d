// Package prometheus provides the Prometheus implementations of the
// domain-level metrics interfaces. Importing it (typically with a blank
// import from the daemon's main package) registers the constructors with
// pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/metrics"
)

func init() {
	metrics.RegisterEngineMetricsConstructor(NewEngineMetrics)
}

// engineMetrics is the Prometheus implementation of engine.Metrics.
type engineMetrics struct {
	packetsReceived *prometheus.CounterVec
	packetsDropped  *prometheus.CounterVec
	spfRuns         *prometheus.CounterVec
	lsaOriginated   *prometheus.CounterVec
	nbrTransitions  *prometheus.CounterVec
}

// NewEngineMetrics creates a Prometheus-backed engine.Metrics instance.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewEngineMetrics() engine.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &engineMetrics{
		packetsReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ospfd_packets_received_total",
				Help: "OSPF packets accepted for processing, by packet type",
			},
			[]string{"type"},
		),
		packetsDropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ospfd_packets_dropped_total",
				Help: "OSPF packets rejected before processing, by reason",
			},
			[]string{"reason"},
		),
		spfRuns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ospfd_spf_runs_total",
				Help: "Shortest-path-first recomputations, by area",
			},
			[]string{"area"},
		),
		lsaOriginated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ospfd_lsa_originated_total",
				Help: "Self-originated LSA installations, by LSA type",
			},
			[]string{"type"},
		),
		nbrTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ospfd_neighbor_transitions_total",
				Help: "Neighbor state machine transitions, by target state",
			},
			[]string{"state"},
		),
	}
}

func (m *engineMetrics) PacketReceived(packetType string) {
	m.packetsReceived.WithLabelValues(packetType).Inc()
}

func (m *engineMetrics) PacketDropped(reason string) {
	m.packetsDropped.WithLabelValues(reason).Inc()
}

func (m *engineMetrics) SPFRun(area string) {
	m.spfRuns.WithLabelValues(area).Inc()
}

func (m *engineMetrics) LSAOriginated(lsaType string) {
	m.lsaOriginated.WithLabelValues(lsaType).Inc()
}

func (m *engineMetrics) NeighborTransition(state string) {
	m.nbrTransitions.WithLabelValues(state).Inc()
}
