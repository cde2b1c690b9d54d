// Package metrics manages the process-wide Prometheus registry and the
// constructor indirection the concrete implementations register themselves
// through: domain packages define their metrics interfaces next to their
// call sites, pkg/metrics/prometheus provides the implementations, and this
// package stitches the two together without an import cycle.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ospfd/ospfd/pkg/engine"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with the standard Go and
// process collectors. Calling it twice is a no-op.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called. Constructors
// return nil when disabled so call sites carry zero overhead.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the process registry; nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Handler returns the HTTP handler serving the registry in Prometheus
// exposition format, or nil when metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewEngineMetrics creates a Prometheus-backed engine.Metrics, or nil when
// metrics are disabled (the engine treats nil as "keep the no-op sink").
func NewEngineMetrics() engine.Metrics {
	if !IsEnabled() || newPrometheusEngineMetrics == nil {
		return nil
	}
	return newPrometheusEngineMetrics()
}

// newPrometheusEngineMetrics is populated by pkg/metrics/prometheus at init
// time; the indirection keeps this package free of a hard dependency on the
// implementation while letting callers blank-import it.
var newPrometheusEngineMetrics func() engine.Metrics

// RegisterEngineMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization.
func RegisterEngineMetricsConstructor(constructor func() engine.Metrics) {
	newPrometheusEngineMetrics = constructor
}
