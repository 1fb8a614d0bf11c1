// Package metrics provides Prometheus instrumentation for body injection and for the
// HTTP traffic flowing through the router.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultDurationBuckets are the histogram buckets, in seconds, used for request latency
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// DefaultRewriteBuckets are the histogram buckets, in seconds, used for body rewrite time.
// Rewrites are in-memory text operations, so the buckets start well below a millisecond.
var DefaultRewriteBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

// DefaultSizeBuckets are the histogram buckets, in bytes, used for response sizes
var DefaultSizeBuckets = []float64{100, 1000, 10000, 100000, 1000000}

// Config holds the settings shared by all collectors in this package
type Config struct {
	// Registerer receives the collectors. If nil, a new prometheus.Registry is created
	// and exposed through Registry().
	Registerer prometheus.Registerer

	// Namespace and Subsystem prefix every metric name
	Namespace string
	Subsystem string

	// ConstLabels are attached to every metric
	ConstLabels prometheus.Labels
}

// registerer returns the configured Registerer, creating a registry when none was given.
// The second result is the created registry, or nil.
func (c Config) registerer() (prometheus.Registerer, *prometheus.Registry) {
	if c.Registerer != nil {
		return c.Registerer, nil
	}
	reg := prometheus.NewRegistry()
	return reg, reg
}

// Handler returns an HTTP handler that serves the metrics gathered by g in the
// Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
