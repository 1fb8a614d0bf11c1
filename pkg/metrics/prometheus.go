package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SInject/pkg/inject"
	"github.com/prometheus/client_golang/prometheus"
)

// InjectionMetrics counts body injection outcomes and times body rewrites
type InjectionMetrics struct {
	registry  *prometheus.Registry
	responses *prometheus.CounterVec
	rewrite   prometheus.Histogram
}

// NewInjectionMetrics creates and registers the injection collectors.
// Registering a second set with the same names on one Registerer fails.
func NewInjectionMetrics(config Config) (*InjectionMetrics, error) {
	reg, created := config.registerer()

	m := &InjectionMetrics{
		registry: created,
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "body_injection_responses_total",
			Help:        "Responses seen by the body injection filter, by outcome.",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
		rewrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "body_injection_rewrite_duration_seconds",
			Help:        "Time spent running the body injection filter over a buffered response.",
			ConstLabels: config.ConstLabels,
			Buckets:     DefaultRewriteBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.responses, m.rewrite} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register injection metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry created for these collectors, or nil when a
// Registerer was supplied in Config
func (m *InjectionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome counts one response with the given outcome
func (m *InjectionMetrics) ObserveOutcome(outcome inject.Outcome) {
	m.responses.WithLabelValues(string(outcome)).Inc()
}

// ObserveRewrite records how long the filter took for one response
func (m *InjectionMetrics) ObserveRewrite(d time.Duration) {
	m.rewrite.Observe(d.Seconds())
}

// OnOutcome has the signature of inject.Config.OnOutcome
func (m *InjectionMetrics) OnOutcome(_ *http.Request, outcome inject.Outcome) {
	m.ObserveOutcome(outcome)
}

// HTTPMetrics collects request counts, latency and response sizes
type HTTPMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	respSize *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the HTTP collectors
func NewHTTPMetrics(config Config) (*HTTPMetrics, error) {
	reg, created := config.registerer()

	m := &HTTPMetrics{
		registry: created,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds.",
			ConstLabels: config.ConstLabels,
			Buckets:     DefaultDurationBuckets,
		}, []string{"method"}),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_response_size_bytes",
			Help:        "HTTP response size in bytes.",
			ConstLabels: config.ConstLabels,
			Buckets:     DefaultSizeBuckets,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.latency, m.respSize} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry created for these collectors, or nil when a
// Registerer was supplied in Config
func (m *HTTPMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware returns a middleware that records every request passing through it
func (m *HTTPMetrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			m.requests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
			m.latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			m.respSize.WithLabelValues(r.Method).Observe(float64(rw.bytesWritten))
		})
	}
}

// metricsResponseWriter is a wrapper around http.ResponseWriter that captures the status code and body size
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (rw *metricsResponseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written and calls the underlying ResponseWriter.Write
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
