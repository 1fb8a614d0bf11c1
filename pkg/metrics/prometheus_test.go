package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Suhaibinator/SInject/pkg/inject"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInjectionMetrics(t *testing.T) {
	m, err := NewInjectionMetrics(Config{Namespace: "test"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Registry() == nil {
		t.Fatal("Expected a registry to be created when no Registerer is given")
	}

	m.ObserveOutcome(inject.Injected)
	m.ObserveOutcome(inject.Injected)
	m.OnOutcome(nil, inject.SkippedNoBodyTag)
	m.ObserveRewrite(50 * time.Microsecond)

	if got := testutil.ToFloat64(m.responses.WithLabelValues(string(inject.Injected))); got != 2 {
		t.Errorf("Expected 2 injected responses, got %v", got)
	}
	if got := testutil.ToFloat64(m.responses.WithLabelValues(string(inject.SkippedNoBodyTag))); got != 1 {
		t.Errorf("Expected 1 skipped response, got %v", got)
	}
	if got := testutil.CollectAndCount(m.rewrite); got != 1 {
		t.Errorf("Expected 1 rewrite histogram, got %d", got)
	}
}

func TestInjectionMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewInjectionMetrics(Config{Registerer: reg})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Registry() != nil {
		t.Error("Expected no registry to be created when a Registerer is given")
	}

	if _, err := NewInjectionMetrics(Config{Registerer: reg}); err == nil {
		t.Error("Expected an error when registering the collectors twice")
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m, err := NewHTTPMetrics(Config{Namespace: "test"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("Expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "404")); got != 1 {
		t.Errorf("Expected 1 not found request, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m, err := NewInjectionMetrics(Config{Namespace: "test"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	m.ObserveOutcome(inject.Injected)

	rr := httptest.NewRecorder()
	Handler(m.Registry()).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `test_body_injection_responses_total{outcome="injected"} 1`) {
		t.Errorf("Expected exposition to contain the injected counter, got:\n%s", rr.Body.String())
	}
}
