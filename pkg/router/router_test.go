package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SInject/pkg/common"
	"github.com/Suhaibinator/SInject/pkg/inject"
	"github.com/Suhaibinator/SInject/pkg/metrics"
	"github.com/Suhaibinator/SInject/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const widget = "<script>widget();</script>"

func htmlPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><h1>" + GetParam(r, "name") + "</h1></body></html>"))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	return rr
}

// TestRouterFilterLevels checks that global, sub-router and route filters compose and SkipFilters opts out
func TestRouterFilterLevels(t *testing.T) {
	r := NewRouter(RouterConfig{
		Logger: zap.NewNop(),
		Filters: []common.Filter{
			middleware.NewInjectionFilter(middleware.InjectionConfig{TagProvider: inject.StaticTag(widget)}),
		},
		SubRouters: []SubRouterConfig{
			{
				PathPrefix: "/pages/",
				Filters: []common.Filter{
					inject.NewBodyInjectionFilter(inject.Config{TagProvider: inject.StaticTag("<!--sub-->")}),
				},
				Routes: []RouteConfigBase{
					{
						Path:    "/:name",
						Methods: []string{"GET"},
						Handler: htmlPage,
					},
					{
						Path:        "/:name/raw",
						Methods:     []string{"GET"},
						Handler:     htmlPage,
						SkipFilters: true,
					},
				},
			},
		},
	})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/home",
		Methods: []string{"GET"},
		Handler: htmlPage,
		Filters: []common.Filter{
			inject.NewBodyInjectionFilter(inject.Config{TagProvider: inject.StaticTag("<!--route-->")}),
		},
	})

	tests := []struct {
		path string
		want string
	}{
		{"/pages/about", "<html><body><h1>about</h1>" + widget + "<!--sub--></body></html>"},
		{"/pages/about/raw", "<html><body><h1>about</h1></body></html>"},
		{"/home", "<html><body><h1></h1>" + widget + "<!--route--></body></html>"},
	}
	for _, tt := range tests {
		rr := get(t, r, tt.path)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected status code %d, got %d", tt.path, http.StatusOK, rr.Code)
		}
		if rr.Body.String() != tt.want {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.want, rr.Body.String())
		}
	}
}

// TestRouterInjectionSkipsJSON checks that API responses pass through a globally configured injection untouched
func TestRouterInjectionSkipsJSON(t *testing.T) {
	r := NewRouter(RouterConfig{
		Logger: zap.NewNop(),
		Filters: []common.Filter{
			middleware.NewInjectionFilter(middleware.InjectionConfig{TagProvider: inject.StaticTag(widget)}),
		},
	})
	body := `{"html":"<body></body>"}`
	r.RegisterRoute(RouteConfigBase{
		Path:    "/api/status",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		},
	})

	rr := get(t, r, "/api/status")
	if rr.Body.String() != body {
		t.Errorf("Expected body %q, got %q", body, rr.Body.String())
	}
}

func TestRouterRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewRouter(RouterConfig{Logger: zap.New(core)})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/panic",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		},
	})

	rr := get(t, r, "/panic")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Errorf("Expected one 'Panic recovered' log entry, got %d", logs.FilterMessage("Panic recovered").Len())
	}
}

// TestRouterRecoveryLogsTraceID checks that the panic log carries the trace ID sent to the client
func TestRouterRecoveryLogsTraceID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewRouter(RouterConfig{Logger: zap.New(core), EnableTraceID: true})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/panic",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		},
	})

	rr := get(t, r, "/panic")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}

	entries := logs.FilterMessage("Panic recovered").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one 'Panic recovered' log entry, got %d", len(entries))
	}
	traceID := rr.Header().Get(middleware.TraceIDHeader)
	if traceID == "" {
		t.Fatal("Expected a trace ID header")
	}
	if got := entries[0].ContextMap()["trace_id"]; got != traceID {
		t.Errorf("Expected trace_id field %q, got %v", traceID, got)
	}
}

func TestRouterTimeoutAndBodySize(t *testing.T) {
	r := NewRouter(RouterConfig{
		Logger:            zap.NewNop(),
		GlobalTimeout:     time.Second,
		GlobalMaxBodySize: 4,
		SubRouters: []SubRouterConfig{
			{
				PathPrefix:      "/slow",
				TimeoutOverride: 20 * time.Millisecond,
				Routes: []RouteConfigBase{
					{
						Path:    "",
						Methods: []string{"GET"},
						Handler: func(w http.ResponseWriter, r *http.Request) {
							<-r.Context().Done()
						},
					},
				},
			},
		},
	})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/upload",
		Methods: []string{"POST"},
		Handler: func(w http.ResponseWriter, r *http.Request) {
			if _, err := io.ReadAll(r.Body); err != nil {
				http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			}
		},
	})

	if rr := get(t, r, "/slow"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/upload", strings.NewReader("12345")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status code %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}

func TestRouterTraceAndMetrics(t *testing.T) {
	httpMetrics, err := metrics.NewHTTPMetrics(metrics.Config{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	r := NewRouter(RouterConfig{
		Logger:        zap.NewNop(),
		EnableTraceID: true,
		HTTPMetrics:   httpMetrics,
	})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/p/:name",
		Methods: []string{"GET"},
		Handler: htmlPage,
	})

	rr := get(t, r, "/p/x")
	if rr.Header().Get(middleware.TraceIDHeader) == "" {
		t.Error("Expected a trace ID header")
	}
	if n, err := testutil.GatherAndCount(httpMetrics.Registry(), "http_requests_total"); err != nil || n != 1 {
		t.Errorf("Expected one request series, got %d (err %v)", n, err)
	}
}

func TestRouterShutdown(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: zap.NewNop()})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/p/:name",
		Methods: []string{"GET"},
		Handler: htmlPage,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Unexpected shutdown error: %v", err)
	}

	if rr := get(t, r, "/p/x"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d after shutdown, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

// TestRouterShutdownWithConcurrentRequests checks that requests racing Shutdown are either served or refused
func TestRouterShutdownWithConcurrentRequests(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: zap.NewNop()})
	r.RegisterRoute(RouteConfigBase{
		Path:    "/p/:name",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, req *http.Request) {
			time.Sleep(time.Millisecond)
			htmlPage(w, req)
		},
	})

	const workers = 50
	codes := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest("GET", "/p/x", nil))
			codes <- rr.Code
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Errorf("Unexpected shutdown error: %v", err)
	}

	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusOK && code != http.StatusServiceUnavailable {
			t.Errorf("Expected status %d or %d, got %d", http.StatusOK, http.StatusServiceUnavailable, code)
		}
	}
}

func TestGetParamWithoutRoute(t *testing.T) {
	if got := GetParam(httptest.NewRequest("GET", "/", nil), "name"); got != "" {
		t.Errorf("Expected empty param, got %q", got)
	}
}
