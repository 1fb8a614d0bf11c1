// Package router provides an HTTP router that composes response filters, such as body
// injection, with the usual middleware at global, sub-router and route level.
package router

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/SInject/pkg/common"
	"github.com/Suhaibinator/SInject/pkg/middleware"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
// It provides routing, filter and middleware composition, and graceful shutdown.
type Router struct {
	config      RouterConfig
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the request context.
	ParamsKey contextKey = "params"
)

// NewRouter creates a new Router with the given configuration.
// It sets up logging and the global middleware stack, and registers routes from sub-routers.
func NewRouter(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	r := &Router{
		config: config,
		router: httprouter.New(),
		logger: logger,
	}

	// Request-scoped values first so everything after them can log and key on them.
	// The trace ID is assigned outside recovery so panic logs carry it too.
	if config.EnableTraceID {
		r.middlewares = append(r.middlewares, middleware.TraceMiddleware())
	}
	r.middlewares = append(r.middlewares, middleware.Recovery(logger))
	r.middlewares = append(r.middlewares, middleware.ClientIPMiddleware(config.IPConfig))
	if config.EnableLogging {
		r.middlewares = append(r.middlewares, middleware.Logging(logger))
	}
	if config.HTTPMetrics != nil {
		r.middlewares = append(r.middlewares, config.HTTPMetrics.Middleware())
	}
	if config.Throttle != nil {
		r.middlewares = append(r.middlewares, middleware.Throttle(*config.Throttle, logger))
	}
	r.middlewares = append(r.middlewares, config.Middlewares...)

	for _, sr := range config.SubRouters {
		r.registerSubRouter(sr)
	}

	return r
}

// registerSubRouter registers all routes in a sub-router.
// It applies the sub-router's path prefix to all routes and registers them with the router.
func (r *Router) registerSubRouter(sr SubRouterConfig) {
	for _, route := range sr.Routes {
		fullPath := strings.TrimSuffix(sr.PathPrefix, "/") + route.Path
		r.register(route, fullPath, &sr)
	}
}

// RegisterRoute registers a route with the router.
// Global filters and middlewares apply; sub-router settings do not.
func (r *Router) RegisterRoute(route RouteConfigBase) {
	r.register(route, route.Path, nil)
}

func (r *Router) register(route RouteConfigBase, path string, sr *SubRouterConfig) {
	var subTimeout time.Duration
	var subMaxBodySize int64
	var subFilters []common.Filter
	var subMiddlewares []common.Middleware
	if sr != nil {
		subTimeout = sr.TimeoutOverride
		subMaxBodySize = sr.MaxBodySizeOverride
		subFilters = sr.Filters
		subMiddlewares = sr.Middlewares
	}

	var filters []common.Filter
	if !route.SkipFilters {
		filters = append(filters, r.config.Filters...)
		filters = append(filters, subFilters...)
		filters = append(filters, route.Filters...)
	}

	handler := r.wrapHandler(
		route.Handler,
		r.getEffectiveTimeout(route.Timeout, subTimeout),
		r.getEffectiveMaxBodySize(route.MaxBodySize, subMaxBodySize),
		filters,
		subMiddlewares,
		route.Middlewares,
	)

	for _, method := range route.Methods {
		r.router.Handle(method, path, r.convertToHTTPRouterHandle(handler))
	}

	r.logger.Debug("Route registered",
		zap.String("path", path),
		zap.Strings("methods", route.Methods),
		zap.Int("filters", len(filters)),
	)
}

// convertToHTTPRouterHandle converts an http.Handler to an httprouter.Handle.
// It stores the route parameters in the request context so they can be accessed by handlers.
func (r *Router) convertToHTTPRouterHandle(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// wrapHandler builds the pipeline for one route:
// global middlewares (trace, recovery, client IP, ...), sub-router middlewares, filters,
// route middlewares, body size limit, timeout, handler.
func (r *Router) wrapHandler(handler http.HandlerFunc, timeout time.Duration, maxBodySize int64, filters []common.Filter, subMiddlewares, routeMiddlewares []common.Middleware) http.Handler {
	chain := common.NewMiddlewareChain(r.middlewares...).
		Append(subMiddlewares...)

	if len(filters) > 0 {
		chain = chain.Append(middleware.Filters(r.logger, filters...))
	}

	chain = chain.Append(routeMiddlewares...)

	if maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	if timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout))
	}

	return chain.Then(handler)
}

// ServeHTTP implements the http.Handler interface.
// Requests arriving after Shutdown has been called are answered with 503.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Add under the lock Shutdown takes, so no Add can race its Wait
	r.shutdownMu.RLock()
	if r.shutdown {
		r.shutdownMu.RUnlock()
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	r.wg.Add(1)
	r.shutdownMu.RUnlock()
	defer r.wg.Done()

	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// getEffectiveTimeout returns the effective timeout for a route.
// It considers route-specific, sub-router, and global timeout settings in that order of precedence.
func (r *Router) getEffectiveTimeout(routeTimeout, subRouterTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	if subRouterTimeout > 0 {
		return subRouterTimeout
	}
	return r.config.GlobalTimeout
}

// getEffectiveMaxBodySize returns the effective max body size for a route.
// It considers route-specific, sub-router, and global max body size settings in that order of precedence.
func (r *Router) getEffectiveMaxBodySize(routeMaxBodySize, subRouterMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	if subRouterMaxBodySize > 0 {
		return subRouterMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}
