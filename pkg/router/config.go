package router

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/SInject/pkg/common"
	"github.com/Suhaibinator/SInject/pkg/metrics"
	"github.com/Suhaibinator/SInject/pkg/middleware"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
// It includes settings for logging, timeouts, metrics, filters and middleware.
type RouterConfig struct {
	Logger            *zap.Logger                // Logger for all router operations
	GlobalTimeout     time.Duration              // Default response timeout for all routes
	GlobalMaxBodySize int64                      // Default maximum request body size in bytes
	IPConfig          *middleware.IPConfig       // Configuration for client IP extraction
	EnableTraceID     bool                       // Assign a trace ID to every request and log it
	EnableLogging     bool                       // Log every request through middleware.Logging
	Throttle          *middleware.ThrottleConfig // Per-client request pacing for all routes (optional)
	HTTPMetrics       *metrics.HTTPMetrics       // Prometheus request metrics (optional)
	Filters           []common.Filter            // Response filters applied to all routes
	Middlewares       []common.Middleware        // Global middlewares applied to all routes
	SubRouters        []SubRouterConfig          // Sub-routers with their own configurations
}

// SubRouterConfig defines configuration for a group of routes with a common path prefix.
// Its filters and middlewares run after the global ones.
type SubRouterConfig struct {
	PathPrefix          string              // Common path prefix for all routes in this sub-router
	TimeoutOverride     time.Duration       // Override global timeout for all routes in this sub-router
	MaxBodySizeOverride int64               // Override global max body size for all routes in this sub-router
	Filters             []common.Filter     // Response filters applied to all routes in this sub-router
	Middlewares         []common.Middleware // Middlewares applied to all routes in this sub-router
	Routes              []RouteConfigBase   // Routes in this sub-router
}

// RouteConfigBase defines the configuration for a single route.
type RouteConfigBase struct {
	Path        string              // Route path (will be prefixed with sub-router path prefix if applicable)
	Methods     []string            // HTTP methods this route handles
	Timeout     time.Duration       // Override timeout for this specific route
	MaxBodySize int64               // Override max body size for this specific route
	Handler     http.HandlerFunc    // Standard HTTP handler function
	Filters     []common.Filter     // Response filters applied to this specific route
	SkipFilters bool                // Run none of the global, sub-router or route filters
	Middlewares []common.Middleware // Middlewares applied to this specific route
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware
