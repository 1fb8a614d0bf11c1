package middleware

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/SInject/pkg/common"
	"github.com/google/uuid"
)

// TraceIDHeader is the response header carrying the trace ID. An incoming request
// header with a valid UUID is reused, in canonical form, instead of generating a new one.
const TraceIDHeader = "X-Trace-ID"

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

// TraceIDKey is the context key under which TraceMiddleware stores the trace ID
var TraceIDKey = traceIDKey{}

// TraceMiddleware creates a middleware that assigns a trace ID to each request, adds
// it to the request context and echoes it in the X-Trace-ID response header.
// Every log line written by this package's middleware carries the trace ID.
func TraceMiddleware() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var traceID string
			if parsed, err := uuid.Parse(r.Header.Get(TraceIDHeader)); err == nil {
				traceID = parsed.String()
			} else {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceIDHeader, traceID)
			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	if r == nil {
		return ""
	}
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
