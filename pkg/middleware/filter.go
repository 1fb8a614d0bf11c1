package middleware

import (
	"net/http"

	"github.com/Suhaibinator/SInject/pkg/common"
	"go.uber.org/zap"
)

// Filters returns a middleware that runs the given filters around the next handler.
// OnRequestStart is called on every filter in order, the handler's response is
// buffered, then OnResponseReady is called on every filter in order before the
// response is sent. If a filter returns an error the buffered response is discarded,
// the error is logged and the client gets 500 Internal Server Error.
func Filters(logger *zap.Logger, filters ...common.Filter) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if len(filters) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, f := range filters {
				f.OnRequestStart(r)
			}

			bw := newBufferedResponseWriter(w)
			next.ServeHTTP(bw, r)

			for _, f := range filters {
				if err := f.OnResponseReady(r, bw); err != nil {
					logger.Error("Response filter failed", requestFields(r,
						zap.Error(err),
						zap.Int("status", bw.statusCode),
					)...)

					// The handler's headers are already in w.Header()
					w.Header().Del("Content-Encoding")
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}

			if err := bw.commit(); err != nil {
				logger.Warn("Failed to write filtered response", requestFields(r, zap.Error(err))...)
			}
		})
	}
}
