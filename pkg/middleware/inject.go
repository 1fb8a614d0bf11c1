package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Suhaibinator/SInject/pkg/common"
	"github.com/Suhaibinator/SInject/pkg/inject"
	"github.com/Suhaibinator/SInject/pkg/metrics"
	"go.uber.org/zap"
)

// InjectionConfig configures the body injection middleware
type InjectionConfig struct {
	// TagProvider produces the fragment inserted before </body>. Required; a nil
	// provider makes every eligible response fail with 500.
	TagProvider inject.TagProvider

	// InjectAll inserts the fragment before every closing body tag instead of the first only
	InjectAll bool

	// Logger receives one Debug line per response and an Error line per failure.
	// Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, if set, records outcomes and rewrite times
	Metrics *metrics.InjectionMetrics
}

// injectionFilter adapts inject.BodyInjectionFilter to HTTP responses: compressed
// bodies are passed through, and outcomes are logged and measured.
type injectionFilter struct {
	inner   *inject.BodyInjectionFilter
	logger  *zap.Logger
	metrics *metrics.InjectionMetrics
}

// NewInjectionFilter creates the body injection filter for use with Filters or the router
func NewInjectionFilter(config InjectionConfig) common.Filter {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &injectionFilter{
		logger:  logger,
		metrics: config.Metrics,
	}
	f.inner = inject.NewBodyInjectionFilter(inject.Config{
		TagProvider: config.TagProvider,
		InjectAll:   config.InjectAll,
		OnOutcome:   f.observe,
	})
	return f
}

// BodyInjection returns a middleware that inserts the configured fragment before the
// closing body tag of HTML responses
func BodyInjection(config InjectionConfig) Middleware {
	return Filters(config.Logger, NewInjectionFilter(config))
}

// OnRequestStart does nothing
func (f *injectionFilter) OnRequestStart(r *http.Request) {
	f.inner.OnRequestStart(r)
}

// OnResponseReady runs the injection over resp unless its body is content-encoded
func (f *injectionFilter) OnResponseReady(r *http.Request, resp common.Response) error {
	if isEncoded(resp.Header()) {
		f.observe(r, inject.SkippedEncoded)
		return nil
	}

	start := time.Now()
	err := f.inner.OnResponseReady(r, resp)
	if f.metrics != nil {
		f.metrics.ObserveRewrite(time.Since(start))
	}
	return err
}

func (f *injectionFilter) observe(r *http.Request, outcome inject.Outcome) {
	if f.metrics != nil {
		f.metrics.ObserveOutcome(outcome)
	}
	if outcome == inject.Failed {
		// Filters logs the error itself
		return
	}
	f.logger.Debug("Body injection", requestFields(r, zap.String("outcome", string(outcome)))...)
}

// isEncoded reports whether the body carries a Content-Encoding other than identity
func isEncoded(header http.Header) bool {
	encoding := strings.TrimSpace(header.Get("Content-Encoding"))
	return encoding != "" && !strings.EqualFold(encoding, "identity")
}
