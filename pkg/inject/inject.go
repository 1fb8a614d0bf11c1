// Package inject implements the body injection filter: it inserts an HTML fragment,
// typically an analytics or chat-widget script tag, immediately before the closing
// </body> tag of full HTML responses.
package inject

import (
	"bytes"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/Suhaibinator/SInject/pkg/common"
)

// ErrTagProviderNotSet is returned by OnResponseReady when the filter was never given a TagProvider.
var ErrTagProviderNotSet = errors.New("inject: tag provider not set")

// bodyCloseTag matches a closing body tag, including forms such as </BODY > or </body foo>.
var bodyCloseTag = regexp.MustCompile(`(?i)</body[^>]*>`)

// Outcome describes what OnResponseReady did with a response.
type Outcome string

const (
	// Injected means the fragment was inserted into the body.
	Injected Outcome = "injected"

	// SkippedContentType means the Content-Type header named a non-HTML media type.
	SkippedContentType Outcome = "skipped_content_type"

	// SkippedEmptyFragment means the tag provider returned an empty or whitespace-only fragment.
	SkippedEmptyFragment Outcome = "skipped_empty_fragment"

	// SkippedNoBodyTag means the body has no closing body tag, e.g. an HTML fragment.
	SkippedNoBodyTag Outcome = "skipped_no_body_tag"

	// SkippedEncoded means the body carried a Content-Encoding and could not be rewritten as text.
	// Only the HTTP middleware reports it.
	SkippedEncoded Outcome = "skipped_encoded"

	// Failed means the filter returned an error.
	Failed Outcome = "failed"
)

// Config configures a BodyInjectionFilter.
type Config struct {
	// TagProvider produces the fragment to inject. It may also be set later with SetTagProvider.
	TagProvider TagProvider

	// InjectAll inserts the fragment before every closing body tag instead of only the first.
	InjectAll bool

	// OnOutcome, if set, is called after every OnResponseReady with the outcome for that response.
	OnOutcome func(r *http.Request, outcome Outcome)
}

// BodyInjectionFilter inserts a fragment before the closing body tag of HTML responses.
// It implements common.Filter. A filter keeps no per-request state and may serve
// concurrent requests as long as SetTagProvider is not called while it does.
type BodyInjectionFilter struct {
	tagProvider TagProvider
	injectAll   bool
	onOutcome   func(*http.Request, Outcome)
}

var _ common.Filter = (*BodyInjectionFilter)(nil)

// NewBodyInjectionFilter creates a filter from config
func NewBodyInjectionFilter(config Config) *BodyInjectionFilter {
	return &BodyInjectionFilter{
		tagProvider: config.TagProvider,
		injectAll:   config.InjectAll,
		onOutcome:   config.OnOutcome,
	}
}

// SetTagProvider sets the provider used to produce the fragment.
// It must be called before the filter handles requests unless the provider was given in Config.
func (f *BodyInjectionFilter) SetTagProvider(provider TagProvider) {
	f.tagProvider = provider
}

// OnRequestStart does nothing. It exists to satisfy common.Filter.
func (f *BodyInjectionFilter) OnRequestStart(r *http.Request) {}

// OnResponseReady inserts the fragment into resp if resp is a full HTML document.
// Responses that are not HTML, have no closing body tag, or for which the provider
// returns a blank fragment are left untouched; none of these is an error.
// The only error is ErrTagProviderNotSet.
func (f *BodyInjectionFilter) OnResponseReady(r *http.Request, resp common.Response) error {
	outcome, err := f.apply(resp)
	if f.onOutcome != nil {
		f.onOutcome(r, outcome)
	}
	return err
}

func (f *BodyInjectionFilter) apply(resp common.Response) (Outcome, error) {
	if f.tagProvider == nil {
		return Failed, ErrTagProviderNotSet
	}

	if !IsHTML(resp.Header()) {
		return SkippedContentType, nil
	}

	fragment := f.tagProvider()
	if strings.TrimSpace(fragment) == "" {
		return SkippedEmptyFragment, nil
	}

	body, ok := InjectBeforeBodyClose(resp.Body(), []byte(fragment), f.injectAll)
	if !ok {
		return SkippedNoBodyTag, nil
	}
	resp.SetBody(body)
	return Injected, nil
}

// IsHTML reports whether a response with the given headers is eligible for injection:
// either it has no Content-Type or its Content-Type contains text/html, ignoring case.
func IsHTML(header http.Header) bool {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// InjectBeforeBodyClose returns body with fragment inserted immediately before the
// first closing body tag, or before every one of them when all is true.
// The second result is false, and body is returned as is, when there is no closing body tag.
func InjectBeforeBodyClose(body, fragment []byte, all bool) ([]byte, bool) {
	if !all {
		loc := bodyCloseTag.FindIndex(body)
		if loc == nil {
			return body, false
		}
		out := make([]byte, 0, len(body)+len(fragment))
		out = append(out, body[:loc[0]]...)
		out = append(out, fragment...)
		return append(out, body[loc[0]:]...), true
	}

	locs := bodyCloseTag.FindAllIndex(body, -1)
	if len(locs) == 0 {
		return body, false
	}
	var out bytes.Buffer
	out.Grow(len(body) + len(locs)*len(fragment))
	prev := 0
	for _, loc := range locs {
		out.Write(body[prev:loc[0]])
		out.Write(fragment)
		prev = loc[0]
	}
	out.Write(body[prev:])
	return out.Bytes(), true
}
