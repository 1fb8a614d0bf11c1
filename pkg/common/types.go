// Package common provides shared types and utilities used across the SInject packages.
package common

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// It allows for pre-processing and post-processing of HTTP requests.
// Middleware can be chained together to create a pipeline of request processing.
type Middleware func(http.Handler) http.Handler

// Response is the mutable view of an outgoing response that filters operate on.
// Header lookups are case-insensitive through http.Header.Get.
type Response interface {
	// Header returns the response headers. Filters may read and modify them.
	Header() http.Header

	// Body returns the response body generated so far.
	Body() []byte

	// SetBody replaces the response body.
	SetBody(body []byte)
}

// Filter is a two-phase hook over a request/response pair.
// The host calls OnRequestStart before the handler runs and OnResponseReady once the
// handler has produced the complete response, before anything is sent to the client.
type Filter interface {
	// OnRequestStart is called before the handler.
	OnRequestStart(r *http.Request)

	// OnResponseReady is called with the buffered response. It may mutate resp in place.
	// A returned error means the response must not be sent as is.
	OnResponseReady(r *http.Request, resp Response) error
}
