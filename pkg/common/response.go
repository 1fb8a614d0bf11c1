package common

import (
	"bytes"
	"net/http"
)

// ResponseBuffer is an in-memory Response.
// It is used by the filter middleware to hold a handler's output, and by hosts that
// already have a complete body at hand and want to run filters over it directly.
type ResponseBuffer struct {
	header http.Header
	body   bytes.Buffer
}

// NewResponseBuffer creates a ResponseBuffer with the given header and initial body.
// A nil header is replaced with an empty one.
func NewResponseBuffer(header http.Header, body []byte) *ResponseBuffer {
	if header == nil {
		header = make(http.Header)
	}
	rb := &ResponseBuffer{header: header}
	rb.body.Write(body)
	return rb
}

// Header returns the response headers
func (rb *ResponseBuffer) Header() http.Header {
	return rb.header
}

// Body returns the buffered body.
// The returned slice aliases the buffer until the next Write or SetBody.
func (rb *ResponseBuffer) Body() []byte {
	return rb.body.Bytes()
}

// SetBody replaces the buffered body
func (rb *ResponseBuffer) SetBody(body []byte) {
	// body may alias our own buffer, so copy before resetting
	replacement := append([]byte(nil), body...)
	rb.body.Reset()
	rb.body.Write(replacement)
}

// Write appends to the buffered body
func (rb *ResponseBuffer) Write(p []byte) (int, error) {
	return rb.body.Write(p)
}

// Len returns the number of buffered body bytes
func (rb *ResponseBuffer) Len() int {
	return rb.body.Len()
}
