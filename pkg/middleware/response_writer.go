package middleware

import (
	"net/http"
	"strconv"

	"github.com/Suhaibinator/SInject/pkg/common"
)

// responseWriter is a wrapper around http.ResponseWriter that captures the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write counts the bytes written and calls the underlying ResponseWriter.Write
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// bufferedResponseWriter holds a handler's complete output so filters can rewrite it
// before anything reaches the client. Headers are shared with the underlying writer.
type bufferedResponseWriter struct {
	*common.ResponseBuffer
	w           http.ResponseWriter
	statusCode  int
	wroteHeader bool
	modified    bool
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		ResponseBuffer: common.NewResponseBuffer(w.Header(), nil),
		w:              w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader records the final status code. Only the first call counts.
// Informational 1xx responses such as 103 Early Hints go straight through.
func (bw *bufferedResponseWriter) WriteHeader(statusCode int) {
	if bw.wroteHeader {
		return
	}
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		bw.w.WriteHeader(statusCode)
		return
	}
	bw.statusCode = statusCode
	bw.wroteHeader = true
}

// Write buffers b
func (bw *bufferedResponseWriter) Write(b []byte) (int, error) {
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
	return bw.ResponseBuffer.Write(b)
}

// SetBody replaces the buffered body and marks the response as rewritten
func (bw *bufferedResponseWriter) SetBody(body []byte) {
	bw.modified = true
	bw.ResponseBuffer.SetBody(body)
}

// Flush is a no-op: nothing may reach the client before the filters have run.
func (bw *bufferedResponseWriter) Flush() {}

// commit sends the buffered response to the underlying writer. Content-Length is recomputed only when a
// filter rewrote the body; otherwise the handler's headers are sent as they are.
func (bw *bufferedResponseWriter) commit() error {
	if bw.modified {
		bw.w.Header().Set("Content-Length", strconv.Itoa(bw.Len()))
	}
	bw.w.WriteHeader(bw.statusCode)
	if bw.Len() == 0 {
		return nil
	}
	_, err := bw.w.Write(bw.Body())
	return err
}
