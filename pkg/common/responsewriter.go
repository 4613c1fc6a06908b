package common

import (
	"net/http"
)

// StatusRecorder wraps an http.ResponseWriter and records the status code and
// the number of body bytes written. The adapter installs one around every
// request so after-units (logging, metrics) and boundary error handling can
// observe the response without the terminal handler cooperating.
type StatusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// NewStatusRecorder wraps w. The recorded status defaults to 200, matching
// net/http's implicit WriteHeader on first Write.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

// WriteHeader records the status code and forwards it. Subsequent calls are
// forwarded unchanged (net/http logs the superfluous call) but do not change
// the recorded status.
func (sr *StatusRecorder) WriteHeader(statusCode int) {
	if !sr.wroteHeader {
		sr.status = statusCode
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(statusCode)
}

// Write forwards the body bytes, implying a 200 header on first use as
// net/http does.
func (sr *StatusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.wroteHeader = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
func (sr *StatusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the recorded status code.
func (sr *StatusRecorder) Status() int {
	return sr.status
}

// BytesWritten returns the number of body bytes written so far.
func (sr *StatusRecorder) BytesWritten() int64 {
	return sr.bytes
}

// Written reports whether the header or any body bytes have been written.
// Boundary code uses this to avoid answering a request twice.
func (sr *StatusRecorder) Written() bool {
	return sr.wroteHeader
}
