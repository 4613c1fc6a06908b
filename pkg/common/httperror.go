package common

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is an error carrying an HTTP status code. Handlers and middleware
// may return one to tell boundary code (such as the httprouter adapter) which
// status to answer with; the chain itself never constructs or inspects it.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// jsonErrorResponse is the body shape written by WriteJSONError.
type jsonErrorResponse struct {
	Error jsonErrorDetail `json:"error"`
}

type jsonErrorDetail struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSONError writes a JSON error body with the given status. requestID
// may be empty, in which case it is omitted from the body. Used by the
// adapter's error boundary when a handler error reaches it with nothing
// written yet.
func WriteJSONError(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	// Encoding a flat struct of strings cannot fail; a failed write means a
	// dead client.
	_ = json.NewEncoder(w).Encode(jsonErrorResponse{
		Error: jsonErrorDetail{
			Message:   message,
			RequestID: requestID,
		},
	})
}
