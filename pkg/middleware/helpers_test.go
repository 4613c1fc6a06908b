package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// okTerminal returns a terminal that answers with status and no body.
func okTerminal(status int) common.Handler {
	return common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(status)
		return nil
	})
}

// seededRequest builds a test request with the mcontext container already
// attached, so tests can read container values after a chain run through the
// same request pointer.
func seededRequest(method, target string) *http.Request {
	return mcontext.EnsureRequest(httptest.NewRequest(method, target, nil))
}
