package httprouter

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// contextKey is a type for context keys used by the adapter.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the request
	// context.
	ParamsKey contextKey = "params"
)

// GetParams retrieves the httprouter.Params from the request context.
// Returns nil when the request did not pass through the adapter.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific path parameter value from the request
// context. Returns an empty string when the parameter does not exist.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}
