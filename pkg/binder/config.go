// Package binder registers declarative route tables against a router
// capability, composing one middleware chain per route from a shared unit
// set. The router is supplied and owned by the caller; the binder only calls
// its registration operations.
package binder

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
)

// Method defines the type for HTTP methods a route table may declare.
type Method string

// Constants for the supported methods. MethodAny binds a route under every
// explicit method at once.
const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodHead    Method = http.MethodHead
	MethodPatch   Method = http.MethodPatch // RFC 5789
	MethodOptions Method = http.MethodOptions
	MethodAny     Method = "ANY"
)

// methods lists every recognized Method value.
var methods = []Method{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodDelete,
	MethodHead,
	MethodPatch,
	MethodOptions,
	MethodAny,
}

// ParseMethod normalizes a method spelling from a table file into a Method
// constant. Matching is case-insensitive, so file tables may write "get".
// An unrecognized spelling returns an error; it is never skipped.
func ParseMethod(s string) (Method, error) {
	candidate := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range methods {
		if candidate == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("unrecognized HTTP method %q", s)
}

// Route is one entry of a route table: a stable id for diagnostics and
// router-side naming, the method and path to bind under, and the terminal
// handler that serves the route once every before unit has passed.
type Route struct {
	ID      string         // Non-empty; used as the registration name
	Method  Method         // One of the Method constants
	Path    string         // Must begin with "/"
	Handler common.Handler // Terminal handler; required
}

// Table is a complete route declaration: the routes and the shared
// middleware units composed around every one of them. The same unit set
// yields a distinct chain per route, so no state leaks between routes.
type Table struct {
	// Logger receives one debug line per bound route and a summary line per
	// table. When nil, a production logger is used, falling back to a no-op
	// logger if that cannot be built.
	Logger *zap.Logger

	// Routes lists the table entries. Binding an empty table is an error.
	Routes []Route

	// Middleware is the shared unit set. Order is preserved within each
	// kind: before units run in this order ahead of each route's handler,
	// after units in this order behind it.
	Middleware []chain.Unit
}
