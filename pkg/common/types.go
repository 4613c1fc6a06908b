// Package common provides the shared capability types used across middlefiddle.
package common

import (
	"net/http"
)

// Handler is the handler capability every piece of a middleware chain
// implements: terminal handlers, before units, and after units alike.
// A nil return means the step succeeded and processing continues; a non-nil
// error halts the chain and propagates verbatim to whoever invoked it.
// Handlers may write to w regardless of what they return.
type Handler interface {
	Handle(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc adapts an ordinary function to the Handler interface,
// mirroring http.HandlerFunc.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle calls f(w, r).
func (f HandlerFunc) Handle(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// FromHTTP adapts a plain http.Handler into the error-returning capability.
// The adapted handler always returns nil; any failure must be communicated
// through the response writer.
func FromHTTP(h http.Handler) Handler {
	return HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	})
}

// Registrar is the router capability the binder registers into. The router
// itself is owned by the caller; middlefiddle only calls these operations.
// name is the route id from the table, for diagnostics and router-side
// route naming.
//
// Any registers the handler for every method the table format supports.
type Registrar interface {
	Get(path string, h Handler, name string)
	Post(path string, h Handler, name string)
	Put(path string, h Handler, name string)
	Delete(path string, h Handler, name string)
	Head(path string, h Handler, name string)
	Patch(path string, h Handler, name string)
	Options(path string, h Handler, name string)
	Any(path string, h Handler, name string)
}
