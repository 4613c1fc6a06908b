// Package chain composes ordered before/after middleware units around a
// terminal handler, producing a single handler capability per route.
package chain

import (
	"net/http"

	"github.com/middlefiddle/middlefiddle/pkg/common"
)

// Kind tags a middleware unit as running before or after the terminal handler.
type Kind uint8

const (
	// KindBefore runs ahead of the terminal handler and may halt the request
	// by returning an error.
	KindBefore Kind = iota
	// KindAfter runs only once every before unit and the terminal handler
	// have succeeded.
	KindAfter
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBefore:
		return "before"
	case KindAfter:
		return "after"
	default:
		return "unknown"
	}
}

// Unit is one middleware declaration: a kind plus the handler implementing
// it. Units are built with Before or After and are immutable afterwards; the
// zero Unit is invalid and rejected by New.
type Unit struct {
	kind Kind
	h    common.Handler
}

// Before declares a unit that runs ahead of the terminal handler.
// Panics when h is nil; a nil unit is a programming error in the table
// literal and is caught where the table is built, not at request time.
func Before(h common.Handler) Unit {
	if h == nil {
		panic("chain: Before called with a nil handler")
	}
	return Unit{kind: KindBefore, h: h}
}

// After declares a unit that runs once the terminal handler has succeeded.
// Panics when h is nil.
func After(h common.Handler) Unit {
	if h == nil {
		panic("chain: After called with a nil handler")
	}
	return Unit{kind: KindAfter, h: h}
}

// BeforeFunc declares a before unit from a bare function.
func BeforeFunc(f func(w http.ResponseWriter, r *http.Request) error) Unit {
	if f == nil {
		panic("chain: BeforeFunc called with a nil function")
	}
	return Before(common.HandlerFunc(f))
}

// AfterFunc declares an after unit from a bare function.
func AfterFunc(f func(w http.ResponseWriter, r *http.Request) error) Unit {
	if f == nil {
		panic("chain: AfterFunc called with a nil function")
	}
	return After(common.HandlerFunc(f))
}

// Kind returns the unit's kind.
func (u Unit) Kind() Kind {
	return u.kind
}

// Handler returns the wrapped handler.
func (u Unit) Handler() common.Handler {
	return u.h
}
