package chain

import (
	"net/http"

	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// Chain is a composed middleware chain: an ordered list of before handlers,
// one terminal handler, and an ordered list of after handlers. A Chain is
// itself a common.Handler, so it can be registered wherever a plain handler
// capability is expected, including as the terminal of another chain.
//
// A Chain holds no per-request state; a single value serves concurrent
// requests. All request-scoped values travel in the mcontext container the
// chain seeds at the start of every invocation.
type Chain struct {
	before   []common.Handler
	terminal common.Handler
	after    []common.Handler
}

// New composes terminal with the given units. Units keep their relative order
// within each kind regardless of how the kinds are interleaved in the
// argument list. The units are split and copied into the chain, so the caller
// may reuse one unit slice to build any number of chains.
//
// Panics when terminal is nil or when any unit carries no handler (a zero
// Unit); both are programming errors in the composition site.
func New(terminal common.Handler, units ...Unit) *Chain {
	if terminal == nil {
		panic("chain: New called with a nil terminal handler")
	}
	c := &Chain{terminal: terminal}
	for _, u := range units {
		if u.h == nil {
			panic("chain: unit without a handler; build units with Before or After")
		}
		switch u.kind {
		case KindBefore:
			c.before = append(c.before, u.h)
		case KindAfter:
			c.after = append(c.after, u.h)
		}
	}
	return c
}

// Handle runs one request through the chain: before handlers in order, the
// terminal exactly once, then after handlers in order. The first non-nil
// error halts the sequence, skipping everything downstream including the
// after handlers, and is returned verbatim; the chain never wraps,
// replaces, or inspects capability errors.
func (c *Chain) Handle(w http.ResponseWriter, r *http.Request) error {
	r = mcontext.EnsureRequest(r)

	for _, h := range c.before {
		if err := h.Handle(w, r); err != nil {
			return err
		}
	}
	if err := c.terminal.Handle(w, r); err != nil {
		return err
	}
	for _, h := range c.after {
		if err := h.Handle(w, r); err != nil {
			return err
		}
	}
	return nil
}
