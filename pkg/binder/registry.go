package binder

import (
	"fmt"

	"github.com/middlefiddle/middlefiddle/pkg/common"
)

// Registry resolves the names a file-based route table refers to. The
// embedding program registers its terminal handlers and middleware handlers
// under stable names at startup; the loader looks them up while turning a
// table file into a Table. Middleware handlers are registered untagged; the
// table file declares whether each one runs before or after.
//
// A Registry is not safe for concurrent registration; populate it during
// startup before loading tables.
type Registry struct {
	handlers   map[string]common.Handler
	middleware map[string]common.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:   make(map[string]common.Handler),
		middleware: make(map[string]common.Handler),
	}
}

// RegisterHandler registers a terminal handler under name. Empty names, nil
// handlers, and duplicate registrations are errors.
func (reg *Registry) RegisterHandler(name string, h common.Handler) error {
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler %q must not be nil", name)
	}
	if _, exists := reg.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	reg.handlers[name] = h
	return nil
}

// RegisterMiddleware registers a middleware handler under name. Empty names,
// nil handlers, and duplicate registrations are errors.
func (reg *Registry) RegisterMiddleware(name string, h common.Handler) error {
	if name == "" {
		return fmt.Errorf("middleware name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("middleware %q must not be nil", name)
	}
	if _, exists := reg.middleware[name]; exists {
		return fmt.Errorf("middleware %q already registered", name)
	}
	reg.middleware[name] = h
	return nil
}

// Handler looks up a terminal handler by name.
func (reg *Registry) Handler(name string) (common.Handler, bool) {
	h, ok := reg.handlers[name]
	return h, ok
}

// Middleware looks up a middleware handler by name.
func (reg *Registry) Middleware(name string) (common.Handler, bool) {
	h, ok := reg.middleware[name]
	return h, ok
}
