package binder

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
)

// Bind validates the table and registers every route against reg. Each route
// gets its own chain composed from the table's shared middleware set with the
// route's handler as terminal, registered under the route's method, path, and
// id.
//
// Validation covers the whole table before anything is registered: an empty
// route list, an empty or duplicate id, a nil handler, a path without a
// leading "/", or an unrecognized method are configuration errors. All of
// them are collected and returned together, and a table with any invalid
// route registers nothing. A typo in a method name is therefore a loud
// failure at startup, never a silently missing route.
//
// Bind never mutates the table. Binding the same table into two fresh
// registrars produces identical registration sequences.
//
// Panics when reg is nil.
func Bind(reg common.Registrar, table Table) error {
	if reg == nil {
		panic("binder: Bind called with a nil registrar")
	}

	logger := table.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	logger = logger.Named("middlefiddle")

	parsed, err := validate(table)
	if err != nil {
		return err
	}

	for i, rt := range table.Routes {
		h := chain.New(rt.Handler, table.Middleware...)
		register(reg, parsed[i], rt.Path, h, rt.ID)
		logger.Debug("Bound route",
			zap.String("route", rt.ID),
			zap.String("method", string(parsed[i])),
			zap.String("path", rt.Path),
		)
	}

	logger.Info("Route table bound",
		zap.Int("routes", len(table.Routes)),
		zap.Int("middleware_units", len(table.Middleware)),
	)
	return nil
}

// validate checks the whole table and returns the normalized method for each
// route. The returned slice is only meaningful when the error is nil.
func validate(table Table) ([]Method, error) {
	if len(table.Routes) == 0 {
		return nil, errors.New("table must declare at least one route")
	}

	parsed := make([]Method, len(table.Routes))
	seen := make(map[string]struct{}, len(table.Routes))
	var errs error
	for i, rt := range table.Routes {
		label := rt.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errs = multierr.Append(errs, fmt.Errorf("route %s: id must not be empty", label))
		} else if _, dup := seen[rt.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("route %s: id declared twice", label))
		} else {
			seen[rt.ID] = struct{}{}
		}
		if rt.Handler == nil {
			errs = multierr.Append(errs, fmt.Errorf("route %s: handler must not be nil", label))
		}
		if !strings.HasPrefix(rt.Path, "/") {
			errs = multierr.Append(errs, fmt.Errorf("route %s: path %q must begin with a slash", label, rt.Path))
		}
		m, err := ParseMethod(string(rt.Method))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("route %s: %w", label, err))
			continue
		}
		parsed[i] = m
	}
	if errs != nil {
		return nil, errs
	}
	return parsed, nil
}

// register dispatches one route to the registrar operation matching its
// method. method is already validated, so the switch is exhaustive.
func register(reg common.Registrar, method Method, path string, h common.Handler, name string) {
	switch method {
	case MethodGet:
		reg.Get(path, h, name)
	case MethodPost:
		reg.Post(path, h, name)
	case MethodPut:
		reg.Put(path, h, name)
	case MethodDelete:
		reg.Delete(path, h, name)
	case MethodHead:
		reg.Head(path, h, name)
	case MethodPatch:
		reg.Patch(path, h, name)
	case MethodOptions:
		reg.Options(path, h, name)
	case MethodAny:
		reg.Any(path, h, name)
	}
}
