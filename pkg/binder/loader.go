package binder

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
)

// tableFile is the YAML shape of a route table:
//
//	middleware:
//	  - kind: before
//	    name: auth
//	routes:
//	  - id: users_index
//	    method: get
//	    path: /users
//	    handler: list_users
type tableFile struct {
	Middleware []middlewareEntry `yaml:"middleware"`
	Routes     []routeEntry      `yaml:"routes"`
}

type middlewareEntry struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

type routeEntry struct {
	ID      string `yaml:"id"`
	Method  string `yaml:"method"`
	Path    string `yaml:"path"`
	Handler string `yaml:"handler"`
}

// LoadTable reads a YAML route table file and resolves it against reg.
// Tables load once at startup; the file is never watched or re-read.
func LoadTable(path string, reg *Registry) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read route table: %w", err)
	}
	return ParseTable(data, reg)
}

// ParseTable parses YAML bytes into a Table ready for Bind. Every handler and
// middleware name must resolve through the registry and every middleware kind
// must be "before" or "after"; method spellings go through ParseMethod.
// Structural validation of the resolved table (empty table, ids, paths) stays
// with Bind.
func ParseTable(data []byte, reg *Registry) (Table, error) {
	if reg == nil {
		reg = NewRegistry()
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Table{}, fmt.Errorf("parse route table: %w", err)
	}

	var table Table
	for i, m := range file.Middleware {
		h, ok := reg.Middleware(m.Name)
		if !ok {
			return Table{}, fmt.Errorf("middleware %d (%s): not registered", i, m.Name)
		}
		switch strings.ToLower(strings.TrimSpace(m.Kind)) {
		case "before":
			table.Middleware = append(table.Middleware, chain.Before(h))
		case "after":
			table.Middleware = append(table.Middleware, chain.After(h))
		default:
			return Table{}, fmt.Errorf("middleware %d (%s): unrecognized kind %q", i, m.Name, m.Kind)
		}
	}

	for i, rt := range file.Routes {
		h, ok := reg.Handler(rt.Handler)
		if !ok {
			return Table{}, fmt.Errorf("route %d (%s): handler %q not registered", i, rt.ID, rt.Handler)
		}
		method, err := ParseMethod(rt.Method)
		if err != nil {
			return Table{}, fmt.Errorf("route %d (%s): %w", i, rt.ID, err)
		}
		table.Routes = append(table.Routes, Route{
			ID:      rt.ID,
			Method:  method,
			Path:    rt.Path,
			Handler: h,
		})
	}

	return table, nil
}
