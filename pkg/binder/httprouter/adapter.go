// Package httprouter adapts a julienschmidt/httprouter router to the
// common.Registrar capability, so route tables can bind against it.
package httprouter

import (
	"context"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// RouteInfo describes one registration in the adapter's name index.
type RouteInfo struct {
	Name   string
	Method string
	Path   string
}

// anyMethods is the set Any fans out to: the same methods a route table can
// declare explicitly.
var anyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodHead,
	http.MethodPatch,
	http.MethodOptions,
}

// Adapter implements common.Registrar over a *httprouter.Router the caller
// owns. It is the boundary between the error-returning handler capability
// and net/http: per request it stores the path parameters, seeds the
// mcontext container with the route name, wraps the response writer so the
// response stays observable, recovers panics, and turns a returned error
// into a JSON response when the handler has not answered yet.
//
// httprouter has no native route naming, so the adapter keeps its own
// name index for diagnostics. Registration rules of the underlying router
// still apply; conflicting paths panic inside httprouter itself.
//
// Register routes during startup from one goroutine; serving afterwards is
// concurrency-safe.
type Adapter struct {
	router *httprouter.Router
	logger *zap.Logger
	routes []RouteInfo
	byName map[string]RouteInfo
}

// New creates an adapter over router. Panics when router is nil. When logger
// is nil a production logger is used, falling back to a no-op logger.
func New(router *httprouter.Router, logger *zap.Logger) *Adapter {
	if router == nil {
		panic("httprouter: New called with a nil router")
	}
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	return &Adapter{
		router: router,
		logger: logger.Named("middlefiddle.httprouter"),
		byName: make(map[string]RouteInfo),
	}
}

// Get registers h under GET.
func (a *Adapter) Get(path string, h common.Handler, name string) {
	a.handle(http.MethodGet, path, h, name)
}

// Post registers h under POST.
func (a *Adapter) Post(path string, h common.Handler, name string) {
	a.handle(http.MethodPost, path, h, name)
}

// Put registers h under PUT.
func (a *Adapter) Put(path string, h common.Handler, name string) {
	a.handle(http.MethodPut, path, h, name)
}

// Delete registers h under DELETE.
func (a *Adapter) Delete(path string, h common.Handler, name string) {
	a.handle(http.MethodDelete, path, h, name)
}

// Head registers h under HEAD.
func (a *Adapter) Head(path string, h common.Handler, name string) {
	a.handle(http.MethodHead, path, h, name)
}

// Patch registers h under PATCH.
func (a *Adapter) Patch(path string, h common.Handler, name string) {
	a.handle(http.MethodPatch, path, h, name)
}

// Options registers h under OPTIONS.
func (a *Adapter) Options(path string, h common.Handler, name string) {
	a.handle(http.MethodOptions, path, h, name)
}

// Any registers h under every method in anyMethods. The name index records a
// single ANY entry; the underlying router gets one handle per method.
func (a *Adapter) Any(path string, h common.Handler, name string) {
	a.index(RouteInfo{Name: name, Method: "ANY", Path: path})
	wrapped := a.wrap(h, name)
	for _, m := range anyMethods {
		a.router.Handle(m, path, wrapped)
	}
}

// Routes returns every registration in order.
func (a *Adapter) Routes() []RouteInfo {
	out := make([]RouteInfo, len(a.routes))
	copy(out, a.routes)
	return out
}

// Lookup returns the route registered under name. When a name was registered
// twice, the last registration wins.
func (a *Adapter) Lookup(name string) (RouteInfo, bool) {
	info, ok := a.byName[name]
	return info, ok
}

func (a *Adapter) handle(method, path string, h common.Handler, name string) {
	a.index(RouteInfo{Name: name, Method: method, Path: path})
	a.router.Handle(method, path, a.wrap(h, name))
}

func (a *Adapter) index(info RouteInfo) {
	a.routes = append(a.routes, info)
	if _, exists := a.byName[info.Name]; exists {
		a.logger.Warn("Route name registered twice; Lookup keeps the last registration",
			zap.String("route", info.Name),
		)
	}
	a.byName[info.Name] = info
}

// wrap converts a handler capability into an httprouter.Handle that owns the
// request boundary.
func (a *Adapter) wrap(h common.Handler, name string) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		// Store the path parameters so handlers can access them via GetParams.
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		req = req.WithContext(ctx)

		req = mcontext.EnsureRequest(req)
		mcontext.WithRouteName(req.Context(), name)

		rec := common.NewStatusRecorder(w)
		defer func() {
			if p := recover(); p != nil {
				a.recoverPanic(rec, req, p)
			}
		}()

		if err := h.Handle(rec, req); err != nil {
			a.handleError(rec, req, err)
		}
	}
}

// handleError logs a capability error and answers the request when the
// handler has not already done so. A *common.HTTPError picks the status and
// message; any other error answers 500.
func (a *Adapter) handleError(rec *common.StatusRecorder, req *http.Request, err error) {
	requestID, _ := mcontext.GetRequestIDFromRequest(req)
	routeName, _ := mcontext.GetRouteNameFromRequest(req)

	statusCode := http.StatusInternalServerError
	message := "Internal Server Error"
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("route", routeName),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	if requestID != "" {
		fields = append([]zap.Field{zap.String("request_id", requestID)}, fields...)
	}
	if statusCode >= http.StatusInternalServerError {
		a.logger.Error("Handler failed", fields...)
	} else {
		a.logger.Warn("Request halted", fields...)
	}

	if !rec.Written() {
		common.WriteJSONError(rec, statusCode, message, requestID)
	}
}

// recoverPanic logs a recovered panic and returns a 500 response when the
// handler has not written yet. This keeps a panicking unit from tearing down
// the server.
func (a *Adapter) recoverPanic(rec *common.StatusRecorder, req *http.Request, p any) {
	requestID, _ := mcontext.GetRequestIDFromRequest(req)

	fields := []zap.Field{
		zap.Any("panic", p),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	if requestID != "" {
		fields = append([]zap.Field{zap.String("request_id", requestID)}, fields...)
	}
	a.logger.Error("Panic recovered", fields...)

	if !rec.Written() {
		common.WriteJSONError(rec, http.StatusInternalServerError, "Internal Server Error", requestID)
	}
}
