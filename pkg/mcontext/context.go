// Package mcontext carries the request-scoped values middlefiddle components
// attach while a chain runs: request id, route name, client IP, authenticated
// user, database handles, and free-form flags.
//
// All values live in one container stored under a single context key, so any
// number of middleware can attach values with one level of context nesting.
// Once the container exists the With* setters mutate it in place and return
// the same context; a value attached by a before unit is therefore visible to
// every later unit and the terminal through the unchanged request pointer,
// which is what lets single-method handlers share state without swapping the
// *http.Request they were given. The chain seeds the container before running
// its first unit.
package mcontext

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"
)

// mContextKey is a private type for the context key to avoid collisions.
type mContextKey struct{}

// DatabaseTransaction is the transaction control surface stored in the
// container. Defined here rather than in pkg/middleware so handler code can
// fetch and use the transaction without importing the middleware package.
type DatabaseTransaction interface {
	Commit() error
	Rollback() error
	SavePoint(name string) error
	RollbackTo(name string) error
	// GetDB returns the underlying GORM DB instance for direct use when needed.
	GetDB() *gorm.DB
}

// MContext holds every value middlefiddle attaches to a request. The zero
// field values mean "not set"; the set booleans distinguish a stored zero
// from an absent value. User id and user object are stored untyped and
// accessed through the generic helpers, which recover the static type.
type MContext struct {
	requestID string
	routeName string
	clientIP  string
	start     time.Time

	userID any
	user   any

	db *gorm.DB
	tx DatabaseTransaction

	requestIDSet bool
	routeNameSet bool
	clientIPSet  bool
	userIDSet    bool
	userSet      bool
	dbSet        bool
	txSet        bool

	flags map[string]bool
}

// NewMContext creates an empty container. The start time is stamped here, so
// elapsed-time readers measure from the moment the chain began.
func NewMContext() *MContext {
	return &MContext{
		start: time.Now(),
	}
}

// GetMContext retrieves the container from a request context.
func GetMContext(ctx context.Context) (*MContext, bool) {
	mc, ok := ctx.Value(mContextKey{}).(*MContext)
	return mc, ok
}

// WithMContext stores the container in the context.
func WithMContext(ctx context.Context, mc *MContext) context.Context {
	return context.WithValue(ctx, mContextKey{}, mc)
}

// EnsureMContext retrieves the container, creating and storing one when
// absent. When the container already exists the returned context is the
// argument unchanged.
func EnsureMContext(ctx context.Context) (*MContext, context.Context) {
	mc, ok := GetMContext(ctx)
	if !ok {
		mc = NewMContext()
		ctx = WithMContext(ctx, mc)
	}
	return mc, ctx
}

// EnsureRequest returns a request whose context carries a container,
// allocating a new request only when one was missing.
func EnsureRequest(r *http.Request) *http.Request {
	if _, ok := GetMContext(r.Context()); ok {
		return r
	}
	_, ctx := EnsureMContext(r.Context())
	return r.WithContext(ctx)
}

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.requestID = id
	mc.requestIDSet = true
	return ctx
}

// GetRequestID retrieves the request id from the container.
func GetRequestID(ctx context.Context) (string, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.requestIDSet {
		return "", false
	}
	return mc.requestID, true
}

// GetRequestIDFromRequest is a convenience function to get the request id from a request.
func GetRequestIDFromRequest(r *http.Request) (string, bool) {
	return GetRequestID(r.Context())
}

// WithRouteName adds the bound route's id to the context.
func WithRouteName(ctx context.Context, name string) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.routeName = name
	mc.routeNameSet = true
	return ctx
}

// GetRouteName retrieves the bound route's id from the container.
func GetRouteName(ctx context.Context) (string, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.routeNameSet {
		return "", false
	}
	return mc.routeName, true
}

// GetRouteNameFromRequest is a convenience function to get the route id from a request.
func GetRouteNameFromRequest(r *http.Request) (string, bool) {
	return GetRouteName(r.Context())
}

// WithClientIP adds a client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.clientIP = ip
	mc.clientIPSet = true
	return ctx
}

// GetClientIP retrieves a client IP from the container.
func GetClientIP(ctx context.Context) (string, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.clientIPSet {
		return "", false
	}
	return mc.clientIP, true
}

// GetClientIPFromRequest is a convenience function to get the client IP from a request.
func GetClientIPFromRequest(r *http.Request) (string, bool) {
	return GetClientIP(r.Context())
}

// GetStartTime retrieves the container's creation time, which is when the
// chain began running for this request.
func GetStartTime(ctx context.Context) (time.Time, bool) {
	mc, ok := GetMContext(ctx)
	if !ok {
		return time.Time{}, false
	}
	return mc.start, true
}

// GetStartTimeFromRequest is a convenience function to get the start time from a request.
func GetStartTimeFromRequest(r *http.Request) (time.Time, bool) {
	return GetStartTime(r.Context())
}

// WithUserID adds an authenticated user id to the context.
// T is the user id type, chosen by the embedding application.
func WithUserID[T comparable](ctx context.Context, userID T) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.userID = userID
	mc.userIDSet = true
	return ctx
}

// GetUserID retrieves the user id from the container. Reading with a type
// parameter other than the one it was stored with reports not-set.
func GetUserID[T comparable](ctx context.Context) (T, bool) {
	var zero T
	mc, ok := GetMContext(ctx)
	if !ok || !mc.userIDSet {
		return zero, false
	}
	id, ok := mc.userID.(T)
	if !ok {
		return zero, false
	}
	return id, true
}

// GetUserIDFromRequest is a convenience function to get the user id from a request.
func GetUserIDFromRequest[T comparable](r *http.Request) (T, bool) {
	return GetUserID[T](r.Context())
}

// WithUser adds an authenticated user object to the context.
// U is the user object type, chosen by the embedding application.
func WithUser[U any](ctx context.Context, user *U) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.user = user
	mc.userSet = true
	return ctx
}

// GetUser retrieves the user object from the container. Reading with a type
// parameter other than the one it was stored with reports not-set.
func GetUser[U any](ctx context.Context) (*U, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.userSet {
		return nil, false
	}
	user, ok := mc.user.(*U)
	if !ok {
		return nil, false
	}
	return user, true
}

// GetUserFromRequest is a convenience function to get the user from a request.
func GetUserFromRequest[U any](r *http.Request) (*U, bool) {
	return GetUser[U](r.Context())
}

// WithDB adds a database handle to the context. Middleware stores either a
// request-scoped session or, when a transaction is active, the transaction's
// handle, so handler code reads one slot either way.
func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.db = db
	mc.dbSet = true
	return ctx
}

// GetDB retrieves the database handle from the container.
func GetDB(ctx context.Context) (*gorm.DB, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.dbSet {
		return nil, false
	}
	return mc.db, true
}

// GetDBFromRequest is a convenience function to get the database handle from a request.
func GetDBFromRequest(r *http.Request) (*gorm.DB, bool) {
	return GetDB(r.Context())
}

// WithTransaction adds a database transaction to the context.
func WithTransaction(ctx context.Context, tx DatabaseTransaction) context.Context {
	mc, ctx := EnsureMContext(ctx)
	mc.tx = tx
	mc.txSet = true
	return ctx
}

// GetTransaction retrieves the database transaction from the container.
func GetTransaction(ctx context.Context) (DatabaseTransaction, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || !mc.txSet {
		return nil, false
	}
	return mc.tx, true
}

// GetTransactionFromRequest is a convenience function to get the transaction from a request.
func GetTransactionFromRequest(r *http.Request) (DatabaseTransaction, bool) {
	return GetTransaction(r.Context())
}

// WithFlag adds a named boolean flag to the context.
func WithFlag(ctx context.Context, name string, value bool) context.Context {
	mc, ctx := EnsureMContext(ctx)
	if mc.flags == nil {
		mc.flags = make(map[string]bool)
	}
	mc.flags[name] = value
	return ctx
}

// GetFlag retrieves a named flag from the container.
func GetFlag(ctx context.Context, name string) (bool, bool) {
	mc, ok := GetMContext(ctx)
	if !ok || mc.flags == nil {
		return false, false
	}
	value, exists := mc.flags[name]
	return value, exists
}

// GetFlagFromRequest is a convenience function to get a flag from a request.
func GetFlagFromRequest(r *http.Request, name string) (bool, bool) {
	return GetFlag(r.Context(), name)
}
