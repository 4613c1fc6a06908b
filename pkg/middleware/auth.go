// Package middleware ships the stock middlefiddle units: authentication,
// request ids, client IP extraction, rate limiting, request logging, metrics
// collection, and database session and transaction plumbing. Every
// constructor returns a chain.Unit, so a unit list can be declared once and
// shared across a whole route table.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// AuthProvider defines an interface for authentication providers. Different
// authentication mechanisms can implement this interface to be used with the
// Authentication unit. The package includes BearerTokenProvider and
// APIKeyProvider implementations.
// The type parameter T represents the user ID type, which can be any
// comparable type.
type AuthProvider[T comparable] interface {
	// Authenticate examines the request for credentials and validates them.
	// Returns the user ID and true when the request is authenticated, the
	// zero value of T and false otherwise.
	Authenticate(r *http.Request) (T, bool)
}

// BearerTokenProvider provides Bearer Token Authentication. It can validate
// tokens against a predefined map or using a custom validator function.
type BearerTokenProvider[T comparable] struct {
	ValidTokens map[string]T                 // token -> user ID
	Validator   func(token string) (T, bool) // optional token validator
}

// Authenticate extracts the token from the Authorization header and validates
// it using either the validator function (if provided) or the ValidTokens
// map.
func (p *BearerTokenProvider[T]) Authenticate(r *http.Request) (T, bool) {
	var zeroValue T

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return zeroValue, false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return zeroValue, false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	if p.Validator != nil {
		return p.Validator(token)
	}
	if userID, ok := p.ValidTokens[token]; ok {
		return userID, true
	}
	return zeroValue, false
}

// APIKeyProvider provides API Key Authentication. It can validate API keys
// provided in a header or query parameter.
type APIKeyProvider[T comparable] struct {
	ValidKeys map[string]T // key -> user ID
	Header    string       // header name (e.g., "X-API-Key")
	Query     string       // query parameter name (e.g., "api_key")
}

// Authenticate checks for the API key in either the specified header or query
// parameter and validates it against the stored valid keys.
func (p *APIKeyProvider[T]) Authenticate(r *http.Request) (T, bool) {
	var zeroValue T

	if p.Header != "" {
		key := r.Header.Get(p.Header)
		if key != "" {
			if userID, ok := p.ValidKeys[key]; ok {
				return userID, true
			}
		}
	}
	if p.Query != "" {
		key := r.URL.Query().Get(p.Query)
		if key != "" {
			if userID, ok := p.ValidKeys[key]; ok {
				return userID, true
			}
		}
	}
	return zeroValue, false
}

// Authentication returns a before unit that authenticates every request with
// the given provider. On success the user ID is stored in the mcontext
// container for downstream units and the terminal. On failure the unit
// returns a 401 *common.HTTPError, which halts the chain; the registrar
// boundary renders it.
//
// OPTIONS requests pass through without authentication so CORS preflights
// keep working.
func Authentication[T comparable](provider AuthProvider[T], logger *zap.Logger) chain.Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method == http.MethodOptions {
			// Allow preflight requests without authentication.
			return nil
		}
		userID, ok := provider.Authenticate(r)
		if !ok {
			logger.Warn("Authentication failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			return common.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		mcontext.WithUserID(r.Context(), userID)
		return nil
	})
}

// AuthenticationFunc returns a before unit that authenticates with a plain
// function instead of a provider.
func AuthenticationFunc[T comparable](authFunc func(*http.Request) (T, bool), logger *zap.Logger) chain.Unit {
	return Authentication[T](authProviderFunc[T](authFunc), logger)
}

type authProviderFunc[T comparable] func(*http.Request) (T, bool)

func (f authProviderFunc[T]) Authenticate(r *http.Request) (T, bool) { return f(r) }

// NewBearerTokenAuth creates a before unit that uses Bearer Token
// Authentication against a fixed token map.
func NewBearerTokenAuth[T comparable](validTokens map[string]T, logger *zap.Logger) chain.Unit {
	return Authentication[T](&BearerTokenProvider[T]{ValidTokens: validTokens}, logger)
}

// NewBearerTokenValidatorAuth creates a before unit that uses Bearer Token
// Authentication with a custom validator function.
func NewBearerTokenValidatorAuth[T comparable](validator func(string) (T, bool), logger *zap.Logger) chain.Unit {
	return Authentication[T](&BearerTokenProvider[T]{Validator: validator}, logger)
}

// NewAPIKeyAuth creates a before unit that uses API Key Authentication.
func NewAPIKeyAuth[T comparable](validKeys map[string]T, header, query string, logger *zap.Logger) chain.Unit {
	return Authentication[T](&APIKeyProvider[T]{
		ValidKeys: validKeys,
		Header:    header,
		Query:     query,
	}, logger)
}

// UserAuthProvider defines an interface for authentication providers that
// return a full user object rather than just an ID.
type UserAuthProvider[U any] interface {
	// AuthenticateUser examines the request for credentials and validates
	// them. Returns the user object when the request is authenticated, nil
	// and an error otherwise.
	AuthenticateUser(r *http.Request) (*U, error)
}

// BasicUserAuthProvider provides HTTP Basic Authentication with user object
// return.
type BasicUserAuthProvider[U any] struct {
	GetUserFunc func(username, password string) (*U, error)
}

// AuthenticateUser extracts the username and password from the Authorization
// header and resolves them through GetUserFunc.
func (p *BasicUserAuthProvider[U]) AuthenticateUser(r *http.Request) (*U, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, errors.New("no basic auth credentials")
	}
	return p.GetUserFunc(username, password)
}

// BearerTokenUserAuthProvider provides Bearer Token Authentication with user
// object return.
type BearerTokenUserAuthProvider[U any] struct {
	GetUserFunc func(token string) (*U, error)
}

// AuthenticateUser extracts the token from the Authorization header and
// resolves it through GetUserFunc.
func (p *BearerTokenUserAuthProvider[U]) AuthenticateUser(r *http.Request) (*U, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.New("no authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errors.New("invalid authorization header format")
	}
	return p.GetUserFunc(strings.TrimPrefix(authHeader, "Bearer "))
}

// AuthenticationUser returns a before unit that authenticates with a
// user-object provider and stores the user in the mcontext container on
// success. Failures halt the chain with a 401 *common.HTTPError.
func AuthenticationUser[U any](provider UserAuthProvider[U], logger *zap.Logger) chain.Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method == http.MethodOptions {
			return nil
		}
		user, err := provider.AuthenticateUser(r)
		if err != nil || user == nil {
			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			return common.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		mcontext.WithUser(r.Context(), user)
		return nil
	})
}

// NewBasicUserAuth creates a before unit that uses HTTP Basic Authentication
// and stores the resolved user object.
func NewBasicUserAuth[U any](getUserFunc func(username, password string) (*U, error), logger *zap.Logger) chain.Unit {
	return AuthenticationUser[U](&BasicUserAuthProvider[U]{GetUserFunc: getUserFunc}, logger)
}

// NewBearerTokenUserAuth creates a before unit that uses Bearer Token
// Authentication and stores the resolved user object.
func NewBearerTokenUserAuth[U any](getUserFunc func(token string) (*U, error), logger *zap.Logger) chain.Unit {
	return AuthenticationUser[U](&BearerTokenUserAuthProvider[U]{GetUserFunc: getUserFunc}, logger)
}
