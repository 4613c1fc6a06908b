package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

func logRequest(t *testing.T, status int) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	r := seededRequest(http.MethodGet, "/orders")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(status), Logging(zap.New(core))).Handle(common.NewStatusRecorder(w), r)
	require.NoError(t, err)
	return logs
}

func TestLoggingServerErrorLevel(t *testing.T) {
	logs := logRequest(t, http.StatusBadGateway)

	entries := logs.FilterMessage("Server error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusBadGateway), fields["status"])
	assert.Equal(t, "/orders", fields["path"])
	assert.Contains(t, fields, "bytes")
	assert.Contains(t, fields, "remote_addr")
}

func TestLoggingClientErrorLevel(t *testing.T) {
	logs := logRequest(t, http.StatusNotFound)

	entries := logs.FilterMessage("Client error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestLoggingNormalRequestDebugLevel(t *testing.T) {
	logs := logRequest(t, http.StatusOK)

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}

func TestLoggingIncludesRequestIDAndRoute(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := seededRequest(http.MethodGet, "/orders")
	mcontext.WithRequestID(r.Context(), "req-9")
	mcontext.WithRouteName(r.Context(), "list_orders")
	mcontext.WithClientIP(r.Context(), "203.0.113.7")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(http.StatusOK), Logging(zap.New(core))).Handle(common.NewStatusRecorder(w), r)
	require.NoError(t, err)

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "list_orders", fields["route"])
	assert.Equal(t, "203.0.113.7", fields["client_ip"])
}

func TestLoggingNotReachedOnHalt(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	halting := chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		return common.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	})

	r := seededRequest(http.MethodGet, "/orders")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(http.StatusOK), halting, Logging(zap.New(core))).Handle(common.NewStatusRecorder(w), r)
	require.Error(t, err)
	assert.Zero(t, logs.Len(), "halted requests are logged by the boundary, not this unit")
}
