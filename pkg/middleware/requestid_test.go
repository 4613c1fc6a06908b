package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

func TestIDGeneratorProducesDistinctIDs(t *testing.T) {
	gen := NewIDGenerator(8)
	defer gen.Stop()

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id := gen.Get()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}

func TestIDGeneratorGetAfterStop(t *testing.T) {
	gen := NewIDGenerator(2)
	gen.Stop()
	gen.Stop() // stopping twice is fine

	// The buffer drains, then ids are generated inline.
	for i := 0; i < 8; i++ {
		assert.NotEmpty(t, gen.Get())
	}
}

func TestRequestIDAssignsWhenMissing(t *testing.T) {
	gen := NewIDGenerator(4)
	defer gen.Stop()

	r := seededRequest(http.MethodGet, "/")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(http.StatusOK), RequestID(gen)).Handle(common.NewStatusRecorder(w), r)
	require.NoError(t, err)

	id, ok := mcontext.GetRequestIDFromRequest(r)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader), "the assigned id must be echoed to the client")
}

func TestRequestIDKeepsIncomingID(t *testing.T) {
	gen := NewIDGenerator(4)
	defer gen.Stop()

	r := seededRequest(http.MethodGet, "/")
	r.Header.Set(RequestIDHeader, "upstream-id-1")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(http.StatusOK), RequestID(gen)).Handle(common.NewStatusRecorder(w), r)
	require.NoError(t, err)

	id, ok := mcontext.GetRequestIDFromRequest(r)
	require.True(t, ok)
	assert.Equal(t, "upstream-id-1", id)
	assert.Equal(t, "upstream-id-1", w.Header().Get(RequestIDHeader))
}

func TestRequestIDNilGeneratorUsesDefault(t *testing.T) {
	r := seededRequest(http.MethodGet, "/")
	w := httptest.NewRecorder()

	err := chain.New(okTerminal(http.StatusOK), RequestID(nil)).Handle(common.NewStatusRecorder(w), r)
	require.NoError(t, err)

	id, ok := mcontext.GetRequestIDFromRequest(r)
	require.True(t, ok)
	assert.NotEmpty(t, id)
}
