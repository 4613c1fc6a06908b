package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRecorderDefaults(t *testing.T) {
	rec := NewStatusRecorder(httptest.NewRecorder())

	assert.Equal(t, http.StatusOK, rec.Status())
	assert.EqualValues(t, 0, rec.BytesWritten())
	assert.False(t, rec.Written())
}

func TestStatusRecorderWriteHeader(t *testing.T) {
	underlying := httptest.NewRecorder()
	rec := NewStatusRecorder(underlying)

	rec.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rec.Status())
	assert.Equal(t, http.StatusTeapot, underlying.Code)
	assert.True(t, rec.Written())
}

func TestStatusRecorderWriteImpliesOK(t *testing.T) {
	rec := NewStatusRecorder(httptest.NewRecorder())

	n, err := rec.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, http.StatusOK, rec.Status())
	assert.EqualValues(t, 5, rec.BytesWritten())
	assert.True(t, rec.Written())
}

func TestStatusRecorderFirstStatusWins(t *testing.T) {
	rec := NewStatusRecorder(httptest.NewRecorder())

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusNotFound, rec.Status())
}

func TestStatusRecorderAccumulatesBytes(t *testing.T) {
	rec := NewStatusRecorder(httptest.NewRecorder())

	_, _ = rec.Write([]byte("hello, "))
	_, _ = rec.Write([]byte("world"))

	assert.EqualValues(t, len("hello, world"), rec.BytesWritten())
}

func TestStatusRecorderFlush(t *testing.T) {
	underlying := httptest.NewRecorder()
	rec := NewStatusRecorder(underlying)

	_, _ = rec.Write([]byte("data"))
	rec.Flush()

	assert.True(t, underlying.Flushed)
}
