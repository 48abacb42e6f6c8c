package httprequest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethod_KnownVerbs(t *testing.T) {
	operator := NewOperator(slog.Default())

	for _, name := range []string{"get", "post", "put", "delete", "request"} {
		call, ok := operator.Method(name)
		assert.True(t, ok, name)
		assert.NotNil(t, call, name)
	}

	_, ok := operator.Method("teleport")
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "available", "count": 3}`))
	}))
	defer server.Close()

	operator := NewOperator(slog.Default())
	call, _ := operator.Method("get")

	result, err := call(t.Context(), map[string]any{"url": server.URL})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result["status_code"])

	body, ok := result["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, float64(3), body["count"])
}

func TestPost_EncodesBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "o-1", payload["order_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reservation_id": "r-1"}`))
	}))
	defer server.Close()

	operator := NewOperator(slog.Default())
	call, _ := operator.Method("post")

	result, err := call(t.Context(), map[string]any{
		"url":     server.URL,
		"body":    map[string]any{"order_id": "o-1"},
		"headers": map[string]any{"Authorization": "Bearer token"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result["status_code"])
}

func TestRequest_ReadsVerbFromInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	operator := NewOperator(slog.Default())
	call, _ := operator.Method("request")

	_, err := call(t.Context(), map[string]any{"url": server.URL, "method": "patch"})
	require.NoError(t, err)
}

func TestDo_MissingURL(t *testing.T) {
	operator := NewOperator(slog.Default())
	call, _ := operator.Method("get")

	_, err := call(t.Context(), map[string]any{})
	require.ErrorIs(t, err, ErrURLRequired)
}

func TestDo_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	operator := NewOperator(slog.Default())
	call, _ := operator.Method("get")

	result, err := call(t.Context(), map[string]any{"url": server.URL})
	require.ErrorIs(t, err, ErrServerError)

	// The response is still returned for diagnostics.
	assert.Equal(t, http.StatusServiceUnavailable, result["status_code"])
}

func TestDo_ClientErrorIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))
	defer server.Close()

	operator := NewOperator(slog.Default())
	call, _ := operator.Method("get")

	result, err := call(t.Context(), map[string]any{"url": server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result["status_code"])
	assert.Equal(t, "nope", result["body"])
}
