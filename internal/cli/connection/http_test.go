package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

func writeEnvelope(w http.ResponseWriter, status int, code, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-test",
		"timestamp":  1,
		"data":       data,
	})
}

func newClient(t *testing.T, srv *httptest.Server, apiKey string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(ClientConfig{Server: srv.URL, APIKey: apiKey})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"with http prefix", "http://localhost:8080", "http://localhost:8080"},
		{"with https prefix", "https://localhost:8080", "https://localhost:8080"},
		{"without prefix", "localhost:8080", "http://localhost:8080"},
		{"trailing slash", "http://localhost:8080/", "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewHTTPClient(ClientConfig{Server: tt.server})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestNewHTTPClient_TLS(t *testing.T) {
	c, err := NewHTTPClient(ClientConfig{Server: "https://localhost:8443", Insecure: true})
	require.NoError(t, err)
	require.NotNil(t, c.TLSConfig())
	assert.True(t, c.TLSConfig().InsecureSkipVerify)

	plain, err := NewHTTPClient(ClientConfig{Server: "localhost:8080"})
	require.NoError(t, err)
	assert.Nil(t, plain.TLSConfig())

	_, err = NewHTTPClient(ClientConfig{Server: "https://localhost:8443", CAFile: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestHTTPClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get/a%2Fb", r.URL.EscapedPath())
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, buildinfo.UserAgent("kvmesh-cli"), r.Header.Get("User-Agent"))
		writeEnvelope(w, http.StatusOK, "OK", "Success", map[string]string{"key": "a/b", "value": "v"})
	}))
	defer srv.Close()

	kv, err := newClient(t, srv, "secret").Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, &KV{Key: "a/b", Value: "v"}, kv)
}

func TestHTTPClient_Set(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/kv/k1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Value string `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "x/y z", body.Value)
		writeEnvelope(w, http.StatusOK, "OK", "key 'k1' set successfully", map[string]string{"key": "k1", "value": body.Value})
	}))
	defer srv.Close()

	kv, err := newClient(t, srv, "").Set(context.Background(), "k1", "x/y z")
	require.NoError(t, err)
	assert.Equal(t, "x/y z", kv.Value)
}

func TestHTTPClient_Delete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/delete/k1", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, "OK", "key 'k1' deleted", map[string]string{"key": "k1"})
	}))
	defer srv.Close()

	require.NoError(t, newClient(t, srv, "").Delete(context.Background(), "k1"))
}

func TestHTTPClient_StatusAndSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", "Success", map[string]any{
			"status":   "running",
			"ready":    true,
			"entries":  3,
			"capacity": 100,
			"shards":   []map[string]int{{"active": 1, "capacity": 50}, {"active": 2, "capacity": 50}},
			"build":    map[string]string{"version": "1.0.0"},
		})
	})
	mux.HandleFunc("POST /admin/v1/snapshots", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", "snapshot written", map[string]any{
			"path": "/data/snapshot.json", "entries": 3, "size": 120, "created_at": 42,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv, "")
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Ready)
	assert.Equal(t, 3, st.Entries)
	assert.Len(t, st.Shards, 2)
	assert.Equal(t, "1.0.0", st.Build.Version)
	assert.Nil(t, st.Replication)

	info, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/data/snapshot.json", info.Path)
	assert.Equal(t, int64(120), info.Size)
}

func TestHTTPClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "KM-KV-4040", "key not found", nil)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "").Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "KM-KV-4040", apiErr.Code)
	assert.Equal(t, "req-test", apiErr.RequestID)
	assert.Equal(t, "[KM-KV-4040] key not found", err.Error())
}

func TestParseResponse_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "").Probe(context.Background(), "/health")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code)
	assert.True(t, strings.HasPrefix(err.Error(), "request failed with status 502"))
	assert.False(t, IsNotFound(err))
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "").Probe(context.Background(), "/ready")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", "", nil)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, srv, "").Probe(ctx, "/health")
	assert.ErrorIs(t, err, context.Canceled)
}
