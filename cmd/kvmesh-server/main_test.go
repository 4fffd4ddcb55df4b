package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "server.yaml")
	data := `
server:
  http:
    addr: 127.0.0.1:0
  redis:
    enabled: true
    addr: 127.0.0.1:0
  shutdown_timeout: 5s
storage:
  data_dir: ` + filepath.Join(dir, "data") + `
  snapshot_interval: 1h
security:
  api_key: test-key
log:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// startServer runs the server until the returned stop func is called.
func startServer(t *testing.T, configFile string) (listeners, func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan listeners, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, configFile, io.Discard, ready) }()

	select {
	case ls := <-ready:
		return ls, func() error {
			cancel()
			select {
			case err := <-errCh:
				return err
			case <-time.After(10 * time.Second):
				t.Fatal("server did not stop")
				return nil
			}
		}
	case err := <-errCh:
		cancel()
		t.Fatalf("run() error = %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return listeners{}, nil
}

func httpDo(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-key")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRun_ServesAndPersists(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)

	ls, stop := startServer(t, configFile)
	require.NotEmpty(t, ls.HTTP)
	require.NotEmpty(t, ls.Redis)

	status, _ := httpDo(t, http.MethodPost, "http://"+ls.HTTP+"/set/color/blue")
	assert.Equal(t, http.StatusOK, status)

	conn, err := net.Dial("tcp", ls.Redis)
	require.NoError(t, err)
	r := bufio.NewReader(conn)
	_, err = conn.Write([]byte("AUTH test-key\r\nGET color\r\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "$4\r\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "blue\r\n", line)
	conn.Close()

	resp, err := http.Get("http://" + ls.HTTP + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(metrics), "kvmesh_shard_active_entries"))

	require.NoError(t, stop())

	// The final snapshot written on shutdown is recovered by the next run.
	ls, stop = startServer(t, configFile)
	status, body := httpDo(t, http.MethodGet, "http://"+ls.HTTP+"/get/color")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "blue", body["data"].(map[string]any)["value"])
	require.NoError(t, stop())
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	data := "storage:\n  data_dir: " + filepath.Join(dir, "data") + "\n  shard_count: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	err := run(context.Background(), path, io.Discard, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.shard_count")
}

func TestRun_InvalidAPIKeyHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	data := "server:\n  http:\n    addr: 127.0.0.1:0\nstorage:\n  data_dir: " + filepath.Join(dir, "data") +
		"\nsecurity:\n  api_key_hash: not-a-phc-string\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	err := run(context.Background(), path, io.Discard, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init authenticator")
}
