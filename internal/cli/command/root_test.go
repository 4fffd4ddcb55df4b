package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver"
	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// newTestServer serves a real router over a fresh engine.
func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := storage.DefaultConfig(t.TempDir())
	cfg.SnapshotInterval = time.Hour
	cfg.Logger = quiet
	engine, err := storage.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, engine.Recover(context.Background()))

	auth, err := service.NewAuthenticator(service.AuthConfig{APIKey: apiKey})
	require.NoError(t, err)

	h, err := httpserver.NewRouter(httpserver.RouterConfig{
		Store:         engine,
		Authenticator: auth,
		Logger:        quiet,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// run executes the CLI with stdin and returns its standard output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KVMESH_SERVER", "")
	t.Setenv("KVMESH_API_KEY", "")
	os.Unsetenv("KVMESH_SERVER")
	os.Unsetenv("KVMESH_API_KEY")

	var out bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"kvmesh-cli"}, args...))
	return out.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	assert.Equal(t, "kvmesh-cli", app.Name)

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"get", "set", "delete", "status", "snapshot", "health", "ready", "hash-key", "config", "shell"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"config", "server", "api-key", "output", "timeout", "ca-file", "insecure"} {
		assert.True(t, flags[want], "missing flag %s", want)
	}
}

func TestKV_SetGetDelete(t *testing.T) {
	srv := newTestServer(t, "")

	out, err := run(t, "", "-s", srv.URL, "set", "greeting", "hello world/!")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = run(t, "", "-s", srv.URL, "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello world/!\n", out)

	out, err = run(t, "", "-s", srv.URL, "-o", "json", "get", "greeting")
	require.NoError(t, err)
	var kv connection.KV
	require.NoError(t, json.Unmarshal([]byte(out), &kv))
	assert.Equal(t, connection.KV{Key: "greeting", Value: "hello world/!"}, kv)

	out, err = run(t, "", "-s", srv.URL, "del", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	_, err = run(t, "", "-s", srv.URL, "get", "greeting")
	require.Error(t, err)
	assert.True(t, connection.IsNotFound(err))
	assert.Contains(t, err.Error(), domain.ErrKeyNotFound.Code)
}

func TestKV_ArgumentErrors(t *testing.T) {
	srv := newTestServer(t, "")

	_, err := run(t, "", "-s", srv.URL, "get")
	assert.ErrorContains(t, err, "expected 1 argument(s)")

	_, err = run(t, "", "-s", srv.URL, "set", "only-key")
	assert.ErrorContains(t, err, "expected 2 argument(s)")
}

func TestKV_YAMLOutput(t *testing.T) {
	srv := newTestServer(t, "")

	out, err := run(t, "", "-s", srv.URL, "-o", "yaml", "set", "k", "v")
	require.NoError(t, err)
	assert.Equal(t, "key: k\nvalue: v\n", out)
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := run(t, "", "-o", "xml", "health")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	_, err := run(t, "", "-s", srv.URL, "get", "k")
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.ErrUnauthorized.Code, apiErr.Code)

	_, err = run(t, "", "-s", srv.URL, "-k", "s3cret", "set", "k", "v")
	require.NoError(t, err)

	out, err := run(t, "", "-s", srv.URL, "health")
	require.NoError(t, err)
	assert.Equal(t, "healthy\n", out)
}

func TestAdmin_StatusSnapshotReady(t *testing.T) {
	srv := newTestServer(t, "")

	_, err := run(t, "", "-s", srv.URL, "set", "a", "1")
	require.NoError(t, err)

	out, err := run(t, "", "-s", srv.URL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries:")
	assert.Contains(t, out, "1 / ")
	assert.Contains(t, out, "Replication:  disabled")
	assert.Contains(t, out, "SHARD")

	out, err = run(t, "", "-s", srv.URL, "-o", "json", "status")
	require.NoError(t, err)
	var st connection.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Ready)
	assert.Equal(t, 1, st.Entries)
	assert.Len(t, st.Shards, storage.DefaultShardCount)

	out, err = run(t, "", "-s", srv.URL, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot written:")
	assert.Contains(t, out, "(1 entries,")

	out, err = run(t, "", "-s", srv.URL, "ready")
	require.NoError(t, err)
	assert.Equal(t, "ready\n", out)
}

func TestHashKey(t *testing.T) {
	out, err := run(t, "", "hash-key", "my-key")
	require.NoError(t, err)
	hash := strings.TrimPrefix(strings.TrimSpace(out), "api_key_hash: ")
	ok, err := domain.VerifyAPIKey("my-key", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = run(t, "piped-key\n", "hash-key")
	require.NoError(t, err)
	hash = strings.TrimPrefix(strings.TrimSpace(out), "api_key_hash: ")
	ok, err = domain.VerifyAPIKey("piped-key", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = run(t, "", "-o", "json", "hash-key", "--generate")
	require.NoError(t, err)
	var res hashKeyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.APIKey)
	ok, err = domain.VerifyAPIKey(res.APIKey, res.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = run(t, "", "hash-key", "--generate", "extra")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = run(t, "", "hash-key")
	assert.ErrorContains(t, err, "no key given")
}

func TestConfig_ShowAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://10.1.1.1:8080\napi_key: topsecret\n"), 0o600))

	out, err := run(t, "", "--config", path, "-o", "json", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"server": "http://10.1.1.1:8080"`)
	assert.Contains(t, out, logger.RedactedValue)
	assert.NotContains(t, out, "topsecret")

	dest := filepath.Join(t.TempDir(), "saved.yaml")
	_, err = run(t, "", "--config", path, "-o", "json", "config", "save", "--path", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "output: json")
	assert.Contains(t, string(data), "api_key: topsecret")
}

func TestConfig_Check(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("storage:\n  data_dir: "+filepath.Join(dir, "data")+"\n"), 0o600))

	out, err := run(t, "", "config", "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("storage:\n  data_dir: "+filepath.Join(dir, "data")+"\n  shard_count: 0\nlog:\n  level: loud\n"), 0o600))

	_, err = run(t, "", "config", "check", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.shard_count")
	assert.Contains(t, err.Error(), "log.level")
}

func TestShell(t *testing.T) {
	srv := newTestServer(t, "")
	history := filepath.Join(t.TempDir(), "history")

	script := strings.Join([]string{
		`set msg "two words"`,
		"get msg",
		"gett msg",
		"get missing",
		"shell",
		"exit",
	}, "\n") + "\n"

	out, err := run(t, script, "-s", srv.URL, "shell", "--history", history)
	require.NoError(t, err)
	assert.Contains(t, out, "OK\n")
	assert.Contains(t, out, "two words\n")
	assert.Contains(t, out, `unknown command "gett"`)
	assert.Contains(t, out, "Error: ["+domain.ErrKeyNotFound.Code+"]")
	assert.Contains(t, out, "already in a shell")

	data, err := os.ReadFile(history)
	require.NoError(t, err)
	assert.Contains(t, string(data), "get msg\n")
}
