package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Server.Redis.Enabled {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Storage.ShardCount != 16 || cfg.Storage.ShardCapacity != 128 {
		t.Errorf("shards = %d x %d, want 16 x 128", cfg.Storage.ShardCount, cfg.Storage.ShardCapacity)
	}
	if cfg.Storage.MaxKeyLength != 50 || cfg.Storage.MaxValueLength != 100 {
		t.Errorf("limits = %d/%d, want 50/100", cfg.Storage.MaxKeyLength, cfg.Storage.MaxValueLength)
	}
	if cfg.Storage.SnapshotInterval != 10*time.Second {
		t.Errorf("SnapshotInterval = %v, want 10s", cfg.Storage.SnapshotInterval)
	}
	if cfg.Storage.SnapshotFile != "kv_store.txt" {
		t.Errorf("SnapshotFile = %q, want kv_store.txt", cfg.Storage.SnapshotFile)
	}
	if cfg.Replication.Follower != "" {
		t.Error("replication should be disabled by default")
	}
	if cfg.Security.AuthEnabled() {
		t.Error("auth should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Security.APIKey = "super-secret-key-1234567890"

	sanitized := Sanitize(cfg)

	if cfg.Security.APIKey != "super-secret-key-1234567890" {
		t.Error("Original config should not be modified")
	}
	if sanitized.Security.APIKey != logger.RedactedValue {
		t.Errorf("APIKey = %q, want %q", sanitized.Security.APIKey, logger.RedactedValue)
	}
	if sanitized.Security.APIKeyHash != "" {
		t.Errorf("empty APIKeyHash should stay empty, got %q", sanitized.Security.APIKeyHash)
	}
}

func TestVerify_Default(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"empty data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "storage.data_dir is required"},
		{"zero shards", func(c *ServerConfig) { c.Storage.ShardCount = 0 }, "storage.shard_count"},
		{"zero capacity", func(c *ServerConfig) { c.Storage.ShardCapacity = 0 }, "storage.shard_capacity"},
		{"zero key limit", func(c *ServerConfig) { c.Storage.MaxKeyLength = 0 }, "storage.max_key_length"},
		{"zero value limit", func(c *ServerConfig) { c.Storage.MaxValueLength = 0 }, "storage.max_value_length"},
		{"zero interval", func(c *ServerConfig) { c.Storage.SnapshotInterval = 0 }, "storage.snapshot_interval"},
		{"bad backend", func(c *ServerConfig) { c.Storage.Backend = "bolt" }, "storage.backend"},
		{"bad router", func(c *ServerConfig) { c.Storage.Router = "crc" }, "storage.router"},
		{"relative follower", func(c *ServerConfig) { c.Replication.Follower = "localhost:8081" }, "replication.follower"},
		{"ftp follower", func(c *ServerConfig) { c.Replication.Follower = "ftp://host/" }, "replication.follower"},
		{"zero queue", func(c *ServerConfig) { c.Replication.QueueSize = 0 }, "replication.queue_size"},
		{"zero workers", func(c *ServerConfig) { c.Replication.Workers = 0 }, "replication.workers"},
		{"cert without key", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "cert.pem" }, "tls_key_file"},
		{"negative rate", func(c *ServerConfig) { c.Server.HTTP.RateLimit = -1 }, "server.http.rate_limit"},
		{"bad allowlist entry", func(c *ServerConfig) { c.Server.HTTP.AdminAllowList = []string{"10.0.0.0/8", "nope"} }, "admin_allow_list"},
		{"missing ca file", func(c *ServerConfig) { c.Replication.CAFile = "/nonexistent/ca.pem" }, "replication.ca_file"},
		{"bad level", func(c *ServerConfig) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.DataDir = t.TempDir()
			tt.mutate(cfg)

			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.ShardCount = 0
	cfg.Replication.Workers = 0

	err := Verify(cfg)
	if err == nil {
		t.Fatal("Verify() should fail")
	}
	for _, want := range []string{"shard_count", "workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Verify() = %q, missing %q", err, want)
		}
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvmesh.yaml")
	content := `
server:
  http:
    addr: "0.0.0.0:9090"
storage:
  data_dir: "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
  shard_count: 4
  backend: badger
replication:
  follower: "http://127.0.0.1:8081"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("KVMESH_STORAGE_SHARD_CAPACITY", "64")
	t.Setenv("KVMESH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:9090" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Storage.ShardCount != 4 {
		t.Errorf("ShardCount = %d, want 4", cfg.Storage.ShardCount)
	}
	if cfg.Storage.ShardCapacity != 64 {
		t.Errorf("ShardCapacity = %d, want 64 (from env)", cfg.Storage.ShardCapacity)
	}
	if cfg.Storage.Backend != storage.BackendBadger {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.MaxKeyLength != 50 {
		t.Errorf("MaxKeyLength = %d, default should survive", cfg.Storage.MaxKeyLength)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("KVMESH_STORAGE_DATA_DIR", t.TempDir())
	t.Setenv("KVMESH_STORAGE_ROUTER", "fnv")

	if _, err := Load(""); err == nil {
		t.Error("Load() should reject an unknown router")
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/srv/kvmesh"
	cfg.Storage.ShardCount = 4
	cfg.Storage.MaxKeyLength = 10
	log := slog.Default()

	ec := cfg.EngineConfig(log)

	if ec.DataDir != "/srv/kvmesh" || ec.ShardCount != 4 {
		t.Errorf("EngineConfig() = %+v", ec)
	}
	if ec.Limits.MaxKeyLength != 10 || ec.Limits.MaxValueLength != 100 {
		t.Errorf("Limits = %+v", ec.Limits)
	}
	if ec.Logger != log {
		t.Error("Logger not propagated")
	}
}

func TestReplicationConfig(t *testing.T) {
	cfg := Default()
	cfg.Replication.Follower = "http://follower:8080"
	cfg.Replication.Workers = 3
	cfg.Security.APIKey = "k"

	rc, err := cfg.ReplicationConfig(nil)
	if err != nil {
		t.Fatalf("ReplicationConfig() error = %v", err)
	}

	if rc.Follower != "http://follower:8080" || rc.Workers != 3 || rc.APIKey != "k" {
		t.Errorf("ReplicationConfig() = %+v", rc)
	}
	if rc.Client != nil {
		t.Error("Client set without ca_file")
	}
}

func TestReplicationConfig_MissingCAFile(t *testing.T) {
	cfg := Default()
	cfg.Replication.Follower = "https://follower:8443"
	cfg.Replication.CAFile = filepath.Join(t.TempDir(), "missing.pem")

	if _, err := cfg.ReplicationConfig(nil); err == nil {
		t.Error("ReplicationConfig() expected error for missing ca_file")
	}
}

func TestAuditPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"

	tests := []struct {
		file string
		want string
	}{
		{"audit.log", filepath.Join("/data", "audit.log")},
		{"/var/log/kvmesh/audit.log", "/var/log/kvmesh/audit.log"},
		{"-", ""},
		{"", ""},
	}
	for _, tt := range tests {
		cfg.Storage.AuditFile = tt.file
		if got := cfg.AuditPath(); got != tt.want {
			t.Errorf("AuditPath(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
