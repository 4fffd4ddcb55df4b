package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/kvmesh-go/internal/replication"
	"github.com/yndnr/kvmesh-go/internal/storage"
)

// EngineConfig returns the storage engine configuration. Collaborators
// (replicator, audit log, metrics) are left for the caller to set.
func (c *ServerConfig) EngineConfig(logger *slog.Logger) storage.Config {
	s := c.Storage
	cfg := storage.DefaultConfig(s.DataDir)
	cfg.Backend = s.Backend
	cfg.SnapshotFile = s.SnapshotFile
	cfg.SnapshotInterval = s.SnapshotInterval
	cfg.ShardCount = s.ShardCount
	cfg.ShardCapacity = s.ShardCapacity
	cfg.Router = s.Router
	cfg.Limits = domain.Limits{
		MaxKeyLength:   s.MaxKeyLength,
		MaxValueLength: s.MaxValueLength,
	}
	cfg.Logger = logger
	return cfg
}

// ReplicationConfig returns the replicator configuration. The follower is
// called with the server's own API key.
func (c *ServerConfig) ReplicationConfig(logger *slog.Logger) (replication.Config, error) {
	r := c.Replication
	cfg := replication.DefaultConfig(r.Follower)
	cfg.QueueSize = r.QueueSize
	cfg.Workers = r.Workers
	cfg.Timeout = r.Timeout
	cfg.RateLimit = r.RateLimit
	cfg.APIKey = c.Security.APIKey
	cfg.Logger = logger

	if r.CAFile != "" {
		tlsCfg, err := tlsroots.ClientConfig(tlsroots.ClientOptions{CAFile: r.CAFile})
		if err != nil {
			return cfg, fmt.Errorf("replication.ca_file: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsCfg
		cfg.Client = &http.Client{Transport: transport}
	}
	return cfg, nil
}

// AuditPath returns the audit log path, or "" when auditing is disabled.
func (c *ServerConfig) AuditPath() string {
	p := c.Storage.AuditFile
	if p == "" || p == "-" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Storage.DataDir, p)
}
