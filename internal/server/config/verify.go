package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/storage/shard"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration and returns every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifyReplication(&cfg.Replication),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if cfg.HTTP.Addr == "" {
		errs = append(errs, errors.New("server.http.addr is required"))
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http.tls_cert_file and tls_key_file must be set together"))
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	for _, entry := range cfg.HTTP.AdminAllowList {
		if !validNetwork(entry) {
			errs = append(errs, fmt.Errorf("server.http.admin_allow_list entry %q is not an IP or CIDR", entry))
		}
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		errs = append(errs, errors.New("server.redis.addr is required when redis is enabled"))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	if cfg.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	} else if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		errs = append(errs, fmt.Errorf("cannot create data directory: %w", err))
	}

	switch cfg.Backend {
	case storage.BackendFile, storage.BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of file, badger", cfg.Backend))
	}
	switch cfg.Router {
	case shard.RouterPoly31, shard.RouterMurmur3:
	default:
		errs = append(errs, fmt.Errorf("storage.router %q is not one of poly31, murmur3", cfg.Router))
	}

	if cfg.Backend == storage.BackendFile && cfg.SnapshotFile == "" {
		errs = append(errs, errors.New("storage.snapshot_file is required"))
	}
	if cfg.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("storage.snapshot_interval must be positive"))
	}
	if cfg.ShardCount < 1 {
		errs = append(errs, errors.New("storage.shard_count must be at least 1"))
	}
	if cfg.ShardCapacity < 1 {
		errs = append(errs, errors.New("storage.shard_capacity must be at least 1"))
	}
	if cfg.MaxKeyLength < 1 {
		errs = append(errs, errors.New("storage.max_key_length must be at least 1"))
	}
	if cfg.MaxValueLength < 1 {
		errs = append(errs, errors.New("storage.max_value_length must be at least 1"))
	}
	return errors.Join(errs...)
}

func verifyReplication(cfg *ReplicationSection) error {
	var errs []error
	if cfg.Follower != "" {
		u, err := url.Parse(cfg.Follower)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("replication.follower %q is not an absolute http(s) URL", cfg.Follower))
		}
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, errors.New("replication.queue_size must be at least 1"))
	}
	if cfg.Workers < 1 {
		errs = append(errs, errors.New("replication.workers must be at least 1"))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, errors.New("replication.timeout must be positive"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("replication.rate_limit must not be negative"))
	}
	if cfg.CAFile != "" {
		if _, err := os.Stat(cfg.CAFile); err != nil {
			errs = append(errs, fmt.Errorf("replication.ca_file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level))
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", cfg.Format))
	}
	return errors.Join(errs...)
}

func validNetwork(entry string) bool {
	if net.ParseIP(entry) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(entry)
	return err == nil
}
