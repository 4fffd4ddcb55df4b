package config

import (
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/replication"
	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/storage/shard"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDataDir   = "./data"
	DefaultAuditFile = "audit.log"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Redis: RedisConfig{
				Enabled: false,
				Addr:    DefaultRedisAddr,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			DataDir:          DefaultDataDir,
			Backend:          storage.BackendFile,
			SnapshotFile:     snapshot.DefaultFileName,
			AuditFile:        DefaultAuditFile,
			SnapshotInterval: storage.DefaultSnapshotInterval,
			ShardCount:       storage.DefaultShardCount,
			ShardCapacity:    storage.DefaultShardCapacity,
			MaxKeyLength:     domain.DefaultMaxKeyLength,
			MaxValueLength:   domain.DefaultMaxValueLength,
			Router:           shard.RouterPoly31,
		},
		Replication: ReplicationSection{
			QueueSize: replication.DefaultQueueSize,
			Workers:   replication.DefaultWorkers,
			Timeout:   replication.DefaultTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
