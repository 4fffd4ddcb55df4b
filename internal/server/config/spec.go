package config

import "time"

// ServerConfig is the root configuration for kvmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Storage     StorageSection     `koanf:"storage"`
	Replication ReplicationSection `koanf:"replication"`
	Security    SecuritySection    `koanf:"security"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Redis RedisConfig `koanf:"redis"`

	// ShutdownTimeout bounds the whole shutdown sequence.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is the per client IP request rate per second. 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`

	// MetricsAuth requires the API key on /metrics.
	MetricsAuth bool `koanf:"metrics_auth"`

	// AdminAllowList restricts /admin/ to these IPs or CIDRs. Empty
	// allows every client.
	AdminAllowList []string `koanf:"admin_allow_list"`

	// TrustProxy makes X-Forwarded-For and X-Real-IP the client address.
	TrustProxy bool `koanf:"trust_proxy"`
}

// RedisConfig configures the Redis protocol server.
type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// StorageSection configures the store engine.
type StorageSection struct {
	DataDir          string        `koanf:"data_dir"`
	Backend          string        `koanf:"backend"`
	SnapshotFile     string        `koanf:"snapshot_file"`
	AuditFile        string        `koanf:"audit_file"`
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`
	ShardCount       int           `koanf:"shard_count"`
	ShardCapacity    int           `koanf:"shard_capacity"`
	MaxKeyLength     int           `koanf:"max_key_length"`
	MaxValueLength   int           `koanf:"max_value_length"`
	Router           string        `koanf:"router"`
}

// ReplicationSection configures forwarding of writes to a follower.
type ReplicationSection struct {
	// Follower is the follower base URL. Empty disables replication.
	Follower  string        `koanf:"follower"`
	QueueSize int           `koanf:"queue_size"`
	Workers   int           `koanf:"workers"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`

	// CAFile adds a PEM CA bundle to the roots trusted for an https
	// follower.
	CAFile string `koanf:"ca_file"`
}

// SecuritySection configures API key authentication. With neither field
// set, authentication is disabled.
type SecuritySection struct {
	// APIKey is compared in constant time.
	APIKey string `koanf:"api_key"`

	// APIKeyHash is an argon2id PHC string, see kvmesh-cli hash-key.
	APIKeyHash string `koanf:"api_key_hash"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthEnabled reports whether an API key is configured.
func (s SecuritySection) AuthEnabled() bool {
	return s.APIKey != "" || s.APIKeyHash != ""
}
