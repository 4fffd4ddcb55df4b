package config

import "github.com/yndnr/kvmesh-go/internal/telemetry/logger"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Security.APIKey = logger.Redact(cfg.Security.APIKey)
	sanitized.Security.APIKeyHash = logger.Redact(cfg.Security.APIKeyHash)
	return &sanitized
}
