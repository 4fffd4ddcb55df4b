// Package config provides server configuration for kvmesh.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - load.go: Defaults, then YAML file, then KVMESH_ environment
//   - verify.go: Validation of ranges, enums and paths
//   - sanitize.go: Masking of secrets for logging
//   - convert.go: Storage engine and replicator configuration
package config
