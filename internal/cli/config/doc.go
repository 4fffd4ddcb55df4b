// Package config holds kvmesh-cli settings.
//
// Settings come from ~/.kvmesh/cli.yaml and KVMESH_CLI_* environment
// variables; command-line flags override both.
package config
