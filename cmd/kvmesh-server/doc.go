// Package main provides the entry point for kvmesh-server.
//
// The server hosts the sharded key-value engine and exposes it over:
//
//   - HTTP/HTTPS, including /admin/v1 and /metrics
//   - an optional Redis protocol listener
//
// Usage:
//
//	kvmesh-server [flags]
//	kvmesh-server --config /etc/kvmesh/server.yaml
//
// Configuration comes from the file and KVMESH_ environment variables.
// Editing log.level in the file takes effect without a restart.
package main
