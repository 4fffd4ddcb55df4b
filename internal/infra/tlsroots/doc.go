// Package tlsroots loads TLS material for kvmesh.
//
// ClientConfig builds what the CLI and the replication client trust: the
// system roots plus an optional CA file. Watcher serves the HTTP server
// certificate and reloads it when the certificate or key file changes.
package tlsroots
