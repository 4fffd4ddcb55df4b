// Package connection provides the HTTP client kvmesh-cli uses to talk to
// a kvmesh server.
//
// Every response is decoded from the server's JSON envelope. Non-2xx
// responses become *APIError, which carries the KM-* error code.
package connection
