// Package httpserver serves the kvmesh HTTP API.
//
// Routes are implemented in the handler subpackage. This package wraps
// them in the middleware chain and owns the listener:
//
//   - Recover turns handler panics into 500 responses
//   - RequestID tags every request with X-Request-ID
//   - AccessLog logs each request and counts it in Prometheus
//   - RateLimit limits requests per client IP
//   - Auth checks the API key on everything but /health and /ready
//   - NetworkACL restricts /admin/ to an allowlist
//
// With a certificate configured the server speaks HTTPS and reloads the
// key pair when the files change.
package httpserver
