// Package handler provides the HTTP endpoints of kvmesh-server.
//
//   - kv.go: GET /get/{key}, POST /set/{key}/{value}, PUT /kv/{key},
//     DELETE /delete/{key}
//   - admin.go: GET /admin/v1/status, POST /admin/v1/snapshots
//   - health.go: GET /health, GET /ready
//
// Every JSON response uses the Response envelope. Store errors are
// mapped to status codes with domain.HTTPStatus.
package handler
