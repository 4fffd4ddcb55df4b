// Package buildinfo provides build information for kvmesh.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/kvmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// The Go version always comes from the running binary.
package buildinfo
