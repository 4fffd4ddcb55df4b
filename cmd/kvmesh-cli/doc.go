// Package main provides the entry point for kvmesh-cli.
//
// Usage:
//
//	kvmesh-cli [global flags] get KEY
//	kvmesh-cli set KEY VALUE
//	kvmesh-cli -o json status
//	kvmesh-cli shell
package main
