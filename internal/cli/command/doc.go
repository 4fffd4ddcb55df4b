// Package command defines the kvmesh-cli commands with urfave/cli/v2.
//
// Global flags are resolved once, in App's Before hook, into an Env that
// every action reads. The shell command reuses that Env for each line it
// runs.
package command
