// Package repl implements the interactive shell of kvmesh-cli.
//
// Each line is split into words, honoring single and double quotes, and
// handed to an Executor. Lines are kept in a history file between
// sessions.
package repl
