// Package logger configures log/slog for kvmesh.
//
// Loggers built by New redact attributes whose names look secret, add the
// request ID carried by the context to every record logged with a
// *Context method, and share one level that SetLevel changes at runtime.
package logger
