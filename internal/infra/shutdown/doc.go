// Package shutdown provides graceful shutdown for kvmesh.
//
// Components register named hooks as they start; Wait blocks for SIGINT,
// SIGTERM or context cancellation and runs the hooks newest first, so
// listeners stop before the store they serve is flushed.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("store", store.Close)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
