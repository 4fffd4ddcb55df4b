package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/replication"
	"github.com/yndnr/kvmesh-go/internal/storage/shard"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// maxBodyBytes bounds PUT /kv request bodies.
const maxBodyBytes = 64 << 10

// Store is the subset of the storage engine used by the handlers.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Count() int
	Stats() []shard.Stats
	Ready() bool
	TriggerSnapshot(ctx context.Context) (*snapshot.Info, error)
}

// ReplicationStats reports the replicator state for /admin/v1/status.
type ReplicationStats interface {
	Stats() replication.Stats
}

// Options holds the optional collaborators of a Handler.
type Options struct {
	Replication ReplicationStats
	Logger      *slog.Logger
}

// Handler serves the kvmesh HTTP API.
type Handler struct {
	store   Store
	repl    ReplicationStats
	logger  *slog.Logger
	mux     *http.ServeMux
	started time.Time
}

// New creates a new Handler for store.
func New(store Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{
		store:   store,
		repl:    opts.Replication,
		logger:  opts.Logger,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /get/{key}", h.handleGet)
	h.mux.HandleFunc("POST /set/{key}/{value}", h.handleSet)
	h.mux.HandleFunc("PUT /kv/{key}", h.handlePut)
	h.mux.HandleFunc("DELETE /delete/{key}", h.handleDelete)

	h.mux.HandleFunc("GET /admin/v1/status", h.handleStatus)
	h.mux.HandleFunc("POST /admin/v1/snapshots", h.handleSnapshot)
}

// writeJSON writes a success response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, message, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleStoreError converts store errors to HTTP responses.
func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := domain.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "store error", "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError,
		domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// getRequestID returns the request ID set by the RequestID middleware,
// falling back to the inbound header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
