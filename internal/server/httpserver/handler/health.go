package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, "", map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. It reports 503 until recovery finished.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.store.Ready() {
		h.handleStoreError(w, r, domain.ErrNotReady)
		return
	}
	h.writeJSON(w, r, http.StatusOK, "", map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
