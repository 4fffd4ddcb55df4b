package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()
	capacity := 0
	for _, s := range stats {
		capacity += s.Capacity
	}

	resp := StatusResponse{
		Status:        "running",
		Ready:         h.store.Ready(),
		Entries:       h.store.Count(),
		Capacity:      capacity,
		Shards:        stats,
		Build:         buildinfo.Get(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.repl != nil {
		rs := h.repl.Stats()
		resp.Replication = &rs
	}

	h.writeJSON(w, r, http.StatusOK, "", resp)
}

// handleSnapshot handles POST /admin/v1/snapshots.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.TriggerSnapshot(r.Context())
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "snapshot triggered",
		"entries", info.Entries,
		"size", info.Size,
	)
	h.writeJSON(w, r, http.StatusOK, "snapshot written", info)
}
