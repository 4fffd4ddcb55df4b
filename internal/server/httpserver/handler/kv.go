package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// handleGet handles GET /get/{key}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, "", KVResponse{Key: key, Value: value})
}

// handleSet handles POST /set/{key}/{value}.
func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, r.PathValue("key"), r.PathValue("value"))
}

// handlePut handles PUT /kv/{key} with a JSON body {"value": "..."}.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var req PutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest,
			domain.ErrBadRequest.Code, "invalid request body", err.Error())
		return
	}
	if req.Value == nil {
		h.writeError(w, r, http.StatusBadRequest,
			domain.ErrBadRequest.Code, "value is required", nil)
		return
	}

	h.set(w, r, r.PathValue("key"), *req.Value)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request, key, value string) {
	if err := h.store.Set(r.Context(), key, value); err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK,
		fmt.Sprintf("key '%s' set successfully", key),
		KVResponse{Key: key, Value: value})
}

// handleDelete handles DELETE /delete/{key}. Deleting a missing key succeeds.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := h.store.Delete(r.Context(), key); err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK,
		fmt.Sprintf("key '%s' deleted", key),
		KVResponse{Key: key})
}
