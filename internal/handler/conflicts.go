package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"hostfold/internal/domain"
	"hostfold/internal/service"
)

// ListConflicts returns conflicts; ?status=pending|resolved filters,
// default is pending
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	status := domain.ConflictStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.ConflictStatusPending:
		status = domain.ConflictStatusPending
	case domain.ConflictStatusResolved:
	case "all":
		status = ""
	default:
		h.writeError(w, "Invalid status filter", "Must be: pending, resolved, or all", http.StatusBadRequest)
		return
	}

	conflicts, err := h.conflicts.List(r.Context(), status)
	if err != nil {
		log.Printf("Failed to list conflicts: %v", err)
		h.writeError(w, "Failed to list conflicts", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, conflicts, http.StatusOK)
}

// GetConflict returns a single conflict by ID
func (h *Handler) GetConflict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Conflict ID is required", "", http.StatusBadRequest)
		return
	}

	conflict, err := h.conflicts.Get(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get conflict %s: %v", id, err)
		h.writeError(w, "Failed to get conflict", err.Error(), http.StatusInternalServerError)
		return
	}
	if conflict == nil {
		h.writeError(w, "Conflict not found", "", http.StatusNotFound)
		return
	}

	h.writeJSON(w, conflict, http.StatusOK)
}

// ResolveConflictRequest represents the request body for resolving a conflict
type ResolveConflictRequest struct {
	Resolution string `json:"resolution"` // "accept_a", "accept_b", "value"
	Value      string `json:"value,omitempty"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// ResolveConflict applies an operator decision and executes the deferred merge
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Conflict ID is required", "", http.StatusBadRequest)
		return
	}

	var req ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Resolution {
	case domain.ResolutionAcceptA, domain.ResolutionAcceptB, domain.ResolutionValue:
		// Valid
	default:
		h.writeError(w, "Invalid resolution type", "Must be: accept_a, accept_b, or value", http.StatusBadRequest)
		return
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = "operator"
	}

	merged, err := h.conflicts.Resolve(r.Context(), id, req.Resolution, req.Value, resolvedBy)
	if err != nil {
		if errors.Is(err, service.ErrStateConflict) {
			h.writeError(w, "Conflict state has changed", err.Error(), http.StatusConflict)
			return
		}
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Conflict not found", err.Error(), http.StatusNotFound)
			return
		}
		if strings.Contains(err.Error(), "requires a value") {
			h.writeError(w, "Resolution requires a value", err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to resolve conflict %s: %v", id, err)
		h.writeError(w, "Failed to resolve conflict", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"conflict_id": id,
		"resolution":  req.Resolution,
		"merged_host": merged,
	}, http.StatusOK)
}
