package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"hostfold/internal/service"
)

// ListHosts returns host records; ?include_inactive=true adds merged-away rows
func (h *Handler) ListHosts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	hosts, err := h.hosts.List(r.Context(), includeInactive)
	if err != nil {
		log.Printf("Failed to list hosts: %v", err)
		h.writeError(w, "Failed to list hosts", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, hosts, http.StatusOK)
}

// GetHost returns a single host by ID
func (h *Handler) GetHost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Host ID is required", "", http.StatusBadRequest)
		return
	}

	host, err := h.hosts.Get(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get host %s: %v", id, err)
		h.writeError(w, "Failed to get host", err.Error(), http.StatusInternalServerError)
		return
	}
	if host == nil {
		h.writeError(w, "Host not found", "", http.StatusNotFound)
		return
	}

	h.writeJSON(w, host, http.StatusOK)
}

// GetUnifiedHost returns the unified device view for a host
func (h *Handler) GetUnifiedHost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Host ID is required", "", http.StatusBadRequest)
		return
	}

	view, err := h.hosts.Unified(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Host not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to build unified view for %s: %v", id, err)
		h.writeError(w, "Failed to build unified view", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, view, http.StatusOK)
}

// MergeHostsRequest represents the request body for a manual merge
type MergeHostsRequest struct {
	PrimaryID   string `json:"primary_id"`
	SecondaryID string `json:"secondary_id"`
}

// MergeHosts folds the secondary host into the caller-chosen primary
func (h *Handler) MergeHosts(w http.ResponseWriter, r *http.Request) {
	var req MergeHostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.PrimaryID == "" || req.SecondaryID == "" {
		h.writeError(w, "primary_id and secondary_id are required", "", http.StatusBadRequest)
		return
	}
	if req.PrimaryID == req.SecondaryID {
		h.writeError(w, "Cannot merge a host with itself", "", http.StatusBadRequest)
		return
	}

	merged, err := h.hosts.Merge(r.Context(), req.PrimaryID, req.SecondaryID)
	if err != nil {
		if errors.Is(err, service.ErrStateConflict) {
			h.writeError(w, "Host state has changed", err.Error(), http.StatusConflict)
			return
		}
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Host not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to merge %s + %s: %v", req.PrimaryID, req.SecondaryID, err)
		h.writeError(w, "Failed to merge hosts", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, merged, http.StatusOK)
}
