package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"hostfold/internal/adapter"
	"hostfold/internal/domain"
	"hostfold/internal/service"
)

// RunCorrelation triggers one correlation run. Returns 409 while another
// run is active; runs are rejected, never queued.
func (h *Handler) RunCorrelation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.correlate.Run(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrRunActive) {
			h.writeError(w, "A correlation run is already active", "", http.StatusConflict)
			return
		}
		log.Printf("Correlation run failed: %v", err)
		h.writeError(w, "Correlation run failed", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, summary, http.StatusOK)
}

// ListRuns returns recent run summaries, newest first; ?limit= caps the count
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, "Invalid limit", "", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.correlate.ListRuns(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		h.writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, runs, http.StatusOK)
}

// ImportRecords ingests a batch of normalized scan records
func (h *Handler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	var records []domain.NormalizedRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		h.writeError(w, "At least one record is required", "", http.StatusBadRequest)
		return
	}

	result, err := h.importer.ImportRecords(r.Context(), records)
	if err != nil {
		log.Printf("Failed to import records: %v", err)
		h.writeError(w, "Failed to import records", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// ImportNmapRequest triggers a one-off nmap scan whose results are
// imported as records
type ImportNmapRequest struct {
	Targets          []string `json:"targets"`
	PortRange        string   `json:"port_range,omitempty"`
	ServiceDetection bool     `json:"service_detection,omitempty"`
	OSDetection      bool     `json:"os_detection,omitempty"`
}

// ImportNmap scans the requested targets and imports the results. The
// scan runs synchronously; large target lists should use the drop
// directory instead.
func (h *Handler) ImportNmap(w http.ResponseWriter, r *http.Request) {
	var req ImportNmapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Targets) == 0 {
		h.writeError(w, "At least one target is required", "", http.StatusBadRequest)
		return
	}

	opts := []adapter.NmapOption{
		adapter.WithServiceDetection(req.ServiceDetection),
		adapter.WithOSDetection(req.OSDetection),
	}
	if req.PortRange != "" {
		opts = append(opts, adapter.WithPortRange(req.PortRange))
	}

	records, err := adapter.NewNmapScanner(req.Targets, opts...).Scan(r.Context())
	if err != nil {
		log.Printf("Nmap scan failed: %v", err)
		h.writeError(w, "Scan failed", err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := h.importer.ImportRecords(r.Context(), records)
	if err != nil {
		log.Printf("Failed to import scan results: %v", err)
		h.writeError(w, "Failed to import scan results", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}
