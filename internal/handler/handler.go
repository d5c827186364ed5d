package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"hostfold/internal/service"
)

// Handler wires the correlation services to the HTTP API
type Handler struct {
	hosts     *service.HostService
	devices   *service.DeviceService
	conflicts *service.ConflictService
	correlate *service.CorrelationService
	importer  *service.ImportService
}

// New creates a new API handler
func New(hosts *service.HostService, devices *service.DeviceService,
	conflicts *service.ConflictService, correlate *service.CorrelationService,
	importer *service.ImportService) *Handler {
	return &Handler{
		hosts:     hosts,
		devices:   devices,
		conflicts: conflicts,
		correlate: correlate,
		importer:  importer,
	}
}

// Register attaches all API routes to the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/correlate", h.RunCorrelation)
	mux.HandleFunc("GET /api/runs", h.ListRuns)

	mux.HandleFunc("GET /api/hosts", h.ListHosts)
	mux.HandleFunc("GET /api/hosts/{id}", h.GetHost)
	mux.HandleFunc("GET /api/hosts/{id}/unified", h.GetUnifiedHost)
	mux.HandleFunc("POST /api/hosts/merge", h.MergeHosts)

	mux.HandleFunc("GET /api/conflicts", h.ListConflicts)
	mux.HandleFunc("GET /api/conflicts/{id}", h.GetConflict)
	mux.HandleFunc("POST /api/conflicts/{id}/resolve", h.ResolveConflict)

	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/devices/{id}", h.GetDevice)
	mux.HandleFunc("POST /api/devices", h.CreateDevice)
	mux.HandleFunc("POST /api/devices/{id}/links", h.LinkDeviceHost)
	mux.HandleFunc("DELETE /api/devices/{id}/links/{hostID}", h.UnlinkDeviceHost)

	mux.HandleFunc("POST /api/import/records", h.ImportRecords)
	mux.HandleFunc("POST /api/import/nmap", h.ImportNmap)

	mux.HandleFunc("GET /api/health", h.Health)
}

// Health reports liveness and whether a run is in progress
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"run_active": h.correlate.Active(),
	}, http.StatusOK)
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, message, details string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
