package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"hostfold/internal/service"
)

// ListDevices returns all device identities
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
	if err != nil {
		log.Printf("Failed to list devices: %v", err)
		h.writeError(w, "Failed to list devices", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, devices, http.StatusOK)
}

// GetDevice returns a single device identity by ID
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Device ID is required", "", http.StatusBadRequest)
		return
	}

	device, err := h.devices.Get(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get device %s: %v", id, err)
		h.writeError(w, "Failed to get device", err.Error(), http.StatusInternalServerError)
		return
	}
	if device == nil {
		h.writeError(w, "Device not found", "", http.StatusNotFound)
		return
	}

	h.writeJSON(w, device, http.StatusOK)
}

// CreateDeviceRequest represents the request body for creating a device identity
type CreateDeviceRequest struct {
	MAC string `json:"mac"`
}

// CreateDevice registers a device identity for a MAC address
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.MAC == "" {
		h.writeError(w, "MAC address is required", "", http.StatusBadRequest)
		return
	}

	device, err := h.devices.CreateFromMAC(r.Context(), req.MAC)
	if err != nil {
		if strings.Contains(err.Error(), "invalid MAC") || strings.Contains(err.Error(), "locally administered") {
			h.writeError(w, "Invalid MAC address", err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to create device for %s: %v", req.MAC, err)
		h.writeError(w, "Failed to create device", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, device, http.StatusCreated)
}

// LinkDeviceHostRequest represents the request body for linking a host
type LinkDeviceHostRequest struct {
	HostID string `json:"host_id"`
}

// LinkDeviceHost attaches a host record to a device identity
func (h *Handler) LinkDeviceHost(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if deviceID == "" {
		h.writeError(w, "Device ID is required", "", http.StatusBadRequest)
		return
	}

	var req LinkDeviceHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.HostID == "" {
		h.writeError(w, "host_id is required", "", http.StatusBadRequest)
		return
	}

	if err := h.devices.Link(r.Context(), deviceID, req.HostID); err != nil {
		if errors.Is(err, service.ErrAlreadyLinked) {
			h.writeError(w, "Host already linked", err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, service.ErrStateConflict) {
			h.writeError(w, "Host state has changed", err.Error(), http.StatusConflict)
			return
		}
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to link %s to device %s: %v", req.HostID, deviceID, err)
		h.writeError(w, "Failed to link host", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{"status": "ok", "device_id": deviceID, "host_id": req.HostID}, http.StatusOK)
}

// UnlinkDeviceHost detaches a host record from a device identity
func (h *Handler) UnlinkDeviceHost(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	hostID := r.PathValue("hostID")
	if deviceID == "" || hostID == "" {
		h.writeError(w, "Device ID and host ID are required", "", http.StatusBadRequest)
		return
	}

	if err := h.devices.Unlink(r.Context(), deviceID, hostID); err != nil {
		if strings.Contains(err.Error(), "not linked") {
			h.writeError(w, "Host is not linked to this device", err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("Failed to unlink %s from device %s: %v", hostID, deviceID, err)
		h.writeError(w, "Failed to unlink host", err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
