package api

import (
	"net/http"
	"time"
)

var startTime = time.Now()

const version = "1.0.0"

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).String(),
		"version":   version,
	}

	destination := r.URL.Query().Get("destination")
	if destination == "" && h.config != nil {
		destination = h.config.GetArchive().DefaultDestination
	}
	if destination != "" {
		health["resources"] = h.transfers.ResourceStatus(destination)
	}

	h.writeSuccess(w, http.StatusOK, health, "Service is healthy")
}

// StopDaemon shuts the rclone server down, which cancels a running download
func (h *Handlers) StopDaemon(w http.ResponseWriter, r *http.Request) {
	if err := h.transfers.StopDaemon(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to stop rclone daemon", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, nil, "rclone daemon stopped")
}
