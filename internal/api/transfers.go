package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"karsync/internal/models"

	"github.com/gorilla/mux"
)

// DownloadRequest is a transfer plus the answer to the deletion prompt
type DownloadRequest struct {
	models.TransferParams
	ConfirmDeletes bool `json:"confirm_deletes"`
}

func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	var params models.TransferParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	result, err := h.transfers.Preview(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, "Failed to run preview", err)
		return
	}

	message := ""
	if result.Stopped {
		message = result.Summary
	}
	h.writeSuccess(w, http.StatusOK, result, message)
}

func (h *Handlers) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	// The download outlives this request; it stops with the daemon, not the client
	record, err := h.transfers.StartDownload(r.Context(), req.TransferParams, req.ConfirmDeletes)
	if err != nil {
		h.writeServiceError(w, "Failed to start download", err)
		return
	}

	h.writeSuccess(w, http.StatusAccepted, record, "Download started")
}

func (h *Handlers) GetTransfers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.TransferQuery{}

	// Parse status filter
	if statusStr := query.Get("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, models.TransferStatus(s))
			}
		}
	}

	if kind := query.Get("kind"); kind != "" {
		filter.Kind = models.TransferKind(kind)
	}

	// Parse pagination
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		} else {
			filter.Limit = 50
		}
	} else {
		filter.Limit = 50
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if sortOrder := query.Get("sort_order"); sortOrder != "" {
		filter.SortOrder = sortOrder
	}

	transfers, err := h.transfers.GetTransfers(filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get transfers", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, transfers, "")
}

func (h *Handlers) GetTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID", err)
		return
	}

	transfer, err := h.transfers.GetTransfer(id)
	if err != nil {
		h.writeServiceError(w, "Failed to get transfer", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, transfer, "")
}

func (h *Handlers) GetTransferSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.transfers.GetTransferSummary()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get transfer summary", err)
		return
	}

	h.writeSuccess(w, http.StatusOK, summary, "")
}

// GetStats returns the live counters of the running transfer, if any
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.transfers.LiveStats()
	if stats == nil {
		h.writeSuccess(w, http.StatusOK, nil, "No transfer running")
		return
	}
	h.writeSuccess(w, http.StatusOK, stats, "")
}
