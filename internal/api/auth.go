package api

import (
	"net/http"
)

// StartAuth launches the browser flow and answers once the sign-in URL is known
func (h *Handlers) StartAuth(w http.ResponseWriter, r *http.Request) {
	status, err := h.auth.Start(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to start authorization", err)
		return
	}

	h.writeSuccess(w, http.StatusAccepted, status, "Authorization started")
}

func (h *Handlers) CancelAuth(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Cancel() {
		h.writeError(w, http.StatusConflict, "No authorization in progress", nil)
		return
	}

	h.writeSuccess(w, http.StatusOK, nil, "Authorization cancelled")
}

func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, h.auth.Status(), "")
}
