package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"karsync/internal/config"
	"karsync/internal/interfaces"
	"karsync/internal/models"
	"karsync/internal/repository"

	"github.com/gorilla/mux"
)

type Handlers struct {
	transfers interfaces.TransferService
	auth      interfaces.AuthService
	config    *config.Config
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func NewHandlers(transfers interfaces.TransferService, auth interfaces.AuthService, cfg *config.Config) *Handlers {
	return &Handlers{
		transfers: transfers,
		auth:      auth,
		config:    cfg,
	}
}

func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// Remote endpoints
	api.HandleFunc("/remotes", h.GetRemotes).Methods("GET")
	api.HandleFunc("/files", h.GetFiles).Methods("GET")

	// Authorization endpoints
	api.HandleFunc("/auth/start", h.StartAuth).Methods("POST")
	api.HandleFunc("/auth/cancel", h.CancelAuth).Methods("POST")
	api.HandleFunc("/auth/status", h.GetAuthStatus).Methods("GET")

	// Transfer endpoints
	api.HandleFunc("/preview", h.Preview).Methods("POST")
	api.HandleFunc("/downloads", h.CreateDownload).Methods("POST")
	api.HandleFunc("/transfers", h.GetTransfers).Methods("GET")
	api.HandleFunc("/transfers/{id:[0-9]+}", h.GetTransfer).Methods("GET")
	api.HandleFunc("/transfers/summary", h.GetTransferSummary).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// System endpoints
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")
	api.HandleFunc("/daemon/stop", h.StopDaemon).Methods("POST")

	// CORS preflight for every route. A plain matcher keeps unknown paths
	// at 404 instead of turning them into method mismatches.
	api.PathPrefix("/").MatcherFunc(isPreflight).HandlerFunc(preflight)

	api.Use(loggingMiddleware)
	api.Use(originMiddleware(h.allowedOrigins))
	api.Use(requireJSONMiddleware)
	api.Use(jsonContentTypeMiddleware)
}

func (h *Handlers) allowedOrigins() []string {
	if h.config == nil {
		return nil
	}
	return h.config.GetServer().AllowedOrigins
}

func (h *Handlers) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}, message string) {
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	if err != nil {
		slog.Error("API error", "message", message, "error", err)
	} else {
		slog.Warn("API error", "message", message)
	}

	if jsonErr := json.NewEncoder(w).Encode(response); jsonErr != nil {
		slog.Error("failed to encode error response", "error", jsonErr)
	}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses
func (h *Handlers) writeServiceError(w http.ResponseWriter, fallback string, err error) {
	var (
		cfgErr    *models.ConfigurationError
		submitErr *models.SubmissionError
		statusErr *models.StatusCheckError
		jobErr    *models.JobFailedError
	)

	switch {
	case errors.As(err, &cfgErr):
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrTransferInProgress):
		h.writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, models.ErrInsufficientSpace):
		h.writeError(w, http.StatusInsufficientStorage, err.Error(), nil)
	case errors.Is(err, models.ErrServerUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.Is(err, repository.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &submitErr), errors.As(err, &statusErr), errors.As(err, &jobErr):
		h.writeError(w, http.StatusBadGateway, err.Error(), err)
	default:
		h.writeError(w, http.StatusInternalServerError, fallback, err)
	}
}
