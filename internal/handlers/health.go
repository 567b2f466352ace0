package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/koios/octodash/internal/settings"
	"go.uber.org/zap"
)

// Version is reported by /health
const Version = "1.0.0"

// StoreChecker is implemented by settings backends with a remote dependency
type StoreChecker interface {
	IsHealthy(ctx context.Context) bool
}

// HealthHandler answers liveness probes
type HealthHandler struct {
	settings *settings.Manager
	store    StoreChecker
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler. store may be nil.
func NewHealthHandler(manager *settings.Manager, store StoreChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		settings: manager,
		store:    store,
		logger:   logger,
	}
}

// RegisterRoutes registers GET /health
func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Version    string `json:"version"`
	Configured bool   `json:"configured"`
	Store      string `json:"store,omitempty"`
}

// handleHealth handles GET /health. It never calls OctoPrint; a remote
// settings store that stops answering turns the probe into a 503.
func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := h.settings.Client()

	resp := HealthResponse{
		Status:     "healthy",
		Service:    "octodash",
		Version:    Version,
		Configured: err == nil,
	}
	status := http.StatusOK

	if h.store != nil {
		resp.Store = "ok"
		if !h.store.IsHealthy(r.Context()) {
			resp.Status = "degraded"
			resp.Store = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if err := writeJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
