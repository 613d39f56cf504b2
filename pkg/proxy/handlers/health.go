package handlers

import (
	"net/http"

	"codebuddy-hq/relay/pkg/proxy"
)

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler serves GET /health. It reports process liveness only and
// never probes the backend; a down backend surfaces on chat requests, not
// on the health check.
type HealthHandler struct{}

// NewHealthHandler creates a health check handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, &HealthResponse{Status: "healthy"})
}
