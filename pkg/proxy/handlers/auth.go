package handlers

import (
	"log/slog"
	"net/http"

	"codebuddy-hq/relay/pkg/authflow"
	"codebuddy-hq/relay/pkg/proxy"
	"codebuddy-hq/relay/pkg/proxy/types"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
)

// AuthHandler serves the login session endpoints. Starting a session returns
// the browser URL immediately; progress is observed by polling the status
// endpoint with the session id.
type AuthHandler struct {
	controller *authflow.Controller
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewAuthHandler creates a login session handler.
func NewAuthHandler(controller *authflow.Controller, collector *metrics.Collector) *AuthHandler {
	return &AuthHandler{
		controller: controller,
		metrics:    collector,
		logger:     slog.Default().With("component", "auth-handler"),
	}
}

// Start serves POST /v1/auth/sessions.
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.controller.StartSession(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to start login session", "error", err)
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	h.metrics.SetActiveLoginSessions(h.controller.SessionCount())

	_ = proxy.WriteJSONResponse(w, http.StatusCreated, session)
}

// Status serves GET /v1/auth/sessions/{id}.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	session, ok := h.controller.GetSession(id)
	if !ok {
		_ = proxy.WriteErrorResponse(w, types.NewNotFoundError("No login session with that id."))
		return
	}

	h.metrics.SetActiveLoginSessions(h.controller.SessionCount())

	_ = proxy.WriteJSONResponse(w, http.StatusOK, session)
}
