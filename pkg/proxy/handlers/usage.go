package handlers

import (
	"log/slog"
	"net/http"

	"codebuddy-hq/relay/pkg/proxy"
	"codebuddy-hq/relay/pkg/proxy/types"
	"codebuddy-hq/relay/pkg/usage"
)

// UsageHandler serves GET /v1/usage: per-model request and token counters.
type UsageHandler struct {
	store  *usage.Store
	logger *slog.Logger
}

// NewUsageHandler creates a usage statistics handler. store may be nil when
// usage recording is disabled; the handler then reports an empty listing.
func NewUsageHandler(store *usage.Store) *UsageHandler {
	return &UsageHandler{
		store:  store,
		logger: slog.Default().With("component", "usage-handler"),
	}
}

// ServeHTTP implements http.Handler.
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := []usage.ModelStats{}

	if h.store != nil {
		var err error
		stats, err = h.store.Stats(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to read usage stats", "error", err)
			_ = proxy.WriteErrorResponse(w, types.NewServerError("Failed to read usage statistics."))
			return
		}
		if stats == nil {
			stats = []usage.ModelStats{}
		}
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, &types.UsageStats{
		Object: "list",
		Data:   stats,
	})
}
