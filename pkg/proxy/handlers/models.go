package handlers

import (
	"net/http"
	"time"

	"codebuddy-hq/relay/pkg/proxy"
	"codebuddy-hq/relay/pkg/proxy/types"
)

// ModelsHandler serves GET /v1/models. The listing is static configuration;
// no backend call is made to produce it.
type ModelsHandler struct {
	models []string
}

// NewModelsHandler creates a model listing handler.
func NewModelsHandler(models []string) *ModelsHandler {
	return &ModelsHandler{models: models}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()

	data := make([]types.ModelInfo, 0, len(h.models))
	for _, id := range h.models {
		data = append(data, types.ModelInfo{
			ID:      id,
			Object:  "model",
			Created: now,
			OwnedBy: "codebuddy",
		})
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, &types.ModelList{
		Object: "list",
		Data:   data,
	})
}
