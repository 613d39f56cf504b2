package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy"
	"codebuddy-hq/relay/pkg/proxy/types"
)

// CredentialsHandler serves the credential management endpoints: listing
// with masked tokens, creation from a raw credential payload, deletion by
// id, and rotation control (manual pin, resume, pause). Mutations rebuild
// the rotation pool through the manager.
type CredentialsHandler struct {
	store   *credential.Store
	manager *credential.Manager
	logger  *slog.Logger
}

// NewCredentialsHandler creates a credential management handler.
func NewCredentialsHandler(store *credential.Store, manager *credential.Manager) *CredentialsHandler {
	return &CredentialsHandler{
		store:   store,
		manager: manager,
		logger:  slog.Default().With("component", "credentials-handler"),
	}
}

// List serves GET /v1/credentials.
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	records := h.manager.Snapshot()
	data := make([]types.CredentialInfo, 0, len(records))
	for _, rec := range records {
		info := types.CredentialInfo{
			ID:           rec.ID,
			Object:       "credential",
			UserID:       rec.UserID,
			TokenPreview: maskToken(rec.BearerToken),
			CreatedAt:    rec.CreatedAt,
			Expired:      rec.Expired(now),
			Invalidated:  h.manager.Invalidated(rec.ID),
		}
		if rec.CreatedAt > 0 && rec.ExpiresIn > 0 {
			info.ExpiresAt = rec.CreatedAt + rec.ExpiresIn
		}
		data = append(data, info)
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, &types.CredentialList{
		Object: "list",
		Data:   data,
	})
}

// Create serves POST /v1/credentials. The body is a raw credential payload;
// unknown fields are preserved in the stored file.
func (h *CredentialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec credential.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rec); err != nil {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"Request body is not valid JSON.", "", types.CodeInvalidJSON))
		return
	}

	if rec.BearerToken == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"The bearer_token field is required.", "bearer_token", types.CodeMissingField))
		return
	}

	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	rec.ID = newCredentialID(rec.UserID, time.Now())

	if err := h.store.Save(&rec); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save credential", "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("Failed to save the credential."))
		return
	}

	if err := h.manager.Reload(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reload credential pool", "error", err)
	}

	h.logger.InfoContext(r.Context(), "credential created", "id", rec.ID)

	_ = proxy.WriteJSONResponse(w, http.StatusCreated, &types.CredentialInfo{
		ID:           rec.ID,
		Object:       "credential",
		UserID:       rec.UserID,
		TokenPreview: maskToken(rec.BearerToken),
		CreatedAt:    rec.CreatedAt,
	})
}

// Delete serves DELETE /v1/credentials/{id}. Deletion is idempotent.
func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"A credential id is required.", "id", types.CodeMissingField))
		return
	}

	if err := h.store.Delete(id); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to delete credential", "id", id, "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("Failed to delete the credential."))
		return
	}

	if err := h.manager.Reload(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reload credential pool", "error", err)
	}

	h.logger.InfoContext(r.Context(), "credential deleted", "id", id)

	_ = proxy.WriteJSONResponse(w, http.StatusOK, &types.CredentialDeleted{
		ID:      id,
		Object:  "credential.deleted",
		Deleted: true,
	})
}

// Current serves GET /v1/credentials/current.
func (h *CredentialsHandler) Current(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.rotationState())
}

// Select serves POST /v1/credentials/select. It pins the named credential
// until rotation is resumed via the auto endpoint.
func (h *CredentialsHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"Request body is not valid JSON.", "", types.CodeInvalidJSON))
		return
	}
	if req.ID == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"The id field is required.", "id", types.CodeMissingField))
		return
	}

	if err := h.manager.SelectManual(req.ID); err != nil {
		if errors.Is(err, credential.ErrUnknownCredential) {
			_ = proxy.WriteErrorResponse(w, types.NewNotFoundError(
				"No usable credential with that id."))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to select credential", "id", req.ID, "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("Failed to select the credential."))
		return
	}

	h.logger.InfoContext(r.Context(), "credential selected", "id", req.ID)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.rotationState())
}

// Auto serves POST /v1/credentials/auto. It clears a manual pin and resumes
// automatic selection.
func (h *CredentialsHandler) Auto(w http.ResponseWriter, r *http.Request) {
	h.manager.ClearManual()
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.rotationState())
}

// ToggleRotation serves POST /v1/credentials/toggle-rotation. While
// rotation is off the active slot stays frozen in place.
func (h *CredentialsHandler) ToggleRotation(w http.ResponseWriter, r *http.Request) {
	enabled := h.manager.ToggleRotation()
	h.logger.InfoContext(r.Context(), "rotation toggled", "enabled", enabled)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.rotationState())
}

// rotationState assembles the shared response of the rotation control
// endpoints.
func (h *CredentialsHandler) rotationState() *types.RotationState {
	state := &types.RotationState{
		Object:          "rotation_state",
		Mode:            "auto",
		RotationEnabled: h.manager.RotationEnabled(),
		Served:          h.manager.Served(),
		PoolSize:        h.manager.PoolSize(),
	}
	if h.manager.ManualID() != "" {
		state.Mode = "manual"
	}

	rec, err := h.manager.Acquire()
	if err != nil {
		return state
	}

	now := time.Now()
	info := types.CredentialInfo{
		ID:           rec.ID,
		Object:       "credential",
		UserID:       rec.UserID,
		TokenPreview: maskToken(rec.BearerToken),
		CreatedAt:    rec.CreatedAt,
		Expired:      rec.Expired(now),
	}
	if rec.CreatedAt > 0 && rec.ExpiresIn > 0 {
		info.ExpiresAt = rec.CreatedAt + rec.ExpiresIn
	}
	state.Credential = &info
	return state
}

// maskToken returns a short preview of a bearer token that is safe to show
// in listings. Short tokens are masked entirely.
func maskToken(token string) string {
	if len(token) <= 14 {
		return "***"
	}
	return token[:10] + "..." + token[len(token)-4:]
}

// newCredentialID builds a filesystem-safe id for a manually added
// credential, mirroring the naming of login-obtained ones.
func newCredentialID(userID string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, userID)
	if safe == "" {
		safe = "manual"
	}
	if len(safe) > 20 {
		safe = safe[:20]
	}
	return fmt.Sprintf("codebuddy_%s_%d", safe, now.Unix())
}
