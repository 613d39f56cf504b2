package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy"
	"codebuddy-hq/relay/pkg/proxy/middleware"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
	"codebuddy-hq/relay/pkg/usage"
)

// Backend is the slice of the backend client the chat handler needs.
type Backend interface {
	StreamCompletion(ctx context.Context, req *backend.ChatRequest, cred *credential.Record) (<-chan *backend.StreamChunk, error)
}

// CredentialPool is the slice of the rotation manager the chat handler needs.
type CredentialPool interface {
	Acquire() (*credential.Record, error)
	RecordServed()
	Invalidate(id string)
}

// ChatHandler serves POST /v1/chat/completions. Every backend call streams;
// when the client asked for a stream the chunks pass through as SSE, and
// otherwise they are folded into a single chat completion response.
//
// A backend auth rejection invalidates the offending credential and the
// handler retries exactly once with the next credential in rotation. The
// rejected attempt does not count toward rotation.
type ChatHandler struct {
	backend    Backend
	pool       CredentialPool
	usageStore *usage.Store
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewChatHandler creates a chat completion handler. usageStore may be nil
// when usage recording is disabled.
func NewChatHandler(b Backend, pool CredentialPool, usageStore *usage.Store, collector *metrics.Collector) *ChatHandler {
	return &ChatHandler{
		backend:    b,
		pool:       pool,
		usageStore: usageStore,
		metrics:    collector,
		logger:     slog.Default().With("component", "chat-handler"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	req, err := proxy.ParseChatRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected chat request",
			"request_id", requestID,
			"error", err)
		h.writeError(ctx, w, err)
		return
	}

	mode := "aggregate"
	if req.Stream {
		mode = "stream"
	}

	h.logger.InfoContext(ctx, "processing chat completion request",
		"request_id", requestID,
		"model", req.Model,
		"mode", mode,
		"messages", len(req.Messages))

	chunks, err := h.openStream(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open backend stream",
			"request_id", requestID,
			"model", req.Model,
			"error", err)
		h.metrics.RecordRequest(req.Model, mode, statusOf(err), time.Since(start))
		h.writeError(ctx, w, err)
		return
	}

	if req.Stream {
		h.streamResponse(ctx, w, req, chunks, start)
	} else {
		h.aggregateResponse(ctx, w, req, chunks, start)
	}
}

// openStream acquires a credential and opens the backend stream, retrying
// exactly once when the backend rejects the credential. The rejection
// invalidates the credential so the retry resolves to a different one.
func (h *ChatHandler) openStream(ctx context.Context, req *backend.ChatRequest) (<-chan *backend.StreamChunk, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		cred, err := h.pool.Acquire()
		if err != nil {
			return nil, err
		}

		chunks, err := h.backend.StreamCompletion(ctx, req, cred)
		if err == nil {
			return chunks, nil
		}

		var authErr *backend.AuthError
		if !errors.As(err, &authErr) {
			return nil, err
		}

		h.pool.Invalidate(authErr.CredentialID)
		h.metrics.RecordCredentialInvalidation()
		h.logger.WarnContext(ctx, "backend rejected credential",
			"credential_id", authErr.CredentialID,
			"attempt", attempt+1)
		lastErr = err
	}

	return nil, lastErr
}

// streamResponse relays backend chunks to the client as SSE. Errors arriving
// mid-stream become an SSE error event; every stream ends with exactly one
// [DONE] marker either way.
func (h *ChatHandler) streamResponse(ctx context.Context, w http.ResponseWriter, req *backend.ChatRequest, chunks <-chan *backend.StreamChunk, start time.Time) {
	requestID := middleware.GetRequestID(ctx)

	proxy.SetSSEHeaders(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	var tokenUsage *backend.TokenUsage
	status := "success"
	sent := 0

	for chunk := range chunks {
		if chunk.Err != nil {
			h.logger.ErrorContext(ctx, "backend stream failed",
				"request_id", requestID,
				"chunks_sent", sent,
				"error", chunk.Err)
			status = "error"
			if err := proxy.WriteSSEError(w, proxy.HandleError(chunk.Err)); err != nil {
				h.logger.ErrorContext(ctx, "failed to write SSE error", "error", err)
			}
			break
		}

		if err := proxy.WriteSSEChunk(w, chunk); err != nil {
			h.logger.WarnContext(ctx, "failed to write SSE chunk",
				"request_id", requestID,
				"chunks_sent", sent,
				"error", err)
			status = "error"
			break
		}

		h.metrics.RecordStreamChunk()
		sent++
		if chunk.Usage != nil {
			tokenUsage = chunk.Usage
		}

		select {
		case <-ctx.Done():
			h.logger.WarnContext(ctx, "client disconnected during stream",
				"request_id", requestID,
				"chunks_sent", sent)
			status = "error"
		default:
		}
		if status != "success" {
			break
		}
	}

	if err := proxy.WriteSSEDone(w); err != nil {
		h.logger.WarnContext(ctx, "failed to write SSE done marker", "error", err)
	}

	h.pool.RecordServed()
	h.finish(ctx, req.Model, "stream", status, start, tokenUsage)

	h.logger.InfoContext(ctx, "chat completion stream finished",
		"request_id", requestID,
		"model", req.Model,
		"chunks_sent", sent,
		"status", status,
		"latency_ms", time.Since(start).Milliseconds())
}

// aggregateResponse folds the backend stream into one chat completion
// response. A stream that errors before finishing yields an error response,
// never a silently truncated completion.
func (h *ChatHandler) aggregateResponse(ctx context.Context, w http.ResponseWriter, req *backend.ChatRequest, chunks <-chan *backend.StreamChunk, start time.Time) {
	requestID := middleware.GetRequestID(ctx)

	completion, err := backend.Aggregate(chunks)

	// The backend call ran to an outcome either way, and the failure was
	// not an auth rejection, so it counts toward rotation.
	h.pool.RecordServed()

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to aggregate backend stream",
			"request_id", requestID,
			"model", req.Model,
			"error", err)
		h.metrics.RecordRequest(req.Model, "aggregate", "error", time.Since(start))
		h.writeError(ctx, w, err)
		return
	}

	resp := proxy.FormatCompletionResponse(completion, req.Model)
	if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response",
			"request_id", requestID,
			"error", err)
	}

	h.finish(ctx, req.Model, "aggregate", "success", start, completion.Usage)

	h.logger.InfoContext(ctx, "chat completion finished",
		"request_id", requestID,
		"model", req.Model,
		"finish_reason", completion.FinishReason,
		"latency_ms", time.Since(start).Milliseconds())
}

// finish records metrics and, on success, per-model usage.
func (h *ChatHandler) finish(ctx context.Context, model, mode, status string, start time.Time, tokenUsage *backend.TokenUsage) {
	h.metrics.RecordRequest(model, mode, status, time.Since(start))

	promptTokens, completionTokens := 0, 0
	if tokenUsage != nil {
		promptTokens = tokenUsage.PromptTokens
		completionTokens = tokenUsage.CompletionTokens
		h.metrics.RecordTokens(model, promptTokens, completionTokens)
	}

	if h.usageStore != nil && status == "success" {
		if err := h.usageStore.Record(ctx, model, promptTokens, completionTokens); err != nil {
			h.logger.WarnContext(ctx, "failed to record usage", "error", err)
		}
	}
}

func (h *ChatHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if werr := proxy.WriteErrorResponse(w, proxy.HandleError(err)); werr != nil {
		h.logger.ErrorContext(ctx, "failed to write error response", "error", werr)
	}
}

func statusOf(err error) string {
	var authErr *backend.AuthError
	if errors.As(err, &authErr) {
		return "auth_error"
	}
	return "error"
}
