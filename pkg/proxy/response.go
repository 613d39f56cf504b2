package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/proxy/types"
)

// FormatCompletionResponse converts an aggregated backend completion into
// the OpenAI chat completion shape. The requested model is echoed back;
// the backend does not reliably report the model it resolved to.
func FormatCompletionResponse(completion *backend.Completion, requestedModel string) *types.ChatCompletionResponse {
	id := completion.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &types.ChatCompletionResponse{
		ID:      fmt.Sprintf("chatcmpl-%s", id),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.Choice{
			{
				Index: 0,
				Message: types.ResponseMessage{
					Role:      backend.RoleAssistant,
					Content:   completion.Content,
					ToolCalls: completion.ToolCalls,
				},
				FinishReason: completion.FinishReason,
			},
		},
		Usage:             completion.Usage,
		SystemFingerprint: completion.SystemFingerprint,
	}
}

// WriteJSONResponse writes a JSON response with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an OpenAI-compatible error response, deriving
// the HTTP status code from the error type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// SetSSEHeaders sets the response headers for a Server-Sent Events stream.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEChunk writes one stream chunk in SSE framing:
//
//	data: {"id":"...","object":"chat.completion.chunk",...}
//
// followed by a blank line, and flushes so clients see it immediately.
func WriteSSEChunk(w http.ResponseWriter, chunk *backend.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE chunk: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE chunk: %w", err)
	}

	flush(w)
	return nil
}

// WriteSSEError writes an error envelope as an SSE data event, for failures
// that occur after the stream headers have been sent.
func WriteSSEError(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	data, err := json.Marshal(errResp)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}

	flush(w)
	return nil
}

// WriteSSEDone writes the terminating [DONE] marker. Every stream ends with
// exactly one of these, including streams that carried an error event.
func WriteSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write SSE done marker: %w", err)
	}

	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
