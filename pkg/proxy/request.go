package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/proxy/types"
)

// maxRequestBody bounds the chat request body size. Long conversations with
// embedded file content fit comfortably; anything larger is rejected before
// it reaches the backend.
const maxRequestBody = 10 << 20 // 10MB

// RequestError describes a rejected client request. HandleError maps it onto
// a 400 invalid_request_error envelope.
type RequestError struct {
	Message string
	Param   string
	Code    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid request: %s (param: %s)", e.Message, e.Param)
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// ParseChatRequest decodes and validates a chat completion request. The
// request body is decoded directly into the backend's wire type; the two
// sides speak the same OpenAI-compatible schema, so no field translation
// happens here.
func ParseChatRequest(r *http.Request) (*backend.ChatRequest, error) {
	var req backend.ChatRequest

	body := http.MaxBytesReader(nil, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, &RequestError{
			Message: "Request body is not valid JSON.",
			Code:    types.CodeInvalidJSON,
		}
	}

	if err := validateChatRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// validateChatRequest enforces the minimal request contract. Unknown fields
// and optional parameters pass through to the backend untouched.
func validateChatRequest(req *backend.ChatRequest) error {
	if req.Model == "" {
		return &RequestError{
			Message: "The model field is required.",
			Param:   "model",
			Code:    types.CodeMissingField,
		}
	}

	if len(req.Messages) == 0 {
		return &RequestError{
			Message: "At least one message is required.",
			Param:   "messages",
			Code:    types.CodeMissingField,
		}
	}

	for i, msg := range req.Messages {
		if msg.Role == "" {
			return &RequestError{
				Message: "Every message requires a role.",
				Param:   fmt.Sprintf("messages[%d].role", i),
				Code:    types.CodeMissingField,
			}
		}
	}

	return nil
}
