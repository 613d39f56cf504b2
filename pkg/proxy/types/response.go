package types

import "codebuddy-hq/relay/pkg/backend"

// ChatCompletionResponse is the non-streaming chat completion response,
// built by folding a full backend stream into one message.
type ChatCompletionResponse struct {
	// ID is the response identifier (format: chatcmpl-<id>).
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of response creation.
	Created int64 `json:"created"`

	// Model is the model that served the request.
	Model string `json:"model"`

	// Choices contains the single aggregated choice.
	Choices []Choice `json:"choices"`

	// Usage contains token counts when the backend reported them.
	Usage *backend.TokenUsage `json:"usage,omitempty"`

	// SystemFingerprint identifies the backend configuration, when reported.
	SystemFingerprint string `json:"system_fingerprint,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	// Index is the choice index (always 0).
	Index int `json:"index"`

	// Message is the aggregated assistant message.
	Message ResponseMessage `json:"message"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a completion choice.
type ResponseMessage struct {
	// Role is always "assistant".
	Role string `json:"role"`

	// Content is the full text content.
	Content string `json:"content"`

	// ToolCalls contains the assembled tool calls, if any.
	ToolCalls []backend.ToolCall `json:"tool_calls,omitempty"`
}

// ModelList is the response of the model listing endpoint.
type ModelList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data contains the advertised models.
	Data []ModelInfo `json:"data"`
}

// ModelInfo describes one advertised model.
type ModelInfo struct {
	// ID is the model identifier clients pass in chat requests.
	ID string `json:"id"`

	// Object is always "model".
	Object string `json:"object"`

	// Created is the Unix timestamp the listing was generated at. The list
	// is static configuration, so this is informational only.
	Created int64 `json:"created"`

	// OwnedBy identifies the model owner.
	OwnedBy string `json:"owned_by"`
}
