package backend

import "encoding/json"

// Message represents a single message in a conversation. Content is kept as
// raw JSON because clients may send either a plain string or an array of
// structured content parts, and both pass through to the backend untouched.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message content: a JSON string or an array of parts
	Content json.RawMessage `json:"content,omitempty"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`

	// ToolCalls contains tool calls made by the assistant (for assistant role)
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID references the tool call a "tool" message responds to
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a completed function/tool call request from the model.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Type is the type of tool call (currently always "function")
	Type string `json:"type"`

	// Function contains the function name and arguments
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a specific function invocation.
type FunctionCall struct {
	// Name is the function name to call
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments
	Arguments string `json:"arguments"`
}

// Tool represents a tool/function definition that the model can call.
type Tool struct {
	// Type is the type of tool (currently always "function")
	Type string `json:"type"`

	// Function contains the function definition
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition defines a callable function.
type FunctionDefinition struct {
	// Name is the function name
	Name string `json:"name"`

	// Description explains what the function does
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// ChatRequest is the chat completion request sent upstream. The backend is
// wire-compatible with the OpenAI chat schema except that it only accepts
// streaming requests; the client always forces Stream to true before sending.
type ChatRequest struct {
	// Model is the model identifier
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Stream is always set to true on the wire
	Stream bool `json:"stream"`

	// Temperature controls randomness
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling
	TopP *float64 `json:"top_p,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stop sequences that will halt generation (string or array)
	Stop json.RawMessage `json:"stop,omitempty"`

	// Tools is a list of tools the model can call
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tools can be called
	ToolChoice json.RawMessage `json:"tool_choice,omitempty"`

	// PresencePenalty reduces repetition
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// User is an optional end-user identifier
	User string `json:"user,omitempty"`
}

// StreamChunk is a single chunk of a streamed completion, already translated
// to the OpenAI wire format (tool call IDs rewritten, indexes assigned). The
// passthrough path re-serializes it verbatim; the aggregation path folds a
// sequence of chunks into a Completion.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id,omitempty"`

	// Object is the chunk object type ("chat.completion.chunk")
	Object string `json:"object,omitempty"`

	// Created is the Unix timestamp when the chunk was created
	Created int64 `json:"created,omitempty"`

	// Model is the model generating the response
	Model string `json:"model,omitempty"`

	// SystemFingerprint identifies the backend configuration
	SystemFingerprint string `json:"system_fingerprint,omitempty"`

	// Choices carries the incremental delta
	Choices []StreamChoice `json:"choices,omitempty"`

	// Usage is included in the final chunk when the backend reports it
	Usage *TokenUsage `json:"usage,omitempty"`

	// Err is set when the stream failed; never serialized
	Err error `json:"-"`
}

// StreamChoice is a single choice within a stream chunk.
type StreamChoice struct {
	// Index is the choice index (always 0 for this backend)
	Index int `json:"index"`

	// Delta is the incremental content in this chunk
	Delta Delta `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation stopped
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a stream choice.
type Delta struct {
	// Role is set in the first chunk of a response
	Role string `json:"role,omitempty"`

	// Content is the incremental text content
	Content string `json:"content,omitempty"`

	// ToolCalls contains incremental tool call fragments
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental tool call fragment. The first fragment of
// a call carries the ID and name; later fragments append argument text.
type ToolCallDelta struct {
	// Index is the tool call's position within the response
	Index int `json:"index"`

	// ID is set on the first fragment of a call
	ID string `json:"id,omitempty"`

	// Type is the type of tool call (currently always "function")
	Type string `json:"type,omitempty"`

	// Function carries the incremental name and argument text
	Function FunctionCallDelta `json:"function"`
}

// FunctionCallDelta is the incremental function payload of a tool call fragment.
type FunctionCallDelta struct {
	// Name is set on the first fragment of a call
	Name string `json:"name,omitempty"`

	// Arguments is an incremental piece of the argument JSON string
	Arguments string `json:"arguments,omitempty"`
}

// Completion is the aggregated result of a full stream, consumed by the
// non-streaming response path.
type Completion struct {
	// ID is the response identifier taken from the first chunk that carried one
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the concatenated text content
	Content string `json:"content"`

	// ToolCalls contains the assembled tool calls in arrival order
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// FinishReason indicates why generation stopped
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption when the backend reported it
	Usage *TokenUsage `json:"usage,omitempty"`

	// SystemFingerprint identifies the backend configuration
	SystemFingerprint string `json:"system_fingerprint,omitempty"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
)
