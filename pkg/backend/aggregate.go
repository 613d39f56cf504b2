package backend

import (
	"encoding/json"
	"strings"
)

// Aggregator folds a stream of chunks into a single completion for the
// non-streaming response path. Tool calls are keyed by ID rather than index
// because the backend reports every fragment with index zero; arrival order
// is preserved separately so the assembled list comes out in the order the
// model emitted the calls.
type Aggregator struct {
	id                string
	model             string
	systemFingerprint string
	content           strings.Builder
	finishReason      string
	usage             *TokenUsage

	toolCalls     map[string]*ToolCall
	toolCallOrder []string
	currentToolID string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		toolCalls: make(map[string]*ToolCall),
	}
}

// ProcessChunk folds one chunk into the aggregate state.
func (a *Aggregator) ProcessChunk(chunk *StreamChunk) {
	if a.id == "" {
		a.id = chunk.ID
	}
	if a.model == "" {
		a.model = chunk.Model
	}
	if chunk.SystemFingerprint != "" {
		a.systemFingerprint = chunk.SystemFingerprint
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}

	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		a.finishReason = *choice.FinishReason
	}
	if choice.Delta.Content != "" {
		a.content.WriteString(choice.Delta.Content)
	}
	for i := range choice.Delta.ToolCalls {
		a.processToolCall(&choice.Delta.ToolCalls[i])
	}
}

func (a *Aggregator) processToolCall(tc *ToolCallDelta) {
	switch {
	case tc.ID != "":
		call, exists := a.toolCalls[tc.ID]
		if !exists {
			call = &ToolCall{ID: tc.ID, Type: "function"}
			a.toolCalls[tc.ID] = call
			a.toolCallOrder = append(a.toolCallOrder, tc.ID)
		}
		a.currentToolID = tc.ID

		if tc.Type != "" {
			call.Type = tc.Type
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments

	case a.currentToolID != "":
		// Fragment without an ID continues the current call.
		call := a.toolCalls[a.currentToolID]
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
	// A fragment with no ID and no current call has nothing to attach to.
}

// Finalize assembles the aggregated completion. Tool call arguments are
// validated and repaired, since concatenated fragments sometimes produce
// malformed or doubled JSON.
func (a *Aggregator) Finalize() *Completion {
	completion := &Completion{
		ID:                a.id,
		Model:             a.model,
		Content:           a.content.String(),
		FinishReason:      a.finishReason,
		Usage:             a.usage,
		SystemFingerprint: a.systemFingerprint,
	}

	for _, id := range a.toolCallOrder {
		call := a.toolCalls[id]
		call.Function.Arguments = repairToolCallArguments(call.Function.Arguments)
		completion.ToolCalls = append(completion.ToolCalls, *call)
	}

	if len(completion.ToolCalls) > 0 {
		completion.FinishReason = FinishReasonToolCalls
	} else if completion.FinishReason == "" {
		completion.FinishReason = FinishReasonStop
	}

	return completion
}

// Aggregate drains a chunk channel into a completion. A stream error before
// the channel closes aborts aggregation: the caller gets an
// *AggregationError, never a partial completion.
func Aggregate(chunks <-chan *StreamChunk) (*Completion, error) {
	agg := NewAggregator()
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, &AggregationError{Cause: chunk.Err}
		}
		agg.ProcessChunk(chunk)
	}
	return agg.Finalize(), nil
}

// repairToolCallArguments validates an assembled argument string and repairs
// the failure modes seen in practice: several complete JSON objects
// concatenated together (multi tool call interleaving) and truncated
// objects or arrays missing their closing bracket.
func repairToolCallArguments(args string) string {
	args = strings.TrimSpace(args)
	if args == "" {
		return "{}"
	}

	// Concatenated objects: keep the first complete one.
	if strings.Contains(args, "}{") {
		if first, ok := firstJSONObject(args); ok {
			return first
		}
	}

	if json.Valid([]byte(args)) {
		return args
	}

	// Close an unterminated object or array.
	if !strings.HasSuffix(args, "}") && strings.Count(args, "{") > strings.Count(args, "}") {
		if fixed := args + "}"; json.Valid([]byte(fixed)) {
			return fixed
		}
	}
	if !strings.HasSuffix(args, "]") && strings.Count(args, "[") > strings.Count(args, "]") {
		if fixed := args + "]"; json.Valid([]byte(fixed)) {
			return fixed
		}
	}

	return "{}"
}

// firstJSONObject extracts the first balanced top-level JSON object from s.
func firstJSONObject(s string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				start = -1
			}
		}
	}
	return "", false
}
