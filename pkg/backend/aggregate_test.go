package backend

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func contentChunk(id, content string) *StreamChunk {
	return &StreamChunk{
		ID:      id,
		Model:   "claude-4.0",
		Choices: []StreamChoice{{Delta: Delta{Content: content}}},
	}
}

func finishChunk(id, reason string, usage *TokenUsage) *StreamChunk {
	return &StreamChunk{
		ID:      id,
		Model:   "claude-4.0",
		Choices: []StreamChoice{{FinishReason: strPtr(reason)}},
		Usage:   usage,
	}
}

func toChannel(chunks ...*StreamChunk) <-chan *StreamChunk {
	ch := make(chan *StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestAggregateContent(t *testing.T) {
	completion, err := Aggregate(toChannel(
		contentChunk("c1", "4 = "),
		contentChunk("c1", "2+2"),
		finishChunk("c1", "stop", &TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}),
	))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if completion.Content != "4 = 2+2" {
		t.Errorf("expected concatenated content %q, got %q", "4 = 2+2", completion.Content)
	}
	if completion.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", completion.FinishReason)
	}
	if completion.ID != "c1" || completion.Model != "claude-4.0" {
		t.Errorf("identity not carried: id=%q model=%q", completion.ID, completion.Model)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens != 14 {
		t.Errorf("usage not carried: %+v", completion.Usage)
	}
}

func TestAggregateErrorBeforeFinish(t *testing.T) {
	streamErr := errors.New("connection reset")
	_, err := Aggregate(toChannel(
		contentChunk("c1", "partial "),
		&StreamChunk{Err: streamErr},
	))

	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregationError, got %T: %v", err, err)
	}
	if !errors.Is(err, streamErr) {
		t.Error("expected cause to be preserved")
	}
}

func TestAggregateToolCallsByID(t *testing.T) {
	chunks := toChannel(
		&StreamChunk{ID: "c1", Choices: []StreamChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{
			{Index: 0, ID: "call_a", Type: "function", Function: FunctionCallDelta{Name: "get_weather"}},
		}}}}},
		&StreamChunk{Choices: []StreamChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{
			{Index: 0, Function: FunctionCallDelta{Arguments: `{"city":`}},
		}}}}},
		&StreamChunk{Choices: []StreamChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{
			{Index: 0, Function: FunctionCallDelta{Arguments: `"Paris"}`}},
		}}}}},
		// Second call, still reported with index 0 by the backend.
		&StreamChunk{Choices: []StreamChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{
			{Index: 1, ID: "call_b", Type: "function", Function: FunctionCallDelta{Name: "get_time", Arguments: `{}`}},
		}}}}},
		finishChunk("c1", "tool_calls", nil),
	)

	completion, err := Aggregate(chunks)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(completion.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(completion.ToolCalls))
	}
	first := completion.ToolCalls[0]
	if first.ID != "call_a" || first.Function.Name != "get_weather" {
		t.Errorf("unexpected first call: %+v", first)
	}
	if first.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("fragments not assembled: %q", first.Function.Arguments)
	}
	second := completion.ToolCalls[1]
	if second.ID != "call_b" || second.Function.Name != "get_time" {
		t.Errorf("unexpected second call: %+v", second)
	}
	if completion.FinishReason != FinishReasonToolCalls {
		t.Errorf("expected tool_calls finish reason, got %q", completion.FinishReason)
	}
}

func TestAggregateDefaultsFinishReason(t *testing.T) {
	completion, err := Aggregate(toChannel(contentChunk("c1", "hi")))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if completion.FinishReason != FinishReasonStop {
		t.Errorf("expected default finish reason stop, got %q", completion.FinishReason)
	}
}

func TestRepairToolCallArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "{}"},
		{"valid", `{"a":1}`, `{"a":1}`},
		{"concatenated objects", `{"a":1}{"b":2}`, `{"a":1}`},
		{"unterminated object", `{"a":1`, `{"a":1}`},
		{"unterminated array", `[1,2`, `[1,2]`},
		{"unrepairable", `{"a":`, "{}"},
		{"whitespace", "  {}  ", "{}"},
		{"braces inside strings", `{"a":"}{"}`, `{"a":"}{"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repairToolCallArguments(tt.in); got != tt.want {
				t.Errorf("repairToolCallArguments(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
