package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// streamReader reads Server-Sent Events from the backend's completion stream
// and translates each chunk to the OpenAI wire format. Translation is
// stateful: the backend emits its own tool call IDs with every index set to
// zero, so the reader rewrites IDs and assigns indexes in arrival order.
type streamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool

	// toolCallIndex maps original backend tool call IDs to assigned indexes.
	toolCallIndex map[string]int
}

// newStreamReader creates a stream reader over a response body.
func newStreamReader(body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	// Content deltas are small, but tool call argument fragments can carry
	// large JSON payloads in one line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &streamReader{
		body:          body,
		scanner:       scanner,
		toolCallIndex: make(map[string]int),
	}
}

// Read reads the next chunk from the stream.
// Returns nil, io.EOF when the stream ends normally.
func (s *streamReader) Read(ctx context.Context) (*StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &TransportError{Op: "read stream", Cause: err}
			}
			return nil, io.EOF
		}

		line := s.scanner.Text()

		// Skip empty lines and SSE comments.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, &ParseError{
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}

		s.translateToolCalls(&chunk)
		return &chunk, nil
	}
}

// translateToolCalls rewrites backend tool call IDs to the OpenAI "call_"
// prefix and assigns stable indexes. Fragments without an ID belong to the
// most recently seen call and inherit its index.
func (s *streamReader) translateToolCalls(chunk *StreamChunk) {
	for ci := range chunk.Choices {
		deltas := chunk.Choices[ci].Delta.ToolCalls
		for ti := range deltas {
			tc := &deltas[ti]
			if tc.ID != "" {
				if _, seen := s.toolCallIndex[tc.ID]; !seen {
					s.toolCallIndex[tc.ID] = len(s.toolCallIndex)
				}
				tc.Index = s.toolCallIndex[tc.ID]
				tc.ID = translateToolCallID(tc.ID)
			} else if len(s.toolCallIndex) > 0 {
				tc.Index = maxIndex(s.toolCallIndex)
			}
		}
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// translateToolCallID converts the backend's tool call ID format to the
// OpenAI one: tooluse_xxx becomes call_xxx. Other IDs pass through.
func translateToolCallID(id string) string {
	if rest, ok := strings.CutPrefix(id, "tooluse_"); ok {
		return "call_" + rest
	}
	return id
}

func maxIndex(m map[string]int) int {
	max := 0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}
