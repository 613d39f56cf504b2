package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy/types"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
	"codebuddy-hq/relay/pkg/usage"
)

// fakePool is an in-memory CredentialPool.
type fakePool struct {
	mu      sync.Mutex
	creds   []*credential.Record
	invalid map[string]bool
	served  int
}

func newFakePool(ids ...string) *fakePool {
	p := &fakePool{invalid: make(map[string]bool)}
	for _, id := range ids {
		p.creds = append(p.creds, &credential.Record{ID: id, BearerToken: "token-" + id})
	}
	return p
}

func (p *fakePool) Acquire() (*credential.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.creds {
		if !p.invalid[c.ID] {
			return c, nil
		}
	}
	return nil, credential.ErrNoCredentials
}

func (p *fakePool) RecordServed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.served++
}

func (p *fakePool) Invalidate(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid[id] = true
}

func (p *fakePool) servedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.served
}

func (p *fakePool) invalidated(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalid[id]
}

// fakeBackend opens streams via a per-call function.
type fakeBackend struct {
	mu    sync.Mutex
	calls int
	creds []string
	open  func(call int) (<-chan *backend.StreamChunk, error)
}

func (b *fakeBackend) StreamCompletion(ctx context.Context, req *backend.ChatRequest, cred *credential.Record) (<-chan *backend.StreamChunk, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.creds = append(b.creds, cred.ID)
	b.mu.Unlock()
	return b.open(call)
}

func chunksOf(chunks ...*backend.StreamChunk) <-chan *backend.StreamChunk {
	ch := make(chan *backend.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func contentChunk(content string) *backend.StreamChunk {
	return &backend.StreamChunk{
		ID:     "resp-1",
		Object: "chat.completion.chunk",
		Choices: []backend.StreamChoice{
			{Index: 0, Delta: backend.Delta{Content: content}},
		},
	}
}

func finishChunk(reason string, u *backend.TokenUsage) *backend.StreamChunk {
	return &backend.StreamChunk{
		ID:     "resp-1",
		Object: "chat.completion.chunk",
		Choices: []backend.StreamChoice{
			{Index: 0, Delta: backend.Delta{}, FinishReason: &reason},
		},
		Usage: u,
	}
}

func newChatHandler(b Backend, pool CredentialPool, store *usage.Store) *ChatHandler {
	collector := metrics.NewCollector(config.MetricsConfig{Namespace: "test"}, nil)
	return NewChatHandler(b, pool, store, collector)
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

const aggregateBody = `{"model":"claude-4.0","messages":[{"role":"user","content":"hi"}]}`
const streamBody = `{"model":"claude-4.0","messages":[{"role":"user","content":"hi"}],"stream":true}`

func TestChatAggregateSuccess(t *testing.T) {
	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		return chunksOf(
			contentChunk("Hel"),
			contentChunk("lo"),
			finishChunk("stop", &backend.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}),
		), nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), aggregateBody)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("unexpected object: %s", resp.Object)
	}
	if resp.Choices[0].Message.Content != "Hello" {
		t.Errorf("unexpected content: %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("unexpected finish reason: %s", resp.Choices[0].FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Errorf("usage not carried over: %+v", resp.Usage)
	}
	if pool.servedCount() != 1 {
		t.Errorf("expected 1 served request, got %d", pool.servedCount())
	}
}

func TestChatStreamPassthrough(t *testing.T) {
	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		return chunksOf(
			contentChunk("Hello"),
			finishChunk("stop", nil),
		), nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), streamBody)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	body := w.Body.String()
	if got := strings.Count(body, "data: "); got != 3 {
		t.Errorf("expected 3 SSE events (2 chunks + done), got %d:\n%s", got, body)
	}
	if got := strings.Count(body, "data: [DONE]"); got != 1 {
		t.Errorf("expected exactly one [DONE] marker, got %d", got)
	}
	if !strings.Contains(body, `"content":"Hello"`) {
		t.Errorf("chunk content missing from stream:\n%s", body)
	}
	if pool.servedCount() != 1 {
		t.Errorf("expected 1 served request, got %d", pool.servedCount())
	}
}

func TestChatRetriesOnceAfterAuthRejection(t *testing.T) {
	pool := newFakePool("a", "b")
	b := &fakeBackend{open: nil}
	b.open = func(call int) (<-chan *backend.StreamChunk, error) {
		if call == 1 {
			return nil, &backend.AuthError{CredentialID: "a", StatusCode: 401}
		}
		return chunksOf(contentChunk("ok"), finishChunk("stop", nil)), nil
	}

	w := postChat(t, newChatHandler(b, pool, nil), aggregateBody)

	if w.Code != 200 {
		t.Fatalf("expected 200 after retry, got %d: %s", w.Code, w.Body.String())
	}
	if !pool.invalidated("a") {
		t.Error("rejected credential was not invalidated")
	}
	if len(b.creds) != 2 || b.creds[1] != "b" {
		t.Errorf("retry did not use the next credential: %v", b.creds)
	}
	if pool.servedCount() != 1 {
		t.Errorf("expected 1 served request (rejection must not count), got %d", pool.servedCount())
	}
}

func TestChatAuthRejectionExhausted(t *testing.T) {
	pool := newFakePool("a", "b")
	b := &fakeBackend{}
	b.open = func(call int) (<-chan *backend.StreamChunk, error) {
		id := "a"
		if call == 2 {
			id = "b"
		}
		return nil, &backend.AuthError{CredentialID: id, StatusCode: 403}
	}

	w := postChat(t, newChatHandler(b, pool, nil), aggregateBody)

	if w.Code != 502 {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an error envelope: %v", err)
	}
	if resp.Error.Code != types.CodeBackendAuth {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
	if b.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", b.calls)
	}
	if pool.servedCount() != 0 {
		t.Errorf("rejected requests must not count, got %d", pool.servedCount())
	}
}

func TestChatNoCredentials(t *testing.T) {
	pool := newFakePool()
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		t.Fatal("backend must not be called with an empty pool")
		return nil, nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), aggregateBody)

	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an error envelope: %v", err)
	}
	if resp.Error.Code != types.CodeNoCredentials {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestChatInvalidRequest(t *testing.T) {
	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		t.Fatal("backend must not be called for an invalid request")
		return nil, nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), `{"model":"claude-4.0","messages":[]}`)

	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChatStreamBackendFailureMidStream(t *testing.T) {
	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		return chunksOf(
			contentChunk("partial"),
			&backend.StreamChunk{Err: &backend.TransportError{Op: "read"}},
		), nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), streamBody)

	body := w.Body.String()
	if !strings.Contains(body, `"bad_gateway"`) {
		t.Errorf("expected an SSE error event:\n%s", body)
	}
	if got := strings.Count(body, "data: [DONE]"); got != 1 {
		t.Errorf("expected exactly one [DONE] marker, got %d", got)
	}
	if pool.servedCount() != 1 {
		t.Errorf("non-auth failures still count toward rotation, got %d", pool.servedCount())
	}
}

func TestChatAggregateFailsOnIncompleteStream(t *testing.T) {
	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		return chunksOf(
			contentChunk("partial"),
			&backend.StreamChunk{Err: &backend.TransportError{Op: "read"}},
		), nil
	}}

	w := postChat(t, newChatHandler(b, pool, nil), aggregateBody)

	if w.Code != 502 {
		t.Fatalf("expected 502 for an incomplete stream, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "partial") {
		t.Error("partial content must not leak into the error response")
	}
}

func TestChatRecordsUsage(t *testing.T) {
	store, err := usage.NewStore(t.TempDir() + "/usage.db")
	if err != nil {
		t.Fatalf("failed to open usage store: %v", err)
	}
	defer store.Close()

	pool := newFakePool("a")
	b := &fakeBackend{open: func(int) (<-chan *backend.StreamChunk, error) {
		return chunksOf(
			contentChunk("hi"),
			finishChunk("stop", &backend.TokenUsage{PromptTokens: 7, CompletionTokens: 11, TotalTokens: 18}),
		), nil
	}}

	w := postChat(t, newChatHandler(b, pool, store), aggregateBody)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Model != "claude-4.0" || stats[0].Requests != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats[0].PromptTokens != 7 || stats[0].CompletionTokens != 11 {
		t.Errorf("token counts not recorded: %+v", stats[0])
	}
}
