package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codebuddy-hq/relay/pkg/authflow"
	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy/types"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
)

// stubBackend serves a fixed two-chunk completion.
type stubBackend struct{}

func (stubBackend) StreamCompletion(ctx context.Context, req *backend.ChatRequest, cred *credential.Record) (<-chan *backend.StreamChunk, error) {
	reason := "stop"
	ch := make(chan *backend.StreamChunk, 2)
	ch <- &backend.StreamChunk{
		ID:      "resp-1",
		Object:  "chat.completion.chunk",
		Choices: []backend.StreamChoice{{Delta: backend.Delta{Content: "Hello"}}},
	}
	ch <- &backend.StreamChunk{
		ID:      "resp-1",
		Object:  "chat.completion.chunk",
		Choices: []backend.StreamChoice{{FinishReason: &reason}},
	}
	close(ch)
	return ch, nil
}

// stubLogin starts sessions that never complete.
type stubLogin struct{}

func (stubLogin) StartLogin(ctx context.Context) (*backend.LoginChallenge, error) {
	return &backend.LoginChallenge{State: "s", AuthURL: "https://example.com/login"}, nil
}

func (stubLogin) PollLogin(ctx context.Context, state string) (*backend.LoginPoll, error) {
	return &backend.LoginPoll{Pending: true}, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.Password = "secret"
	cfg.Models = []string{"claude-4.0"}

	store, err := credential.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Save(&credential.Record{ID: "codebuddy_dev_1", BearerToken: "tok"}); err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
	manager := credential.NewManager(store, 1)
	if err := manager.Reload(); err != nil {
		t.Fatalf("failed to load pool: %v", err)
	}

	controller := authflow.NewController(stubLogin{}, store, config.AuthConfig{
		PollInterval: time.Second,
		MaxPolls:     10,
		SessionTTL:   time.Minute,
	})
	t.Cleanup(controller.Close)

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	srv := NewServer(cfg, Components{
		Backend:    stubBackend{},
		Store:      store,
		Manager:    manager,
		Controller: controller,
		Usage:      nil,
		Metrics:    collector,
	})
	return srv.Handler()
}

func get(handler http.Handler, path, password string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", path, nil)
	if password != "" {
		r.Header.Set("Authorization", "Bearer "+password)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestServerHealthNeedsNoPassword(t *testing.T) {
	handler := newTestHandler(t)

	if w := get(handler, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", w.Code)
	}
}

func TestServerMetricsNeedsNoPassword(t *testing.T) {
	handler := newTestHandler(t)

	if w := get(handler, "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", w.Code)
	}
}

func TestServerEnforcesPassword(t *testing.T) {
	handler := newTestHandler(t)

	if w := get(handler, "/v1/models", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without password, got %d", w.Code)
	}
	if w := get(handler, "/v1/models", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong password, got %d", w.Code)
	}

	w := get(handler, "/v1/models", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with password, got %d", w.Code)
	}
	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("listing is not valid JSON: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "claude-4.0" {
		t.Errorf("unexpected model listing: %+v", list.Data)
	}
}

func TestServerChatCompletion(t *testing.T) {
	handler := newTestHandler(t)

	body := `{"model":"claude-4.0","messages":[{"role":"user","content":"hi"}]}`
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Choices[0].Message.Content != "Hello" {
		t.Errorf("unexpected content: %q", resp.Choices[0].Message.Content)
	}
}

func TestServerChatRejectsWrongMethod(t *testing.T) {
	handler := newTestHandler(t)

	if w := get(handler, "/v1/chat/completions", "secret"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}
}

func TestServerSetsRequestID(t *testing.T) {
	handler := newTestHandler(t)

	w := get(handler, "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}
