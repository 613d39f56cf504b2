package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"codebuddy-hq/relay/pkg/proxy/types"
	"codebuddy-hq/relay/pkg/usage"
)

func TestUsageStats(t *testing.T) {
	store, err := usage.NewStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("failed to open usage store: %v", err)
	}
	defer store.Close()

	if err := store.Record(context.Background(), "claude-4.0", 10, 20); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	h := NewUsageHandler(store)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/usage", nil))

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats types.UsageStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(stats.Data) != 1 || stats.Data[0].Model != "claude-4.0" {
		t.Fatalf("unexpected stats: %+v", stats.Data)
	}
	if stats.Data[0].PromptTokens != 10 || stats.Data[0].CompletionTokens != 20 {
		t.Errorf("unexpected token counts: %+v", stats.Data[0])
	}
}

func TestUsageStatsDisabled(t *testing.T) {
	h := NewUsageHandler(nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/usage", nil))

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats types.UsageStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(stats.Data) != 0 {
		t.Errorf("expected empty stats, got %+v", stats.Data)
	}
}
