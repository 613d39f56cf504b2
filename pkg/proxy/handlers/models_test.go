package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"codebuddy-hq/relay/pkg/proxy/types"
)

func TestModelsListing(t *testing.T) {
	h := NewModelsHandler([]string{"claude-4.0", "gpt-5"})

	r := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if list.Object != "list" {
		t.Errorf("unexpected object: %s", list.Object)
	}
	if len(list.Data) != 2 {
		t.Fatalf("expected 2 models, got %d", len(list.Data))
	}
	if list.Data[0].ID != "claude-4.0" || list.Data[0].Object != "model" {
		t.Errorf("unexpected first model: %+v", list.Data[0])
	}
	if list.Data[0].OwnedBy != "codebuddy" {
		t.Errorf("unexpected owner: %s", list.Data[0].OwnedBy)
	}
}

func TestModelsListingEmpty(t *testing.T) {
	h := NewModelsHandler(nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models", nil))

	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if list.Data == nil || len(list.Data) != 0 {
		t.Errorf("expected an empty data array, got %+v", list.Data)
	}
}
