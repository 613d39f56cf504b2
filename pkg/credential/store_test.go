package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCredFile(t *testing.T, dir, id, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write credential file: %v", err)
	}
}

func TestStoreLoadAllSorted(t *testing.T) {
	dir := t.TempDir()
	writeCredFile(t, dir, "bravo", `{"bearer_token":"tok-b","user_id":"b@example.com"}`)
	writeCredFile(t, dir, "alpha", `{"bearer_token":"tok-a","user_id":"a@example.com"}`)

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	records, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "alpha" || records[1].ID != "bravo" {
		t.Errorf("expected records sorted by ID, got %q, %q", records[0].ID, records[1].ID)
	}
	if records[0].BearerToken != "tok-a" {
		t.Errorf("unexpected token %q", records[0].BearerToken)
	}
}

func TestStoreLoadAllSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeCredFile(t, dir, "good", `{"bearer_token":"tok"}`)
	writeCredFile(t, dir, "bad", `{not json`)
	// Non-JSON files are ignored entirely.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	records, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll should not fail on malformed files: %v", err)
	}
	if len(records) != 1 || records[0].ID != "good" {
		t.Fatalf("expected only the good record, got %v", records)
	}
}

func TestStoreSaveRoundTripPreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeCredFile(t, dir, "cred", `{
		"bearer_token": "tok",
		"user_id": "u@example.com",
		"created_at": 1700000000,
		"expires_in": 3600,
		"vendor_hint": {"region": "ap-shanghai"}
	}`)

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	rec, err := store.Load("cred")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.BearerToken != "tok" || rec.CreatedAt != 1700000000 {
		t.Fatalf("typed fields not decoded: %+v", rec)
	}
	if _, ok := rec.Extra["vendor_hint"]; !ok {
		t.Fatal("unknown field not preserved in Extra")
	}

	rec.BearerToken = "tok2"
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cred.json"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	if _, ok := raw["vendor_hint"]; !ok {
		t.Error("unknown field lost across save")
	}
	if string(raw["bearer_token"]) != `"tok2"` {
		t.Errorf("updated token not saved: %s", raw["bearer_token"])
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCredFile(t, dir, "cred", `{"bearer_token":"tok"}`)

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Delete("cred"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("cred"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Unix(1700003600, 0)

	tests := []struct {
		name    string
		rec     Record
		expired bool
	}{
		{"no lifetime", Record{BearerToken: "t"}, false},
		{"fresh", Record{BearerToken: "t", CreatedAt: 1700003000, ExpiresIn: 3600}, false},
		{"elapsed", Record{BearerToken: "t", CreatedAt: 1700000000, ExpiresIn: 3600}, true},
		{"boundary", Record{BearerToken: "t", CreatedAt: 1700000000, ExpiresIn: 3601}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Expired(now); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}
