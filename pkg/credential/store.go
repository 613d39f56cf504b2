package credential

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store persists credential records as individual JSON files in a directory.
// File name (minus the .json extension) is the record ID. The store itself is
// stateless; the rotation manager holds the in-memory pool.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StoreError{Op: "load", Path: dir, Err: err}
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "credential-store"),
	}, nil
}

// Dir returns the directory the store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// LoadAll reads every credential file in the store directory and returns the
// parsed records sorted by ID. Files that cannot be read or parsed are
// logged and skipped so one corrupt file never takes down the whole pool.
func (s *Store) LoadAll() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StoreError{Op: "load", Path: s.dir, Err: err}
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		rec, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable credential file",
				"file", name,
				"error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Load reads a single credential record by ID.
func (s *Store) Load(id string) (*Record, error) {
	return s.load(id)
}

func (s *Store) load(id string) (*Record, error) {
	path := s.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StoreError{Op: "load", Path: path, Err: err}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &StoreError{Op: "load", Path: path, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	rec.ID = id
	return &rec, nil
}

// Save writes a record to disk atomically: the JSON is written to a
// temporary file in the same directory and then renamed over the target, so
// a crash mid-write never leaves a truncated credential file.
func (s *Store) Save(rec *Record) error {
	path := s.path(rec.ID)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &StoreError{Op: "save", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "."+rec.ID+".*.tmp")
	if err != nil {
		return &StoreError{Op: "save", Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &StoreError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &StoreError{Op: "save", Path: path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return &StoreError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &StoreError{Op: "save", Path: path, Err: err}
	}

	s.logger.Info("saved credential", "id", rec.ID, "user_id", rec.UserID)
	return nil
}

// Delete removes a record's file. Deleting a record that does not exist is
// not an error.
func (s *Store) Delete(id string) error {
	path := s.path(id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StoreError{Op: "delete", Path: path, Err: err}
	}
	s.logger.Info("deleted credential", "id", id)
	return nil
}

func (s *Store) path(id string) string {
	// Strip any path components so a crafted ID cannot escape the directory.
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}
