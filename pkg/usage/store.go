package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schema holds the per-model, per-day usage counters. Requests are counted
// even when the backend reports no token usage, so the request count is
// always at least as fresh as the token counts.
const schema = `
CREATE TABLE IF NOT EXISTS model_usage (
	model             TEXT    NOT NULL,
	day               TEXT    NOT NULL,
	requests          INTEGER NOT NULL DEFAULT 0,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (model, day)
);

CREATE INDEX IF NOT EXISTS idx_model_usage_day ON model_usage(day);
`

// ModelStats is the aggregated usage of one model.
type ModelStats struct {
	Model            string `json:"model"`
	Requests         int64  `json:"requests"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// Store persists per-model usage counters in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (creating if necessary) the usage database at path and
// initializes the schema. WAL mode keeps concurrent request recording from
// blocking stats reads.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create usage database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "usage-store"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("usage store initialized", "path", path)
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create usage schema: %w", err)
	}
	return nil
}

// Record counts one request against a model's daily counters. Token counts
// of zero are fine; the backend does not always report usage.
func (s *Store) Record(ctx context.Context, model string, promptTokens, completionTokens int) error {
	if model == "" {
		model = "unknown"
	}
	day := time.Now().UTC().Format("2006-01-02")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_usage (model, day, requests, prompt_tokens, completion_tokens)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(model, day) DO UPDATE SET
			requests = requests + 1,
			prompt_tokens = prompt_tokens + excluded.prompt_tokens,
			completion_tokens = completion_tokens + excluded.completion_tokens`,
		model, day, promptTokens, completionTokens)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Stats returns aggregated usage per model, ordered by request count.
func (s *Store) Stats(ctx context.Context) ([]ModelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model,
		       SUM(requests),
		       SUM(prompt_tokens),
		       SUM(completion_tokens)
		FROM model_usage
		GROUP BY model
		ORDER BY SUM(requests) DESC, model`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var m ModelStats
		if err := rows.Scan(&m.Model, &m.Requests, &m.PromptTokens, &m.CompletionTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
