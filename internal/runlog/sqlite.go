// Package runlog persists per-run and per-document outcomes in SQLite so
// operators can inspect batch history after the process exits.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store records batch runs. Use ":memory:" for an ephemeral store, or a file
// path for persistent history.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// DocumentRecord is one per-document outcome row.
type DocumentRecord struct {
	RunID     string
	Document  string
	Outcome   string // "ok" or "failed"
	ErrorCode string // empty on success
	Attempts  int
}

// RunSummary aggregates one run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	ExitCode  int
	Finished  bool
	Documents int
	Failed    int
}

// NewStore opens (and if needed creates) the store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open runlog database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize runlog schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		exit_code INTEGER
	);
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		document TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error_code TEXT,
		attempts INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at) VALUES (?, ?)",
		runID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordDocument records one document outcome within a run.
func (s *Store) RecordDocument(ctx context.Context, rec DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (run_id, document, outcome, error_code, attempts, recorded_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.RunID, rec.Document, rec.Outcome, rec.ErrorCode, rec.Attempts, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert document record: %w", err)
	}
	return nil
}

// FinishRun records the terminal exit code of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, exit_code = ? WHERE run_id = ?",
		time.Now().Unix(), exitCode, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Summary returns the aggregate view of a run.
func (s *Store) Summary(ctx context.Context, runID string) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary RunSummary
	var startedAt int64
	var exitCode sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, started_at, exit_code FROM runs WHERE run_id = ?", runID,
	).Scan(&summary.RunID, &startedAt, &exitCode)
	if err != nil {
		return RunSummary{}, fmt.Errorf("query run %s: %w", runID, err)
	}
	summary.StartedAt = time.Unix(startedAt, 0)
	if exitCode.Valid {
		summary.ExitCode = int(exitCode.Int64)
		summary.Finished = true
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0) FROM documents WHERE run_id = ?",
		runID,
	).Scan(&summary.Documents, &summary.Failed)
	if err != nil {
		return RunSummary{}, fmt.Errorf("count documents for run %s: %w", runID, err)
	}
	return summary, nil
}

// Documents returns the recorded outcomes of a run in insertion order.
func (s *Store) Documents(ctx context.Context, runID string) ([]DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, document, outcome, COALESCE(error_code, ''), attempts FROM documents WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.RunID, &rec.Document, &rec.Outcome, &rec.ErrorCode, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("scan document record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
