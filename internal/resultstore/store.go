// Package resultstore persists collection matching results in SQLite.
package resultstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gcbaptista/go-titlematch/model"
)

// ErrRunNotFound is returned when a run identifier is unknown.
var ErrRunNotFound = errors.New("run not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// Fixed width so created_at sorts lexically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_runs (
    id                TEXT PRIMARY KEY,
    origin_dataset    TEXT NOT NULL,
    target_collection TEXT NOT NULL,
    created_at        TEXT NOT NULL,
    origin_count      INTEGER NOT NULL,
    matched_count     INTEGER NOT NULL,
    failure_count     INTEGER NOT NULL,
    settings_json     TEXT
);
CREATE TABLE IF NOT EXISTS match_origins (
    run_id      TEXT NOT NULL REFERENCES match_runs(id) ON DELETE CASCADE,
    origin_id   TEXT NOT NULL,
    match_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, origin_id)
);
CREATE TABLE IF NOT EXISTS match_results (
    run_id    TEXT NOT NULL REFERENCES match_runs(id) ON DELETE CASCADE,
    origin_id TEXT NOT NULL,
    rank      INTEGER NOT NULL,
    target_id TEXT NOT NULL,
    PRIMARY KEY (run_id, origin_id, rank)
);
CREATE TABLE IF NOT EXISTS match_failures (
    run_id    TEXT NOT NULL REFERENCES match_runs(id) ON DELETE CASCADE,
    origin_id TEXT NOT NULL,
    error     TEXT NOT NULL,
    PRIMARY KEY (run_id, origin_id)
);
CREATE INDEX IF NOT EXISTS idx_match_results_target ON match_results(target_id);
`

// Run summarizes one stored collection result.
type Run struct {
	ID               string    `json:"id"`
	OriginDataset    string    `json:"origin_dataset"`
	TargetCollection string    `json:"target_collection"`
	CreatedAt        time.Time `json:"created_at"`
	OriginCount      int       `json:"origin_count"`
	MatchedCount     int       `json:"matched_count"`
	FailureCount     int       `json:"failure_count"`
	SettingsJSON     string    `json:"settings_json,omitempty"` // Scorer and provider settings of the run
}

// Store manages result persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the results database and creates its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("ensure results directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// SaveRun stores result in a single transaction and returns the new run identifier.
// settingsJSON is stored verbatim for later inspection and may be empty.
func (s *Store) SaveRun(ctx context.Context, result *model.CollectionResult, settingsJSON string) (string, error) {
	if result == nil {
		return "", errors.New("result cannot be nil")
	}
	runID := uuid.New().String()
	createdAt := time.Now().UTC().Format(timestampLayout)

	err := retryOnBusy(ctx, func() error {
		return s.saveRunTx(ctx, runID, createdAt, result, settingsJSON)
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return runID, nil
}

func (s *Store) saveRunTx(ctx context.Context, runID, createdAt string, result *model.CollectionResult, settingsJSON string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO match_runs (id, origin_dataset, target_collection, created_at, origin_count, matched_count, failure_count, settings_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.OriginDataset, result.TargetCollection, createdAt,
		len(result.Matches)+len(result.Failures), result.MatchedCount(), len(result.Failures), nullableString(settingsJSON),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	originStmt, err := tx.PrepareContext(ctx, `INSERT INTO match_origins (run_id, origin_id, match_count) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer originStmt.Close()
	resultStmt, err := tx.PrepareContext(ctx, `INSERT INTO match_results (run_id, origin_id, rank, target_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer resultStmt.Close()

	for originID, targets := range result.Matches {
		if _, err = originStmt.ExecContext(ctx, runID, originID, len(targets)); err != nil {
			return fmt.Errorf("insert origin %s: %w", originID, err)
		}
		for rank, targetID := range targets {
			if _, err = resultStmt.ExecContext(ctx, runID, originID, rank, targetID); err != nil {
				return fmt.Errorf("insert match %s -> %s: %w", originID, targetID, err)
			}
		}
	}

	for originID, message := range result.Failures {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO match_failures (run_id, origin_id, error) VALUES (?, ?, ?)`,
			runID, originID, message,
		); err != nil {
			return fmt.Errorf("insert failure %s: %w", originID, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the summary of a run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, origin_dataset, target_collection, created_at, origin_count, matched_count, failure_count, settings_json
         FROM match_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. A limit of 0 or less lists all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, origin_dataset, target_collection, created_at, origin_count, matched_count, failure_count, settings_json
              FROM match_runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LoadResult rebuilds the collection result of a run.
func (s *Store) LoadResult(ctx context.Context, runID string) (*model.CollectionResult, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	result := model.NewCollectionResult(run.OriginDataset, run.TargetCollection)

	origins, err := s.db.QueryContext(ctx, `SELECT origin_id FROM match_origins WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("load origins: %w", err)
	}
	defer origins.Close()
	for origins.Next() {
		var originID string
		if err := origins.Scan(&originID); err != nil {
			return nil, err
		}
		result.Matches[originID] = []string{}
	}
	if err := origins.Err(); err != nil {
		return nil, err
	}

	matches, err := s.db.QueryContext(ctx,
		`SELECT origin_id, target_id FROM match_results WHERE run_id = ? ORDER BY origin_id, rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	defer matches.Close()
	for matches.Next() {
		var originID, targetID string
		if err := matches.Scan(&originID, &targetID); err != nil {
			return nil, err
		}
		result.Matches[originID] = append(result.Matches[originID], targetID)
	}
	if err := matches.Err(); err != nil {
		return nil, err
	}

	failures, err := s.db.QueryContext(ctx, `SELECT origin_id, error FROM match_failures WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	defer failures.Close()
	for failures.Next() {
		var originID, message string
		if err := failures.Scan(&originID, &message); err != nil {
			return nil, err
		}
		result.Failures[originID] = message
	}
	return result, failures.Err()
}

// OriginsMatching returns the origins of a run whose confident matches include targetID, sorted.
func (s *Store) OriginsMatching(ctx context.Context, runID, targetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_id FROM match_results WHERE run_id = ? AND target_id = ?`, runID, targetID)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var originID string
		if err := rows.Scan(&originID); err != nil {
			return nil, err
		}
		origins = append(origins, originID)
	}
	sort.Strings(origins)
	return origins, rows.Err()
}

// DeleteRun removes a run and all of its rows.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM match_runs WHERE id = ?`, runID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
		settings  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.OriginDataset, &run.TargetCollection, &createdAt,
		&run.OriginCount, &run.MatchedCount, &run.FailureCount, &settings); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of run %s: %w", run.ID, err)
	}
	run.CreatedAt = parsed
	run.SettingsJSON = settings.String
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
