// Package history keeps a local log of sync runs in a SQLite database next
// to the project. The log is informational; failures to record history must
// never fail a sync, so callers treat store errors as warnings.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records runs and their applied actions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and brings
// its schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// The CLI is single-process; one connection avoids SQLite lock churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// BeginRun records the start of a command invocation and returns its run.
func (s *Store) BeginRun(ctx context.Context, command string, universeID int64) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Command:    command,
		UniverseID: universeID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, universe_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.UniverseID, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RunSummary carries the final counters of a run.
type RunSummary struct {
	Created  int
	Updated  int
	Skipped  int
	Warnings int
}

// FinishRun marks a run completed or failed and stores its counters.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, errMsg *string, summary RunSummary) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?,
		    created = ?, updated = ?, skipped = ?, warnings = ?
		WHERE id = ?
	`, status, errMsg, now,
		summary.Created, summary.Updated, summary.Skipped, summary.Warnings, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// RecordEvent appends one applied action to a run.
func (s *Store) RecordEvent(ctx context.Context, runID, kind, key, action string, remoteID *int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, kind, key, action, remote_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, kind, key, action, remoteID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, command, universe_id, status, started_at, completed_at, error,
		       created, updated, skipped, warnings
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&run.ID, &run.Command, &run.UniverseID, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.Error,
		&run.Created, &run.Updated, &run.Skipped, &run.Warnings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, universe_id, status, started_at, completed_at, error,
		       created, updated, skipped, warnings
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID, &run.Command, &run.UniverseID, &run.Status,
			&run.StartedAt, &run.CompletedAt, &run.Error,
			&run.Created, &run.Updated, &run.Skipped, &run.Warnings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListEvents returns the applied actions of a run in execution order.
func (s *Store) ListEvents(ctx context.Context, runID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, key, action, remote_id, timestamp
		FROM events
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID, &event.RunID, &event.Kind, &event.Key,
			&event.Action, &event.RemoteID, &event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
