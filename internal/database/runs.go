package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	RunDate    string // YYYY-MM-DD
	Status     string
	StartedAt  string
	FinishedAt *string
}

// CreateRun inserts a new run in the running state and returns its id.
func (db *DB) CreateRun(runDate string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, run_date, status) VALUES (?, ?, ?)",
		id, runDate, RunStatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run completed or failed.
func (db *DB) FinishRun(id, status string) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET status = ?, finished_at = datetime('now') WHERE id = ?",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	return nil
}

// GetRun fetches one run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT id, run_date, status, started_at, finished_at FROM runs WHERE id = ?", id,
	)
	return scanRun(row)
}

// LatestRun returns the most recently started run, or nil when none exist.
func (db *DB) LatestRun() (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT id, run_date, status, started_at, finished_at FROM runs ORDER BY started_at DESC, id DESC LIMIT 1",
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		"SELECT id, run_date, status, started_at, finished_at FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunDate, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.RunDate, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return &r, nil
}
