package database

import (
	"database/sql"
	"fmt"
)

// Recommendation is the composed message for one run.
type Recommendation struct {
	ID              int64
	RunID           string
	MessageMarkdown string
	Method          string
	PickCount       int
	CreatedAt       string
}

// SaveRecommendation stores the composed message for a run, replacing any
// earlier one.
func (db *DB) SaveRecommendation(runID, markdown, method string, pickCount int) error {
	_, err := db.conn.Exec(
		`INSERT INTO recommendations (run_id, message_markdown, method, pick_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   message_markdown = excluded.message_markdown,
		   method = excluded.method,
		   pick_count = excluded.pick_count`,
		runID, markdown, method, pickCount,
	)
	if err != nil {
		return fmt.Errorf("saving recommendation: %w", err)
	}
	return nil
}

// GetRecommendation returns the recommendation for a run, or nil when none
// was composed.
func (db *DB) GetRecommendation(runID string) (*Recommendation, error) {
	var r Recommendation
	err := db.conn.QueryRow(
		`SELECT id, run_id, message_markdown, method, pick_count, created_at
		 FROM recommendations WHERE run_id = ?`, runID,
	).Scan(&r.ID, &r.RunID, &r.MessageMarkdown, &r.Method, &r.PickCount, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading recommendation: %w", err)
	}
	return &r, nil
}
