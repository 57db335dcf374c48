package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Analyzer document kinds stored per run.
const (
	DocBusyPeriods = "busy_periods"
	DocCatalog     = "catalog"
	DocHistory     = "history"
	DocPodcasts    = "podcasts"
	DocFeedback    = "feedback"
	DocSynthesis   = "synthesis"
)

// SaveDocument stores one analyzer document as JSON, replacing any earlier
// document of the same kind for the run.
func (db *DB) SaveDocument(runID, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s document: %w", kind, err)
	}
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO run_documents (run_id, kind, payload) VALUES (?, ?, ?)",
		runID, kind, string(raw),
	)
	if err != nil {
		return fmt.Errorf("saving %s document: %w", kind, err)
	}
	return nil
}

// GetDocument returns the raw JSON payload of one document, or nil when the
// run has no document of that kind.
func (db *DB) GetDocument(runID, kind string) (json.RawMessage, error) {
	var payload string
	err := db.conn.QueryRow(
		"SELECT payload FROM run_documents WHERE run_id = ? AND kind = ?",
		runID, kind,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s document: %w", kind, err)
	}
	return json.RawMessage(payload), nil
}

// ListDocumentKinds returns the document kinds stored for a run.
func (db *DB) ListDocumentKinds(runID string) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT kind FROM run_documents WHERE run_id = ? ORDER BY kind", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing document kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("scanning kind: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}
