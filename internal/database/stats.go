package database

import "fmt"

// Stats summarizes the run archive for the status command and web UI.
type Stats struct {
	TotalRuns     int
	CompletedRuns int
	FailedRuns    int
	DeliveredRuns int
	LastRunDate   string
	LastRunStatus string
}

// GetStats aggregates archive counters.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(&s.TotalRuns, &s.CompletedRuns, &s.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&s.DeliveredRuns); err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}

	last, err := db.LatestRun()
	if err != nil {
		return nil, err
	}
	if last != nil {
		s.LastRunDate = last.RunDate
		s.LastRunStatus = last.Status
	}
	return s, nil
}
