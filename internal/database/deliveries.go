package database

import (
	"database/sql"
	"fmt"
)

// Delivery records the Discord message sent for a run.
type Delivery struct {
	RunID       string
	ChannelID   string
	MessageID   string
	DeliveredAt string
}

// SaveDelivery records a successful delivery.
func (db *DB) SaveDelivery(runID, channelID, messageID string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO deliveries (run_id, channel_id, message_id) VALUES (?, ?, ?)",
		runID, channelID, messageID,
	)
	if err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}
	return nil
}

// GetDelivery returns the delivery for a run, or nil when the run was not
// delivered.
func (db *DB) GetDelivery(runID string) (*Delivery, error) {
	var d Delivery
	err := db.conn.QueryRow(
		"SELECT run_id, channel_id, message_id, delivered_at FROM deliveries WHERE run_id = ?", runID,
	).Scan(&d.RunID, &d.ChannelID, &d.MessageID, &d.DeliveredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading delivery: %w", err)
	}
	return &d, nil
}
