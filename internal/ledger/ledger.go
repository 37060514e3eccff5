// Package ledger keeps an append-only history of reconcile runs.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
)

// Entry represents a single run in the ledger
type Entry struct {
	ID        int64          `json:"id"`
	RunID     string         `json:"run_id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Username  string         `json:"username"`
	State     string         `json:"state"`
	CheckMode bool           `json:"check_mode"`
	Changed   bool           `json:"changed"`
	Error     string         `json:"error,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"` // Extra run details such as the key fingerprint
}

// Ledger provides append-only run logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append records e. Timestamp is filled in when zero.
func (l *Ledger) Append(e *Entry) error {
	var payloadJSON []byte
	var err error

	if e.Payload != nil {
		payloadJSON, err = json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	result, err := l.db.Exec(`
		INSERT INTO run_ledger (run_id, event_type, timestamp, username, state, check_mode, changed, error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, string(e.EventType), ts.UTC().Unix(), e.Username, e.State, e.CheckMode, e.Changed, errText, string(payloadJSON))
	if err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// Recent returns the latest runs, newest first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, run_id, event_type, timestamp, username, state, check_mode, changed, error, payload
		FROM run_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByUsername returns the latest runs for one account, newest first
func (l *Ledger) GetByUsername(username string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, run_id, event_type, timestamp, username, state, check_mode, changed, error, payload
		FROM run_ledger
		WHERE username = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM run_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var errText, payloadStr sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.EventType, &timestamp, &entry.Username, &entry.State,
			&entry.CheckMode, &entry.Changed, &errText, &payloadStr,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if errText.Valid {
			entry.Error = errText.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
