package verify

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	historyTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Attempt is one recorded live verification.
type Attempt struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message"`
	DataLength int       `json:"dataLength,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// HistoryStore persists live verification attempts.
// Cache hits are never recorded.
type HistoryStore interface {
	// Record stores one attempt.
	Record(ctx context.Context, outcome Outcome) error

	// List returns attempts for deviceID, newest first.
	List(ctx context.Context, deviceID string, limit int) ([]Attempt, error)
}

// SQLiteHistory implements HistoryStore using the verification_history table.
type SQLiteHistory struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteHistory creates a history store on an open, migrated database.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db, now: time.Now}
}

// Record inserts one attempt. A zero CheckedAt is stamped with the current time.
func (h *SQLiteHistory) Record(ctx context.Context, outcome Outcome) error {
	if outcome.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	checkedAt := outcome.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = h.now()
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO verification_history
		 (device_id, outcome, message, data_length, error, duration_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		outcome.DeviceID,
		outcome.Kind.String(),
		outcome.Message,
		outcome.DataLength,
		outcome.Error,
		outcome.Duration.Milliseconds(),
		checkedAt.UTC().Format(historyTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting verification history: %w", err)
	}
	return nil
}

// List returns recent attempts for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Normalized device identifier
//   - limit: Maximum entries to return (default 20, max 100)
func (h *SQLiteHistory) List(ctx context.Context, deviceID string, limit int) ([]Attempt, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, device_id, outcome, message, data_length, error, duration_ms, checked_at
		 FROM verification_history
		 WHERE device_id = ?
		 ORDER BY checked_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying verification history: %w", err)
	}
	defer rows.Close()

	attempts := make([]Attempt, 0, limit)
	for rows.Next() {
		var a Attempt
		var checkedAt string
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Outcome, &a.Message, &a.DataLength, &a.Error, &a.DurationMS, &checkedAt); err != nil {
			return nil, fmt.Errorf("scanning verification history: %w", err)
		}
		a.CheckedAt, err = parseHistoryTime(checkedAt)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verification history: %w", err)
	}

	return attempts, nil
}

// Prune deletes attempts older than olderThan and returns the number removed.
func (h *SQLiteHistory) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := h.now().UTC().Add(-olderThan).Format(historyTimeLayout)
	result, err := h.db.ExecContext(ctx,
		"DELETE FROM verification_history WHERE checked_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting verification history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parseHistoryTime parses a checked_at value written by Record or by SQLite's strftime.
func parseHistoryTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("checked_at is empty")
	}
	t, err := time.Parse(historyTimeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, ferr := time.Parse(time.RFC3339, value); ferr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing checked_at: %w", err)
}
