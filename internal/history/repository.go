package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeLayout is fixed width so stored values sort lexically.
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Repository reads and writes the journal tables.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *Repository: Repository instance ready for use
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordConnect journals the start of a session.
func (r *Repository) RecordConnect(ctx context.Context, sessionID, deviceID, name string, at time.Time) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO cube_sessions (session_id, device_id, name, connected_at) VALUES (?, ?, ?, ?)",
		sessionID, deviceID, name, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("inserting cube session: %w", err)
	}
	return nil
}

// RecordDisconnect closes the most recent open journal entry for
// sessionID. closeErr is stored when the link did not close cleanly.
//
// Session identifiers restart with the process, so only an entry that is
// still open is touched. A missing entry is not an error.
func (r *Repository) RecordDisconnect(ctx context.Context, sessionID string, at time.Time, closeErr error) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	var reason sql.NullString
	if closeErr != nil {
		reason = sql.NullString{String: closeErr.Error(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE cube_sessions
		 SET disconnected_at = ?, disconnect_error = ?
		 WHERE id = (
		   SELECT MAX(id) FROM cube_sessions
		   WHERE session_id = ? AND disconnected_at IS NULL
		 )`,
		formatTime(at), reason, sessionID,
	)
	if err != nil {
		return fmt.Errorf("closing cube session: %w", err)
	}
	return nil
}

// CloseDangling marks every open entry as ended at the given time. It is
// called at startup for sessions left open by a previous process.
//
// Returns:
//   - int64: Number of entries closed
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) CloseDangling(ctx context.Context, at time.Time, reason string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE cube_sessions SET disconnected_at = ?, disconnect_error = ? WHERE disconnected_at IS NULL",
		formatTime(at), reason,
	)
	if err != nil {
		return 0, fmt.Errorf("closing dangling sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// RecordPosition journals one reading.
func (r *Repository) RecordPosition(ctx context.Context, rec PositionRecord) error {
	if rec.SessionID == "" {
		return ErrSessionIDRequired
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO position_readings (session_id, kind, x, y, angle, value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.SessionID, rec.Kind,
		nullInt(rec.X), nullInt(rec.Y), nullInt(rec.Angle), nullInt(rec.Value),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting position reading: %w", err)
	}
	return nil
}

// ListSessions returns journalled sessions, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, device_id, name, connected_at, disconnected_at, disconnect_error
		 FROM cube_sessions
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cube sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec            SessionRecord
			connectedAt    string
			disconnectedAt sql.NullString
			reason         sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.DeviceID, &rec.Name, &connectedAt, &disconnectedAt, &reason); err != nil {
			return nil, fmt.Errorf("scanning cube session: %w", err)
		}
		if rec.ConnectedAt, err = parseTime(connectedAt); err != nil {
			return nil, err
		}
		if disconnectedAt.Valid {
			t, err := parseTime(disconnectedAt.String)
			if err != nil {
				return nil, err
			}
			rec.DisconnectedAt = &t
		}
		rec.DisconnectError = reason.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cube sessions: %w", err)
	}
	return out, nil
}

// PositionHistory returns recent readings of one session, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sessionID: Session identifier (cube_<n>)
//   - limit: Maximum entries to return (default 50, max 500)
func (r *Repository) PositionHistory(ctx context.Context, sessionID string, limit int) ([]PositionRecord, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, kind, x, y, angle, value, created_at
		 FROM position_readings
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sessionID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying position readings: %w", err)
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var (
			rec                PositionRecord
			x, y, angle, value sql.NullInt64
			createdAt          string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Kind, &x, &y, &angle, &value, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning position reading: %w", err)
		}
		rec.X, rec.Y, rec.Angle, rec.Value = intPtr(x), intPtr(y), intPtr(angle), intPtr(value)
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating position readings: %w", err)
	}
	return out, nil
}

// Prune deletes readings older than olderThan and sessions that ended
// before the same cutoff. Open sessions are kept.
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := formatTime(time.Now().Add(-olderThan))

	var total int64
	for _, stmt := range []string{
		"DELETE FROM position_readings WHERE created_at < ?",
		"DELETE FROM cube_sessions WHERE disconnected_at IS NOT NULL AND disconnected_at < ?",
	} {
		result, err := r.db.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("history: empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
