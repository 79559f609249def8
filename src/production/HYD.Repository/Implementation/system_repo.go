package implementation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

type SQLSystemRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLSystemRepository(db *sql.DB, dialect Dialect) *SQLSystemRepository {
	return &SQLSystemRepository{db: db, dialect: dialect}
}

// UpsertStatus records a heartbeat
func (r *SQLSystemRepository) UpsertStatus(ctx context.Context, s hydmodels.SystemStatus) error {
	query := r.dialect.Rebind(`
		INSERT INTO system_status (device_id, status, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (device_id)
		DO UPDATE SET status = EXCLUDED.status, last_seen = EXCLUDED.last_seen
	`)

	seen := s.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query, s.DeviceID, s.Status, dbTime(seen))
	return err
}

func (r *SQLSystemRepository) GetStatus(ctx context.Context, deviceID string) (*hydmodels.SystemStatus, error) {
	query := r.dialect.Rebind(`SELECT device_id, status, last_seen FROM system_status WHERE device_id = ?`)

	var s hydmodels.SystemStatus
	var seen scanTime
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&s.DeviceID, &s.Status, &seen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.LastSeen = seen.Time
	return &s, nil
}

func (r *SQLSystemRepository) AppendKeypadEvent(ctx context.Context, e hydmodels.KeypadEvent) (int64, error) {
	query := r.dialect.Rebind(`
		INSERT INTO keypad_events (device_id, key_pressed, action, success, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query, e.DeviceID, e.KeyPressed, e.Action, nullableBool(e.Success), dbTime(ts)).Scan(&id)
	return id, err
}

// KeypadEventsSince returns events recorded at or after since, newest first
func (r *SQLSystemRepository) KeypadEventsSince(ctx context.Context, since time.Time, limit int) ([]hydmodels.KeypadEvent, error) {
	query := r.dialect.Rebind(`
		SELECT id, device_id, key_pressed, action, success, recorded_at
		FROM keypad_events
		WHERE recorded_at >= ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`)

	rows, err := r.db.QueryContext(ctx, query, dbTime(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]hydmodels.KeypadEvent, 0)
	for rows.Next() {
		var e hydmodels.KeypadEvent
		var success sql.NullBool
		var ts scanTime
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.KeyPressed, &e.Action, &success, &ts); err != nil {
			return nil, err
		}
		if success.Valid {
			ok := success.Bool
			e.Success = &ok
		}
		e.Timestamp = ts.Time
		events = append(events, e)
	}
	return events, rows.Err()
}
