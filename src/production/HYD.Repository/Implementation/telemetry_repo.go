package implementation

import (
	"context"
	"database/sql"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

const readingColumns = `id, device_id, room, temperature, humidity, motion_detected, light_level, current_reading, recorded_at`

const deviceStatusColumns = `id, device_id, room, device_type, status, brightness, mode, last_updated`

type SQLTelemetryRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLTelemetryRepository(db *sql.DB, dialect Dialect) *SQLTelemetryRepository {
	return &SQLTelemetryRepository{db: db, dialect: dialect}
}

func (r *SQLTelemetryRepository) InsertReading(ctx context.Context, rd hydmodels.SensorReading) (int64, error) {
	query := r.dialect.Rebind(`
		INSERT INTO sensor_readings (device_id, room, temperature, humidity, motion_detected, light_level, current_reading, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	ts := rd.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rd.DeviceID, rd.Room, rd.Temperature, rd.Humidity, rd.MotionDetected, rd.LightLevel, rd.CurrentReading, dbTime(ts),
	).Scan(&id)
	return id, err
}

// LatestPerRoom returns one reading per room: the greatest timestamp, ties
// broken by the highest id.
func (r *SQLTelemetryRepository) LatestPerRoom(ctx context.Context) ([]hydmodels.SensorReading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings r
		WHERE r.id = (
			SELECT r2.id FROM sensor_readings r2
			WHERE r2.room = r.room
			ORDER BY r2.recorded_at DESC, r2.id DESC
			LIMIT 1
		)
		ORDER BY r.room
	`
	return r.queryReadings(ctx, query)
}

// RoomHistory returns the newest readings of a room, newest first
func (r *SQLTelemetryRepository) RoomHistory(ctx context.Context, room string, limit int) ([]hydmodels.SensorReading, error) {
	query := r.dialect.Rebind(`
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE room = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`)
	return r.queryReadings(ctx, query, room, limit)
}

// ReadingsBetween returns readings of a room within [from, to], oldest first
func (r *SQLTelemetryRepository) ReadingsBetween(ctx context.Context, room string, from, to time.Time) ([]hydmodels.SensorReading, error) {
	query := r.dialect.Rebind(`
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE room = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC, id ASC
	`)
	return r.queryReadings(ctx, query, room, dbTime(from), dbTime(to))
}

func (r *SQLTelemetryRepository) queryReadings(ctx context.Context, query string, args ...interface{}) ([]hydmodels.SensorReading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]hydmodels.SensorReading, 0)
	for rows.Next() {
		var rd hydmodels.SensorReading
		var ts scanTime
		if err := rows.Scan(&rd.ID, &rd.DeviceID, &rd.Room, &rd.Temperature, &rd.Humidity,
			&rd.MotionDetected, &rd.LightLevel, &rd.CurrentReading, &ts); err != nil {
			return nil, err
		}
		rd.Timestamp = ts.Time
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// UpsertDeviceStatus keeps a single row per (room, device_type); last writer wins
func (r *SQLTelemetryRepository) UpsertDeviceStatus(ctx context.Context, s hydmodels.DeviceStatus) error {
	query := r.dialect.Rebind(`
		INSERT INTO device_status (device_id, room, device_type, status, brightness, mode, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (room, device_type)
		DO UPDATE SET
			device_id = EXCLUDED.device_id,
			status = EXCLUDED.status,
			brightness = EXCLUDED.brightness,
			mode = EXCLUDED.mode,
			last_updated = EXCLUDED.last_updated
	`)

	updated := s.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		s.DeviceID, s.Room, s.DeviceType, s.Status, nullableInt(s.Brightness), s.Mode, dbTime(updated))
	return err
}

func (r *SQLTelemetryRepository) ListDeviceStatuses(ctx context.Context) ([]hydmodels.DeviceStatus, error) {
	query := `SELECT ` + deviceStatusColumns + ` FROM device_status ORDER BY room, device_type`
	return r.queryStatuses(ctx, query)
}

func (r *SQLTelemetryRepository) DeviceStatusesForRoom(ctx context.Context, room string) ([]hydmodels.DeviceStatus, error) {
	query := r.dialect.Rebind(`SELECT ` + deviceStatusColumns + ` FROM device_status WHERE room = ? ORDER BY device_type`)
	return r.queryStatuses(ctx, query, room)
}

func (r *SQLTelemetryRepository) queryStatuses(ctx context.Context, query string, args ...interface{}) ([]hydmodels.DeviceStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]hydmodels.DeviceStatus, 0)
	for rows.Next() {
		var s hydmodels.DeviceStatus
		var brightness sql.NullInt64
		var updated scanTime
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.Room, &s.DeviceType, &s.Status, &brightness, &s.Mode, &updated); err != nil {
			return nil, err
		}
		if brightness.Valid {
			b := int(brightness.Int64)
			s.Brightness = &b
		}
		s.LastUpdated = updated.Time
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
