package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id              BIGSERIAL PRIMARY KEY,
		device_id       TEXT NOT NULL,
		room            TEXT NOT NULL,
		temperature     DOUBLE PRECISION NOT NULL DEFAULT 0,
		humidity        DOUBLE PRECISION NOT NULL DEFAULT 0,
		motion_detected BOOLEAN NOT NULL DEFAULT FALSE,
		light_level     INTEGER NOT NULL DEFAULT 0,
		current_reading DOUBLE PRECISION NOT NULL DEFAULT 0,
		recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS device_status (
		id           BIGSERIAL PRIMARY KEY,
		device_id    TEXT NOT NULL,
		room         TEXT NOT NULL,
		device_type  TEXT NOT NULL,
		status       BOOLEAN NOT NULL DEFAULT FALSE,
		brightness   INTEGER,
		mode         TEXT NOT NULL DEFAULT 'manual',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (room, device_type)
	)`,
	`CREATE TABLE IF NOT EXISTS control_commands (
		id          BIGSERIAL PRIMARY KEY,
		room        TEXT NOT NULL,
		device_type TEXT NOT NULL,
		action      TEXT NOT NULL,
		value       INTEGER,
		mode        TEXT NOT NULL DEFAULT 'manual',
		processed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS system_alerts (
		id          BIGSERIAL PRIMARY KEY,
		device_id   TEXT NOT NULL,
		alert_type  TEXT NOT NULL,
		room        TEXT,
		message     TEXT NOT NULL,
		severity    TEXT NOT NULL CHECK (severity IN ('info', 'warning', 'critical')),
		resolved    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS system_status (
		device_id TEXT PRIMARY KEY,
		status    BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS keypad_events (
		id          BIGSERIAL PRIMARY KEY,
		device_id   TEXT NOT NULL,
		key_pressed TEXT NOT NULL,
		action      TEXT NOT NULL,
		success     BOOLEAN,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS system_config (
		config_key   TEXT PRIMARY KEY,
		config_value TEXT NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		id         BIGSERIAL PRIMARY KEY,
		temp       TEXT NOT NULL DEFAULT '',
		hum        TEXT NOT NULL DEFAULT '',
		mot        TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_room_ts ON sensor_readings (room, recorded_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_control_commands_pending ON control_commands (created_at, id) WHERE processed = FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_system_alerts_created ON system_alerts (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_keypad_events_ts ON keypad_events (recorded_at DESC)`,
}

// SQLite has no BIGSERIAL or TIMESTAMPTZ; the column affinities below keep
// the same Go types on scan.
var sqliteReplacer = strings.NewReplacer(
	"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
	"DOUBLE PRECISION", "REAL",
	"TIMESTAMPTZ", "TIMESTAMP",
	"DEFAULT now()", "DEFAULT CURRENT_TIMESTAMP",
)

// SchemaStatements returns the DDL for the dialect in execution order
func SchemaStatements(d Dialect) []string {
	if d == Postgres {
		return postgresSchema
	}
	out := make([]string, len(postgresSchema))
	for i, stmt := range postgresSchema {
		out[i] = sqliteReplacer.Replace(stmt)
	}
	return out
}

// CreateTables creates every table and index if missing
func CreateTables(ctx context.Context, db *sql.DB, d Dialect) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range SchemaStatements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
