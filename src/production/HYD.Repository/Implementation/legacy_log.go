package implementation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

// SQLLegacyReadingLog writes the flat readings table next to the main schema
type SQLLegacyReadingLog struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLLegacyReadingLog(db *sql.DB, dialect Dialect) *SQLLegacyReadingLog {
	return &SQLLegacyReadingLog{db: db, dialect: dialect}
}

func (l *SQLLegacyReadingLog) Append(ctx context.Context, r hydmodels.LegacyReading) error {
	query := l.dialect.Rebind(`INSERT INTO readings (temp, hum, mot, created_at) VALUES (?, ?, ?, ?)`)

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := l.db.ExecContext(ctx, query, r.Temp, r.Hum, r.Mot, dbTime(created))
	return err
}

func (l *SQLLegacyReadingLog) Latest(ctx context.Context) (*hydmodels.LegacyReading, error) {
	query := `SELECT id, temp, hum, mot, created_at FROM readings ORDER BY id DESC LIMIT 1`

	var r hydmodels.LegacyReading
	var created scanTime
	err := l.db.QueryRowContext(ctx, query).Scan(&r.ID, &r.Temp, &r.Hum, &r.Mot, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.CreatedAt = created.Time
	return &r, nil
}

// NopLegacyReadingLog is used when LEGACY_LOG_BACKEND=none
type NopLegacyReadingLog struct{}

func (NopLegacyReadingLog) Append(context.Context, hydmodels.LegacyReading) error { return nil }

func (NopLegacyReadingLog) Latest(context.Context) (*hydmodels.LegacyReading, error) { return nil, nil }
