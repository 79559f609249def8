package implementation

import (
	"context"
	"database/sql"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

const alertColumns = `id, device_id, alert_type, room, message, severity, resolved, created_at, resolved_at`

type SQLAlertRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLAlertRepository(db *sql.DB, dialect Dialect) *SQLAlertRepository {
	return &SQLAlertRepository{db: db, dialect: dialect}
}

func (r *SQLAlertRepository) Append(ctx context.Context, a hydmodels.SystemAlert) (int64, error) {
	query := r.dialect.Rebind(`
		INSERT INTO system_alerts (device_id, alert_type, room, message, severity, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
		RETURNING id
	`)

	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.DeviceID, a.AlertType, nullableString(a.Room), a.Message, a.Severity, dbTime(created),
	).Scan(&id)
	return id, err
}

func (r *SQLAlertRepository) List(ctx context.Context, resolved *bool, limit int) ([]hydmodels.SystemAlert, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if resolved == nil {
		query := r.dialect.Rebind(`SELECT ` + alertColumns + ` FROM system_alerts ORDER BY created_at DESC, id DESC LIMIT ?`)
		rows, err = r.db.QueryContext(ctx, query, limit)
	} else {
		query := r.dialect.Rebind(`SELECT ` + alertColumns + ` FROM system_alerts WHERE resolved = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
		rows, err = r.db.QueryContext(ctx, query, *resolved, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]hydmodels.SystemAlert, 0)
	for rows.Next() {
		var a hydmodels.SystemAlert
		var room sql.NullString
		var created, resolvedAt scanTime
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.AlertType, &room, &a.Message, &a.Severity,
			&a.Resolved, &created, &resolvedAt); err != nil {
			return nil, err
		}
		if room.Valid {
			a.Room = &room.String
		}
		a.CreatedAt = created.Time
		a.ResolvedAt = resolvedAt.Ptr()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Resolve flips resolved once; resolved_at is never overwritten by later calls
func (r *SQLAlertRepository) Resolve(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := r.dialect.Rebind(`UPDATE system_alerts SET resolved = TRUE, resolved_at = ? WHERE id = ? AND resolved = FALSE`)

	res, err := r.db.ExecContext(ctx, query, dbTime(at), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
