package implementation

import (
	"context"
	"database/sql"
	"sort"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

const commandColumns = `id, room, device_type, action, value, mode, processed, created_at`

// Postgres claims through row locks; SKIP LOCKED lets concurrent pollers
// partition the pending set instead of blocking on each other.
const postgresClaimQuery = `
	UPDATE control_commands
	SET processed = TRUE
	WHERE processed = FALSE AND id IN (
		SELECT id FROM control_commands
		WHERE processed = FALSE
		ORDER BY created_at, id
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + commandColumns

// SQLite runs the whole statement under its database write lock
const sqliteClaimQuery = `
	UPDATE control_commands
	SET processed = TRUE
	WHERE processed = FALSE
	RETURNING ` + commandColumns

type SQLCommandRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLCommandRepository(db *sql.DB, dialect Dialect) *SQLCommandRepository {
	return &SQLCommandRepository{db: db, dialect: dialect}
}

func (r *SQLCommandRepository) Enqueue(ctx context.Context, c hydmodels.ControlCommand) (int64, error) {
	query := r.dialect.Rebind(`
		INSERT INTO control_commands (room, device_type, action, value, mode, processed, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
		RETURNING id
	`)

	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		c.Room, c.DeviceType, c.Action, nullableInt(c.Value), c.Mode, dbTime(created),
	).Scan(&id)
	return id, err
}

// ClaimPending flips every unprocessed command to processed in a single
// statement and returns the claimed rows ordered by (created_at, id).
func (r *SQLCommandRepository) ClaimPending(ctx context.Context) ([]hydmodels.ControlCommand, error) {
	query := sqliteClaimQuery
	if r.dialect == Postgres {
		query = postgresClaimQuery
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commands := make([]hydmodels.ControlCommand, 0)
	for rows.Next() {
		var c hydmodels.ControlCommand
		var value sql.NullInt64
		var created scanTime
		if err := rows.Scan(&c.ID, &c.Room, &c.DeviceType, &c.Action, &value, &c.Mode, &c.Processed, &created); err != nil {
			return nil, err
		}
		if value.Valid {
			v := int(value.Int64)
			c.Value = &v
		}
		c.CreatedAt = created.Time
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING carries no ordering guarantee
	sort.SliceStable(commands, func(i, j int) bool {
		if !commands[i].CreatedAt.Equal(commands[j].CreatedAt) {
			return commands[i].CreatedAt.Before(commands[j].CreatedAt)
		}
		return commands[i].ID < commands[j].ID
	})
	return commands, nil
}
