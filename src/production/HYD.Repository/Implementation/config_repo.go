package implementation

import (
	"context"
	"database/sql"
	"time"
)

type SQLConfigRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLConfigRepository(db *sql.DB, dialect Dialect) *SQLConfigRepository {
	return &SQLConfigRepository{db: db, dialect: dialect}
}

// All returns the whole key/value table
func (r *SQLConfigRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT config_key, config_value FROM system_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		cfg[key] = value
	}
	return cfg, rows.Err()
}

func (r *SQLConfigRepository) Set(ctx context.Context, key, value string, at time.Time) error {
	query := r.dialect.Rebind(`
		INSERT INTO system_config (config_key, config_value, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT (config_key)
		DO UPDATE SET config_value = EXCLUDED.config_value, last_updated = EXCLUDED.last_updated
	`)
	_, err := r.db.ExecContext(ctx, query, key, value, dbTime(at))
	return err
}
