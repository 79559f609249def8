package implementation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresClaimUsesSkipLocked(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLCommandRepository(db, Postgres)

	rows := sqlmock.NewRows([]string{"id", "room", "device_type", "action", "value", "mode", "processed", "created_at"}).
		AddRow(int64(7), "bedroom", "light", "on", int64(180), "manual", true, t0.Add(time.Second)).
		AddRow(int64(3), "kitchen", "fan", "off", nil, "auto", true, t0)

	mock.ExpectQuery(`(?s)UPDATE control_commands\s+SET processed = TRUE\s+WHERE processed = FALSE AND id IN \(.*FOR UPDATE SKIP LOCKED\s*\)\s*RETURNING`).
		WillReturnRows(rows)

	claimed, err := repo.ClaimPending(context.Background())
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// re-sorted by created_at
	assert.Equal(t, int64(3), claimed[0].ID)
	assert.Nil(t, claimed[0].Value)
	assert.Equal(t, int64(7), claimed[1].ID)
	require.NotNil(t, claimed[1].Value)
	assert.Equal(t, 180, *claimed[1].Value)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimEmpty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLCommandRepository(db, Postgres)

	mock.ExpectQuery(`UPDATE control_commands`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room", "device_type", "action", "value", "mode", "processed", "created_at"}))

	claimed, err := repo.ClaimPending(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, claimed)
	assert.Empty(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueRebindsPlaceholders(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLCommandRepository(db, Postgres)

	mock.ExpectQuery(`(?s)INSERT INTO control_commands .*\s+VALUES \(\$1, \$2, \$3, \$4, \$5, FALSE, \$6\)\s+RETURNING id`).
		WithArgs("bedroom", "light", "on", int64(180), "manual", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.Enqueue(context.Background(), hydmodels.ControlCommand{Room: "bedroom", DeviceType: "light", Action: "on", Value: intPtr(180), Mode: "manual"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertDeviceStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLTelemetryRepository(db, Postgres)

	mock.ExpectExec(`(?s)INSERT INTO device_status .*\s+ON CONFLICT \(room, device_type\)\s+DO UPDATE SET`).
		WithArgs("n1", "kitchen", "fan", true, nil, "manual", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertDeviceStatus(context.Background(), hydmodels.DeviceStatus{DeviceID: "n1", Room: "kitchen", DeviceType: "fan", Status: true, Mode: "manual"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveAlertOnlyUnresolved(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLAlertRepository(db, Postgres)

	mock.ExpectExec(`UPDATE system_alerts SET resolved = TRUE, resolved_at = \$1 WHERE id = \$2 AND resolved = FALSE`).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.Resolve(context.Background(), 5, t0)
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAlertsFiltered(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLAlertRepository(db, Postgres)

	resolvedAt := t0.Add(time.Minute)
	rows := sqlmock.NewRows([]string{"id", "device_id", "alert_type", "room", "message", "severity", "resolved", "created_at", "resolved_at"}).
		AddRow(int64(2), "n1", "smoke", "kitchen", "smoke", "critical", true, t0, resolvedAt)

	mock.ExpectQuery(`FROM system_alerts WHERE resolved = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs(true, 20).
		WillReturnRows(rows)

	resolved := true
	alerts, err := repo.List(context.Background(), &resolved, 20)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.NotNil(t, alerts[0].ResolvedAt)
	assert.True(t, resolvedAt.Equal(*alerts[0].ResolvedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetStatusAbsent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLSystemRepository(db, Postgres)

	mock.ExpectQuery(`SELECT device_id, status, last_seen FROM system_status WHERE device_id = \$1`).
		WithArgs("esp32_main").
		WillReturnError(sql.ErrNoRows)

	status, err := repo.GetStatus(context.Background(), "esp32_main")
	require.NoError(t, err)
	assert.Nil(t, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageFailureSurfaces(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSQLConfigRepository(db, Postgres)

	mock.ExpectQuery(`SELECT config_key, config_value FROM system_config`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.All(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaStatementsPerDialect(t *testing.T) {
	pg := SchemaStatements(Postgres)
	lite := SchemaStatements(SQLite)
	require.Equal(t, len(pg), len(lite))

	assert.Contains(t, pg[0], "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, lite[0], "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, lite[0], "TIMESTAMPTZ")
	assert.Contains(t, pg[1], "UNIQUE (room, device_type)")
}
