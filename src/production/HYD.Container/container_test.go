package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Config"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	implementation "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Implementation"
)

func sqliteConfig(t *testing.T, legacy string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "container.db"),
		},
		Legacy:         config.LegacyLogConfig{Backend: legacy},
		SystemDeviceID: "esp32_main",
	}
}

func TestApiContainerWiresGatewaysOverSQLite(t *testing.T) {
	ctx := context.Background()
	ctr := NewApiContainerWithConfig(sqliteConfig(t, config.LegacyBackendSQL), logger.NewNopLogger())
	defer ctr.Shutdown(ctx)

	require.NoError(t, ctr.InitializeDatabase(ctx))

	_, dialect, err := ctr.GetDatabase()
	require.NoError(t, err)
	assert.Equal(t, implementation.SQLite, dialect)

	// disabled bridge is a no-op
	require.NoError(t, ctr.StartBridge(ctx))

	ingest, err := ctr.GetIngestGateway(ctx)
	require.NoError(t, err)
	dispatch, err := ctr.GetDispatchGateway(ctx)
	require.NoError(t, err)

	_, err = ingest.ReportSensors(ctx, gateway.SensorReport{DeviceID: "esp32_1", Room: "kitchen", Temperature: 21.5})
	require.NoError(t, err)

	rooms, err := dispatch.LatestPerRoom(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "kitchen", rooms[0].Room)

	legacy, err := dispatch.LatestLegacyReading(ctx)
	require.NoError(t, err)
	require.NotNil(t, legacy)
	assert.Equal(t, "21.5", legacy.Temp)

	status, ready := ctr.HealthCheck(ctx)
	assert.True(t, ready)
	assert.Equal(t, "ok", status["status"])

	again, err := ctr.GetIngestGateway(ctx)
	require.NoError(t, err)
	assert.Same(t, ingest, again)
}

func TestApiContainerLegacyDisabled(t *testing.T) {
	ctx := context.Background()
	ctr := NewApiContainerWithConfig(sqliteConfig(t, config.LegacyBackendNone), logger.NewNopLogger())
	defer ctr.Shutdown(ctx)
	require.NoError(t, ctr.InitializeDatabase(ctx))

	repos, err := ctr.GetRepositories(ctx)
	require.NoError(t, err)
	assert.IsType(t, implementation.NopLegacyReadingLog{}, repos.Legacy)
}

func TestApiContainerShutdownRunsCleanupInReverse(t *testing.T) {
	ctr := NewApiContainerWithConfig(sqliteConfig(t, config.LegacyBackendSQL), logger.NewNopLogger())

	var order []int
	ctr.AddCleanupFunc(func() error { order = append(order, 1); return nil })
	ctr.AddCleanupFunc(func() error { order = append(order, 2); return nil })

	require.NoError(t, ctr.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1}, order)

	// second shutdown has nothing left to run
	require.NoError(t, ctr.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1}, order)
}

func TestNotifierIncludesHub(t *testing.T) {
	ctr := NewApiContainerWithConfig(sqliteConfig(t, config.LegacyBackendNone), logger.NewNopLogger())
	defer ctr.Shutdown(context.Background())

	assert.NotNil(t, ctr.GetHub())
	assert.Same(t, ctr.GetHub(), ctr.GetHub())
	assert.NotNil(t, ctr.GetNotifier())
	assert.NotNil(t, ctr.GetRegistry())
}
