package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadApiConfig_SQLiteDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/hydrahome-test.db")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, LegacyBackendSQL, cfg.Legacy.Backend)
	assert.Equal(t, "esp32_main", cfg.SystemDeviceID)
	assert.Equal(t, "hydrahome", cfg.MQTT.TopicPrefix)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, cfg.Server.RequestTimeout, cfg.MQTT.OpTimeout)
	assert.Contains(t, cfg.GetDatabaseDSN(), "/tmp/hydrahome-test.db?")
	assert.Contains(t, cfg.GetDatabaseDSN(), "_time_format=sqlite")
}

func TestLoadApiConfig_PostgresRequiresCredentials(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")

	_, err := LoadApiConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestLoadApiConfig_PostgresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "hydra")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5433")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5433 user=hydra password=secret dbname=hydrahome sslmode=disable", cfg.GetDatabaseDSN())
}

func TestLoadApiConfig_MongoLegacyNeedsURI(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LEGACY_LOG_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "")

	_, err := LoadApiConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestLoadApiConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := LoadApiConfig()
	require.Error(t, err)
}

func TestGetMQTTBrokerURL(t *testing.T) {
	cfg := &Config{MQTT: MQTTConfig{BrokerHost: "broker", BrokerPort: 8883, UseTLS: true}}
	assert.Equal(t, "tcps://broker:8883", cfg.GetMQTTBrokerURL())

	cfg.MQTT.UseTLS = false
	assert.Equal(t, "tcp://broker:8883", cfg.GetMQTTBrokerURL())
}

func TestLoadNodeConfig(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://hub.local:8080/")
	t.Setenv("NODE_POLL_INTERVAL", "2s")
	t.Setenv("NODE_ROOM", "kitchen")

	cfg, err := LoadNodeConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://hub.local:8080", cfg.APIBaseURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "kitchen", cfg.Room)
}

func TestGetStringSlice(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a , ,http://b")
	assert.Equal(t, []string{"http://a", "http://b"}, getStringSlice("CORS_ALLOWED_ORIGINS", nil))
	assert.Equal(t, []string{"x"}, getStringSlice("UNSET_SLICE_KEY", []string{"x"}))
}
