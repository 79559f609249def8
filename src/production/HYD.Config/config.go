package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported legacy reading log backends
const (
	LegacyBackendSQL   = "sql"
	LegacyBackendMongo = "mongo"
	LegacyBackendNone  = "none"
)

// Config holds all API service configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Legacy reading log configuration
	Legacy LegacyLogConfig `json:"legacy"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`

	// SystemDeviceID is the device whose heartbeat backs the dashboard system status
	SystemDeviceID string `json:"system_device_id"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver     string `json:"driver"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	DBName     string `json:"db_name"`
	SSLMode    string `json:"ssl_mode"`
	MaxConns   int    `json:"max_conns"`
	MinConns   int    `json:"min_conns"`
	SQLitePath string `json:"sqlite_path"`
}

// LegacyLogConfig selects where compatibility reading records go
type LegacyLogConfig struct {
	Backend    string `json:"backend"`
	MongoURI   string `json:"mongo_uri"`
	MongoDB    string `json:"mongo_db"`
	Collection string `json:"collection"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	Enabled     bool          `json:"enabled"`
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	ClientID    string        `json:"client_id"`
	TopicPrefix string        `json:"topic_prefix"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
	BatchSize   int           `json:"batch_size"`
	BatchWindow time.Duration `json:"batch_window"`
	// OpTimeout bounds each ingest operation taken from the queue
	OpTimeout   time.Duration `json:"op_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// NodeConfig holds configuration for the node simulator
type NodeConfig struct {
	APIBaseURL   string        `json:"api_base_url"`
	PollInterval time.Duration `json:"poll_interval"`
	DeviceID     string        `json:"device_id"`
	Room         string        `json:"room"`
	HTTPTimeout  time.Duration `json:"http_timeout"`
	Logging      LoggingConfig `json:"logging"`
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDuration("IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", ""),
			Password:   getEnv("POSTGRES_PASSWORD", ""),
			DBName:     getEnv("POSTGRES_DB", "hydrahome"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:   getInt("POSTGRES_MAX_CONNS", 25),
			MinConns:   getInt("POSTGRES_MIN_CONNS", 5),
			SQLitePath: getEnv("SQLITE_PATH", "hydrahome.db"),
		},
		Legacy: LegacyLogConfig{
			Backend:    strings.ToLower(getEnv("LEGACY_LOG_BACKEND", LegacyBackendSQL)),
			MongoURI:   getEnv("MONGODB_URI", ""),
			MongoDB:    getEnv("MONGO_DB", "hydrahome"),
			Collection: getEnv("MONGO_LEGACY_COLL", "readings"),
		},
		MQTT: MQTTConfig{
			Enabled:     getBool("MQTT_ENABLED", false),
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "hydrahome-server"),
			TopicPrefix: strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "hydrahome"), "/"),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			BatchSize:   getInt("BATCH_SIZE", 50),
			BatchWindow: getDuration("BATCH_WINDOW", 1*time.Second),
			OpTimeout:   getDuration("REQUEST_TIMEOUT", 5*time.Second),
		},
		Logging: loadLogging(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
		SystemDeviceID: getEnv("SYSTEM_DEVICE_ID", "esp32_main"),
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadNodeConfig loads configuration for the node simulator
func LoadNodeConfig() (*NodeConfig, error) {
	_ = godotenv.Load()

	config := &NodeConfig{
		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		PollInterval: getDuration("NODE_POLL_INTERVAL", 5*time.Second),
		DeviceID:     getEnv("NODE_DEVICE_ID", "esp32_main"),
		Room:         getEnv("NODE_ROOM", "living_room"),
		HTTPTimeout:  getDuration("NODE_HTTP_TIMEOUT", 5*time.Second),
		Logging:      loadLogging(),
	}

	if config.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("NODE_POLL_INTERVAL must be positive")
	}
	if config.DeviceID == "" || config.Room == "" {
		return nil, fmt.Errorf("NODE_DEVICE_ID and NODE_ROOM are required")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Legacy.Backend {
	case LegacyBackendSQL, LegacyBackendNone:
	case LegacyBackendMongo:
		if c.Legacy.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when LEGACY_LOG_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unsupported LEGACY_LOG_BACKEND %q", c.Legacy.Backend)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.SystemDeviceID == "" {
		log.Println("WARNING: SYSTEM_DEVICE_ID is empty; dashboard system status will always be unknown")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string for the configured driver
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
