package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.ApiService/health"
	config "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Config"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
	mqttbridge "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.MQTTBridge"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.NodeClient/client"
	notifier "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Notifier"
	implementation "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Implementation"
	interfaces "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Interfaces"
)

const connectTimeout = 20 * time.Second

// ApiContainer manages dependencies and their lifecycle for the API service
type ApiContainer struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sql.DB
	dialect implementation.Dialect

	// Health components
	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *notifier.Hub
	bridge   *mqttbridge.Bridge
	repos    *gateway.Repositories
	ingest   *gateway.Ingest
	dispatch *gateway.Dispatch

	mu sync.Mutex

	// Cleanup functions, run in reverse order
	cleanupFuncs []func() error
}

// NodeContainer manages dependencies for the node simulator
type NodeContainer struct {
	config *config.NodeConfig
	logger *logger.Logger
	client *client.APIClient
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*ApiContainer, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	return NewApiContainerWithConfig(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewApiContainerWithConfig builds a container around an already loaded configuration
func NewApiContainerWithConfig(cfg *config.Config, log *logger.Logger) *ApiContainer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &ApiContainer{
		config:   cfg,
		logger:   log,
		registry: registry,
		metrics:  metrics.NewMetrics(registry),
	}
}

// NewNodeContainer creates a new container for the node simulator
func NewNodeContainer() (*NodeContainer, error) {
	cfg, err := config.LoadNodeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load node configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging).WithService("node_simulator")

	return &NodeContainer{
		config: cfg,
		logger: log,
		client: client.NewAPIClient(cfg.APIBaseURL, cfg.HTTPTimeout, log),
	}, nil
}

// GetConfig returns the configuration
func (c *ApiContainer) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the node configuration
func (c *NodeContainer) GetConfig() *config.NodeConfig {
	return c.config
}

// GetLogger returns the logger
func (c *ApiContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *NodeContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetAPIClient returns the ingest API client
func (c *NodeContainer) GetAPIClient() *client.APIClient {
	return c.client
}

// GetRegistry returns the Prometheus registry served at /metrics
func (c *ApiContainer) GetRegistry() *prometheus.Registry {
	return c.registry
}

func (c *ApiContainer) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetDatabase returns the database connection and its dialect
func (c *ApiContainer) GetDatabase() (*sql.DB, implementation.Dialect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getDatabaseLocked()
}

func (c *ApiContainer) getDatabaseLocked() (*sql.DB, implementation.Dialect, error) {
	if c.db == nil {
		db, dialect, err := health.ConnectDatabase(c.config, connectTimeout)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.dialect = dialect
		c.logger.WithField("driver", dialect.String()).Info("Database connected")
	}
	return c.db, c.dialect, nil
}

// GetHealthChecker returns the health checker
func (c *ApiContainer) GetHealthChecker() (*health.HealthChecker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker != nil {
		return c.healthChecker, nil
	}

	db, dialect, err := c.getDatabaseLocked()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}

	// a nil *Bridge must not become a non-nil interface
	var broker health.BrokerStatus
	if c.bridge != nil {
		broker = c.bridge
	}
	c.healthChecker = health.NewHealthChecker(db, dialect, broker)
	return c.healthChecker, nil
}

// GetDatabaseManager returns the database manager
func (c *ApiContainer) GetDatabaseManager() (*health.DatabaseManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager != nil {
		return c.databaseManager, nil
	}

	db, dialect, err := c.getDatabaseLocked()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for database manager: %w", err)
	}
	c.databaseManager = health.NewDatabaseManager(db, dialect)
	return c.databaseManager, nil
}

// InitializeDatabase initializes the database and creates tables
func (c *ApiContainer) InitializeDatabase(ctx context.Context) error {
	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// GetRepositories builds the repository set on first use
func (c *ApiContainer) GetRepositories(ctx context.Context) (gateway.Repositories, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repos != nil {
		return *c.repos, nil
	}

	db, dialect, err := c.getDatabaseLocked()
	if err != nil {
		return gateway.Repositories{}, err
	}

	legacy, err := c.legacyLogLocked(ctx, db, dialect)
	if err != nil {
		return gateway.Repositories{}, err
	}

	repos := gateway.Repositories{
		Telemetry: implementation.NewSQLTelemetryRepository(db, dialect),
		Commands:  implementation.NewSQLCommandRepository(db, dialect),
		Alerts:    implementation.NewSQLAlertRepository(db, dialect),
		System:    implementation.NewSQLSystemRepository(db, dialect),
		Config:    implementation.NewSQLConfigRepository(db, dialect),
		Legacy:    legacy,
	}
	c.repos = &repos
	return repos, nil
}

func (c *ApiContainer) legacyLogLocked(ctx context.Context, db *sql.DB, dialect implementation.Dialect) (interfaces.LegacyReadingLog, error) {
	switch c.config.Legacy.Backend {
	case config.LegacyBackendNone:
		return implementation.NopLegacyReadingLog{}, nil
	case config.LegacyBackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(c.config.Legacy.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := mc.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = mc.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mc.Disconnect(ctx)
		})
		c.logger.WithField("db", c.config.Legacy.MongoDB).Info("Legacy reading log on MongoDB")
		return implementation.NewMongoLegacyReadingLog(mc.Database(c.config.Legacy.MongoDB).Collection(c.config.Legacy.Collection)), nil
	default:
		return implementation.NewSQLLegacyReadingLog(db, dialect), nil
	}
}

// GetHub returns the dashboard websocket hub
func (c *ApiContainer) GetHub() *notifier.Hub {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hub == nil {
		c.hub = notifier.NewHub(c.logger, c.metrics.NotificationDropped)
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			c.hub.Close()
			return nil
		})
	}
	return c.hub
}

// GetNotifier fans gateway events out to every configured sink
func (c *ApiContainer) GetNotifier() notifier.Notifier {
	sinks := notifier.Multi{c.GetHub()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge != nil {
		sinks = append(sinks, c.bridge)
	}
	return sinks
}

// GetIngestGateway returns the node-facing gateway
func (c *ApiContainer) GetIngestGateway(ctx context.Context) (*gateway.Ingest, error) {
	deps, err := c.gatewayDeps(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ingest == nil {
		c.ingest = gateway.NewIngest(deps)
	}
	return c.ingest, nil
}

// GetDispatchGateway returns the dashboard-facing gateway
func (c *ApiContainer) GetDispatchGateway(ctx context.Context) (*gateway.Dispatch, error) {
	deps, err := c.gatewayDeps(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dispatch == nil {
		c.dispatch = gateway.NewDispatch(deps)
	}
	return c.dispatch, nil
}

func (c *ApiContainer) gatewayDeps(ctx context.Context) (gateway.Deps, error) {
	repos, err := c.GetRepositories(ctx)
	if err != nil {
		return gateway.Deps{}, err
	}
	return gateway.Deps{
		Repos:          repos,
		Notifier:       c.GetNotifier(),
		Metrics:        c.metrics,
		Logger:         c.logger,
		SystemDeviceID: c.config.SystemDeviceID,
	}, nil
}

// StartBridge connects the MQTT bridge when enabled. It must run before the
// gateways are built so they publish to the broker too.
func (c *ApiContainer) StartBridge(ctx context.Context) error {
	if !c.config.MQTT.Enabled {
		c.logger.Info("MQTT bridge disabled")
		return nil
	}

	// the bridge feeds a gateway with no MQTT sink of its own, so reports
	// arriving over MQTT are not echoed back to the broker
	repos, err := c.GetRepositories(ctx)
	if err != nil {
		return err
	}
	ingest := gateway.NewIngest(gateway.Deps{
		Repos:          repos,
		Notifier:       c.GetHub(),
		Metrics:        c.metrics,
		Logger:         c.logger,
		SystemDeviceID: c.config.SystemDeviceID,
	})

	bridge := mqttbridge.New(c.config.MQTT, c.config.GetMQTTBrokerURL(), ingest, c.logger, c.metrics)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT bridge: %w", err)
	}

	c.mu.Lock()
	c.bridge = bridge
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		bridge.Stop()
		return nil
	})
	c.mu.Unlock()
	return nil
}

// HealthCheck performs a comprehensive health check
func (c *ApiContainer) HealthCheck(ctx context.Context) (map[string]interface{}, bool) {
	healthChecker, err := c.GetHealthChecker()
	if err != nil {
		return map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}, false
	}
	return healthChecker.GetHealthStatus(ctx)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *ApiContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	db := c.db
	c.db = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	if db != nil {
		if err := db.Close(); err != nil {
			c.logger.ErrorWithError(err, "Error closing database connection")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// AddCleanupFunc adds a cleanup function
func (c *ApiContainer) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the node container
func (c *NodeContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down node container...")
	c.logger.Info("Node container shutdown complete")
	return nil
}
