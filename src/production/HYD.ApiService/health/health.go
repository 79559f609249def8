package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	config "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Config"
	implementation "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Implementation"
)

// BrokerStatus is satisfied by the MQTT bridge
type BrokerStatus interface {
	IsConnected() bool
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	db      *sql.DB
	dialect implementation.Dialect
	broker  BrokerStatus
}

// NewHealthChecker creates a new health checker; broker may be nil when MQTT is disabled
func NewHealthChecker(db *sql.DB, dialect implementation.Dialect, broker BrokerStatus) *HealthChecker {
	return &HealthChecker{db: db, dialect: dialect, broker: broker}
}

// PingDatabase checks if the database connection is healthy
func (h *HealthChecker) PingDatabase(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// CheckDatabaseHealth pings and runs a trivial query
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.PingDatabase(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	return nil
}

// GetHealthStatus returns the readiness report and whether the service is ready
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	checks := make(map[string]interface{})
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}

	ready := true
	if err := h.CheckDatabaseHealth(ctx); err != nil {
		ready = false
		checks[h.dialect.String()] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		checks[h.dialect.String()] = map[string]interface{}{"status": "ok"}
	}

	// the broker is optional; a lost connection degrades but does not fail readiness
	overall := "ok"
	if h.broker != nil {
		if h.broker.IsConnected() {
			checks["mqtt"] = map[string]interface{}{"status": "ok"}
		} else {
			checks["mqtt"] = map[string]interface{}{"status": "disconnected"}
			overall = "degraded"
		}
	}
	if !ready {
		overall = "error"
	}
	status["status"] = overall
	return status, ready
}

// DatabaseManager handles schema operations
type DatabaseManager struct {
	db      *sql.DB
	dialect implementation.Dialect
}

func NewDatabaseManager(db *sql.DB, dialect implementation.Dialect) *DatabaseManager {
	return &DatabaseManager{db: db, dialect: dialect}
}

// CreateTables creates the required tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	return implementation.CreateTables(ctx, dm.db, dm.dialect)
}

// ConnectDatabase opens the configured database and verifies it within timeout
func ConnectDatabase(cfg *config.Config, timeout time.Duration) (*sql.DB, implementation.Dialect, error) {
	dialect, err := implementation.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open(dialect.DriverName(), cfg.GetDatabaseDSN())
	if err != nil {
		return nil, 0, fmt.Errorf("unable to open %s connection: %w", dialect, err)
	}

	if dialect == implementation.SQLite {
		// one writer; claims and upserts rely on it
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
		db.SetMaxIdleConns(cfg.Database.MinConns)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("unable to ping %s: %w", dialect, err)
	}

	return db, dialect, nil
}
