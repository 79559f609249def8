package interfaces

import (
	"context"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

// TelemetryRepository stores sensor readings and actuator state
type TelemetryRepository interface {
	// Readings are append-only
	InsertReading(ctx context.Context, r hydmodels.SensorReading) (int64, error)
	LatestPerRoom(ctx context.Context) ([]hydmodels.SensorReading, error)
	RoomHistory(ctx context.Context, room string, limit int) ([]hydmodels.SensorReading, error)
	ReadingsBetween(ctx context.Context, room string, from, to time.Time) ([]hydmodels.SensorReading, error)

	// Device status is upserted on (room, device_type)
	UpsertDeviceStatus(ctx context.Context, s hydmodels.DeviceStatus) error
	ListDeviceStatuses(ctx context.Context) ([]hydmodels.DeviceStatus, error)
	DeviceStatusesForRoom(ctx context.Context, room string) ([]hydmodels.DeviceStatus, error)
}
