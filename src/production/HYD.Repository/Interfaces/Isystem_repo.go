package interfaces

import (
	"context"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

type SystemRepository interface {
	UpsertStatus(ctx context.Context, s hydmodels.SystemStatus) error
	// GetStatus returns nil without error when the device never reported
	GetStatus(ctx context.Context, deviceID string) (*hydmodels.SystemStatus, error)

	AppendKeypadEvent(ctx context.Context, e hydmodels.KeypadEvent) (int64, error)
	KeypadEventsSince(ctx context.Context, since time.Time, limit int) ([]hydmodels.KeypadEvent, error)
}
