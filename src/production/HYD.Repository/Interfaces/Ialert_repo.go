package interfaces

import (
	"context"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

type AlertRepository interface {
	Append(ctx context.Context, a hydmodels.SystemAlert) (int64, error)
	// List returns newest first; a nil resolved filter returns both states
	List(ctx context.Context, resolved *bool, limit int) ([]hydmodels.SystemAlert, error)
	// Resolve reports whether this call flipped the alert
	Resolve(ctx context.Context, id int64, at time.Time) (bool, error)
}
