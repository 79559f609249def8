package interfaces

import (
	"context"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

// LegacyReadingLog keeps the flat readings log used by older consumers
type LegacyReadingLog interface {
	Append(ctx context.Context, r hydmodels.LegacyReading) error
	// Latest returns nil without error when the log is empty
	Latest(ctx context.Context) (*hydmodels.LegacyReading, error)
}
