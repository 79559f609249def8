package interfaces

import (
	"context"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

type CommandRepository interface {
	Enqueue(ctx context.Context, c hydmodels.ControlCommand) (int64, error)

	// ClaimPending marks every unprocessed command as processed and returns them
	// oldest first. A command is returned by exactly one call.
	ClaimPending(ctx context.Context) ([]hydmodels.ControlCommand, error)
}
