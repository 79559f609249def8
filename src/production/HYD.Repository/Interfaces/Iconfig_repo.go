package interfaces

import (
	"context"
	"time"
)

type ConfigRepository interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string, at time.Time) error
}
