package gateway

import (
	"context"
	"time"

	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
	notifier "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Notifier"
	interfaces "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Interfaces"
)

// Repositories is the store handle set shared by both gateways
type Repositories struct {
	Telemetry interfaces.TelemetryRepository
	Commands  interfaces.CommandRepository
	Alerts    interfaces.AlertRepository
	System    interfaces.SystemRepository
	Config    interfaces.ConfigRepository
	Legacy    interfaces.LegacyReadingLog
}

// Deps wires a gateway. Only Repos is mandatory.
type Deps struct {
	Repos          Repositories
	Notifier       notifier.Notifier
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
	SystemDeviceID string
	// Location renders chart labels; defaults to UTC
	Location *time.Location
	Now      func() time.Time
}

type base struct {
	repos          Repositories
	notify         notifier.Notifier
	metrics        *metrics.Metrics
	log            *logger.Logger
	systemDeviceID string
	loc            *time.Location
	now            func() time.Time
}

func newBase(d Deps, component string) base {
	b := base{
		repos:          d.Repos,
		notify:         d.Notifier,
		metrics:        d.Metrics,
		log:            d.Logger,
		systemDeviceID: d.SystemDeviceID,
		loc:            d.Location,
		now:            d.Now,
	}
	if b.notify == nil {
		b.notify = notifier.Nop{}
	}
	if b.log == nil {
		b.log = logger.NewNopLogger()
	}
	b.log = b.log.WithComponent(component)
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func (b *base) publish(ctx context.Context, eventType, room string, payload interface{}) {
	b.notify.Publish(ctx, notifier.Event{Type: eventType, Room: room, Payload: payload, At: b.now().UTC()})
}

// getConfig backs the get_config action of both gateways
func (b *base) getConfig(ctx context.Context) (map[string]string, error) {
	cfg, err := b.repos.Config.All(ctx)
	if err != nil {
		return nil, storage("read config", err)
	}
	return cfg, nil
}
