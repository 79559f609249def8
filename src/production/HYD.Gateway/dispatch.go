package gateway

import (
	"context"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
	notifier "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Notifier"
)

// Query bounds for dashboard reads
const (
	RoomHistoryLimit = 10

	DefaultAlertLimit = 20
	MinAlertLimit     = 1
	MaxAlertLimit     = 50

	DefaultChartHours = 24
	MinChartHours     = 1
	MaxChartHours     = 168

	DefaultKeypadWindow = 30
	MinKeypadWindow     = 1
	MaxKeypadWindow     = 3600
	KeypadEventLimit    = 50
)

// Dispatch implements the dashboard-facing operations
type Dispatch struct {
	base
}

func NewDispatch(d Deps) *Dispatch {
	return &Dispatch{base: newBase(d, "dispatch_gateway")}
}

// LatestPerRoom returns one snapshot per room with its light and fan state
func (g *Dispatch) LatestPerRoom(ctx context.Context) ([]hydmodels.RoomSnapshot, error) {
	readings, err := g.repos.Telemetry.LatestPerRoom(ctx)
	if err != nil {
		return nil, storage("latest readings", err)
	}
	statuses, err := g.repos.Telemetry.ListDeviceStatuses(ctx)
	if err != nil {
		return nil, storage("list device status", err)
	}

	snapshots := make([]hydmodels.RoomSnapshot, 0, len(readings))
	for _, r := range readings {
		snapshots = append(snapshots, hydmodels.NewRoomSnapshot(r, statuses))
	}
	return snapshots, nil
}

// RoomDetail returns a room's latest reading, devices and recent history.
// An unknown room yields an empty detail, not an error.
func (g *Dispatch) RoomDetail(ctx context.Context, room string) (hydmodels.RoomDetail, error) {
	trim(&room)
	if room == "" {
		return hydmodels.RoomDetail{}, invalid("room", "is required")
	}

	history, err := g.repos.Telemetry.RoomHistory(ctx, room, RoomHistoryLimit)
	if err != nil {
		return hydmodels.RoomDetail{}, storage("room history", err)
	}
	devices, err := g.repos.Telemetry.DeviceStatusesForRoom(ctx, room)
	if err != nil {
		return hydmodels.RoomDetail{}, storage("room device status", err)
	}

	detail := hydmodels.RoomDetail{Room: room, Devices: devices, History: history}
	if detail.Devices == nil {
		detail.Devices = []hydmodels.DeviceStatus{}
	}
	if detail.History == nil {
		detail.History = []hydmodels.SensorReading{}
	}
	if len(history) > 0 {
		current := history[0]
		detail.Current = &current
	}
	return detail, nil
}

// EnqueueCommand is the only write path for actuation intent
func (g *Dispatch) EnqueueCommand(ctx context.Context, r CommandRequest) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	cmd := hydmodels.ControlCommand{
		Room:       r.Room,
		DeviceType: r.DeviceType,
		Action:     r.Action,
		Value:      r.Value,
		Mode:       r.Mode,
		CreatedAt:  g.now(),
	}
	id, err := g.repos.Commands.Enqueue(ctx, cmd)
	if err != nil {
		return 0, storage("enqueue command", err)
	}
	cmd.ID = id
	g.metrics.CommandQueued()

	g.publish(ctx, notifier.EventCommandQueued, cmd.Room, cmd)
	return id, nil
}

// ListAlerts returns alerts newest first; limit is clamped, 0 means default
func (g *Dispatch) ListAlerts(ctx context.Context, resolved *bool, limit int) ([]hydmodels.SystemAlert, error) {
	if limit == 0 {
		limit = DefaultAlertLimit
	}
	limit = clamp(limit, MinAlertLimit, MaxAlertLimit)

	alerts, err := g.repos.Alerts.List(ctx, resolved, limit)
	if err != nil {
		return nil, storage("list alerts", err)
	}
	if alerts == nil {
		alerts = []hydmodels.SystemAlert{}
	}
	return alerts, nil
}

// ResolveAlert reports whether this call resolved the alert. Unknown or
// already resolved ids are a silent no-op.
func (g *Dispatch) ResolveAlert(ctx context.Context, r ResolveRequest) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	resolved, err := g.repos.Alerts.Resolve(ctx, r.AlertID, g.now())
	if err != nil {
		return false, storage("resolve alert", err)
	}
	if resolved {
		g.publish(ctx, notifier.EventAlertResolved, "", map[string]int64{"alert_id": r.AlertID})
	}
	return resolved, nil
}

// ChartSeries projects a room's readings within the last hours, oldest first
func (g *Dispatch) ChartSeries(ctx context.Context, room string, hours int) ([]hydmodels.ChartPoint, error) {
	trim(&room)
	if room == "" {
		return nil, invalid("room", "is required")
	}
	if hours == 0 {
		hours = DefaultChartHours
	}
	hours = clamp(hours, MinChartHours, MaxChartHours)

	to := g.now()
	from := to.Add(-time.Duration(hours) * time.Hour)
	readings, err := g.repos.Telemetry.ReadingsBetween(ctx, room, from, to)
	if err != nil {
		return nil, storage("chart readings", err)
	}

	points := make([]hydmodels.ChartPoint, 0, len(readings))
	for _, r := range readings {
		points = append(points, hydmodels.ChartPoint{
			Label:       r.Timestamp.In(g.loc).Format("15:04"),
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			LightLevel:  r.LightLevel,
			Timestamp:   r.Timestamp,
		})
	}
	return points, nil
}

func (g *Dispatch) GetConfig(ctx context.Context) (map[string]string, error) {
	return g.getConfig(ctx)
}

// UpdateConfig upserts a single key
func (g *Dispatch) UpdateConfig(ctx context.Context, r ConfigUpdate) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := g.repos.Config.Set(ctx, r.Key, r.Value, g.now()); err != nil {
		return storage("update config", err)
	}
	g.publish(ctx, notifier.EventConfigUpdated, "", map[string]string{"key": r.Key, "value": r.Value})
	return nil
}

// SystemStatus reports the heartbeat of deviceID, or of the configured
// system device when empty. No heartbeat yet is reported as off and unknown.
func (g *Dispatch) SystemStatus(ctx context.Context, deviceID string) (hydmodels.SystemStatusView, error) {
	trim(&deviceID)
	if deviceID == "" {
		deviceID = g.systemDeviceID
	}
	if deviceID == "" {
		return hydmodels.SystemStatusView{}, invalid("device_id", "is required")
	}

	status, err := g.repos.System.GetStatus(ctx, deviceID)
	if err != nil {
		return hydmodels.SystemStatusView{}, storage("read system status", err)
	}

	view := hydmodels.SystemStatusView{DeviceID: deviceID}
	if status != nil {
		seen := status.LastSeen
		view.Status = status.Status
		view.LastSeen = &seen
		view.Known = true
	}
	return view, nil
}

// KeypadEvents returns events from the last sinceSeconds, newest first
func (g *Dispatch) KeypadEvents(ctx context.Context, sinceSeconds int) ([]hydmodels.KeypadEvent, error) {
	if sinceSeconds == 0 {
		sinceSeconds = DefaultKeypadWindow
	}
	sinceSeconds = clamp(sinceSeconds, MinKeypadWindow, MaxKeypadWindow)

	since := g.now().Add(-time.Duration(sinceSeconds) * time.Second)
	events, err := g.repos.System.KeypadEventsSince(ctx, since, KeypadEventLimit)
	if err != nil {
		return nil, storage("keypad events", err)
	}
	if events == nil {
		events = []hydmodels.KeypadEvent{}
	}
	return events, nil
}

// LatestLegacyReading returns nil when the legacy log is empty or disabled
func (g *Dispatch) LatestLegacyReading(ctx context.Context) (*hydmodels.LegacyReading, error) {
	if g.repos.Legacy == nil {
		return nil, nil
	}
	r, err := g.repos.Legacy.Latest(ctx)
	if err != nil {
		return nil, storage("latest legacy reading", err)
	}
	return r, nil
}
