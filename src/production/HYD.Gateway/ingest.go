package gateway

import (
	"context"
	"strconv"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
	notifier "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Notifier"
)

// MaxClockSkew is how far past server time a node supplied timestamp may be.
// Later readings would hold the room's latest slot until real time caught up.
const MaxClockSkew = 5 * time.Minute

// Ingest implements the node-facing operations
type Ingest struct {
	base
}

func NewIngest(d Deps) *Ingest {
	return &Ingest{base: newBase(d, "ingest_gateway")}
}

// ReportSensors stores one reading, then mirrors it into the legacy log.
// The two writes are independent; a legacy failure is only logged.
func (g *Ingest) ReportSensors(ctx context.Context, r SensorReport) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	reading := hydmodels.SensorReading{
		DeviceID:       r.DeviceID,
		Room:           r.Room,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		MotionDetected: r.MotionDetected,
		LightLevel:     r.LightLevel,
		CurrentReading: r.CurrentReading,
		Timestamp:      g.now(),
	}
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		if r.Timestamp.After(reading.Timestamp.Add(MaxClockSkew)) {
			return 0, invalid("timestamp", "is more than "+MaxClockSkew.String()+" ahead of server time")
		}
		reading.Timestamp = *r.Timestamp
	}

	id, err := g.repos.Telemetry.InsertReading(ctx, reading)
	if err != nil {
		return 0, storage("insert sensor reading", err)
	}
	reading.ID = id

	if g.repos.Legacy != nil {
		legacy := hydmodels.LegacyReading{
			Temp:      strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			Hum:       strconv.FormatFloat(r.Humidity, 'f', -1, 64),
			Mot:       boolDigit(r.MotionDetected),
			CreatedAt: reading.Timestamp,
		}
		if err := g.repos.Legacy.Append(ctx, legacy); err != nil {
			g.log.WithError(err).WithFields(map[string]interface{}{
				"reading_id": id,
				"device_id":  r.DeviceID,
				"room":       r.Room,
			}).Warn("Legacy reading log append failed")
		}
	}

	g.publish(ctx, notifier.EventSensorReported, reading.Room, reading)
	return id, nil
}

// ReportDeviceStatus upserts on (room, device_type)
func (g *Ingest) ReportDeviceStatus(ctx context.Context, r DeviceStatusReport) error {
	if err := r.Validate(); err != nil {
		return err
	}

	status := hydmodels.DeviceStatus{
		DeviceID:    r.DeviceID,
		Room:        r.Room,
		DeviceType:  r.DeviceType,
		Status:      r.Status,
		Brightness:  r.Brightness,
		Mode:        r.Mode,
		LastUpdated: g.now(),
	}
	if err := g.repos.Telemetry.UpsertDeviceStatus(ctx, status); err != nil {
		return storage("upsert device status", err)
	}

	g.publish(ctx, notifier.EventDeviceStatus, status.Room, status)
	return nil
}

// PollCommands claims every pending command. An empty queue is a normal result.
func (g *Ingest) PollCommands(ctx context.Context) ([]hydmodels.ControlCommand, error) {
	commands, err := g.repos.Commands.ClaimPending(ctx)
	if err != nil {
		return nil, storage("claim commands", err)
	}
	g.metrics.CommandsClaimed(len(commands))
	if commands == nil {
		commands = []hydmodels.ControlCommand{}
	}
	return commands, nil
}

func (g *Ingest) ReportAlert(ctx context.Context, r AlertReport) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	alert := hydmodels.SystemAlert{
		DeviceID:  r.DeviceID,
		AlertType: r.AlertType,
		Room:      r.Room,
		Message:   r.Message,
		Severity:  r.Severity,
		CreatedAt: g.now(),
	}
	id, err := g.repos.Alerts.Append(ctx, alert)
	if err != nil {
		return 0, storage("append alert", err)
	}
	alert.ID = id
	g.metrics.AlertRaised(alert.Severity)

	room := ""
	if alert.Room != nil {
		room = *alert.Room
	}
	g.publish(ctx, notifier.EventAlertRaised, room, alert)
	return id, nil
}

func (g *Ingest) GetConfig(ctx context.Context) (map[string]string, error) {
	return g.getConfig(ctx)
}

// ReportSystemStatus records a heartbeat
func (g *Ingest) ReportSystemStatus(ctx context.Context, r SystemStatusReport) error {
	if err := r.Validate(); err != nil {
		return err
	}
	status := hydmodels.SystemStatus{DeviceID: r.DeviceID, Status: r.Status, LastSeen: g.now()}
	if err := g.repos.System.UpsertStatus(ctx, status); err != nil {
		return storage("upsert system status", err)
	}
	return nil
}

func (g *Ingest) ReportKeypadEvent(ctx context.Context, r KeypadReport) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	event := hydmodels.KeypadEvent{
		DeviceID:   r.DeviceID,
		KeyPressed: r.Key,
		Action:     r.Action,
		Success:    r.Success,
		Timestamp:  g.now(),
	}
	id, err := g.repos.System.AppendKeypadEvent(ctx, event)
	if err != nil {
		return 0, storage("append keypad event", err)
	}
	event.ID = id

	g.publish(ctx, notifier.EventKeypad, "", event)
	return id, nil
}

// AppendLegacyReading accepts the flat triple from nodes that predate sensor_data
func (g *Ingest) AppendLegacyReading(ctx context.Context, r LegacyReport) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if g.repos.Legacy == nil {
		return nil
	}
	err := g.repos.Legacy.Append(ctx, hydmodels.LegacyReading{Temp: r.Temp, Hum: r.Hum, Mot: r.Mot, CreatedAt: g.now()})
	if err != nil {
		return storage("append legacy reading", err)
	}
	return nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
