package notifier

import (
	"context"
	"time"
)

// Event types pushed to dashboards and nodes
const (
	EventSensorReported = "sensor_reported"
	EventDeviceStatus   = "device_status"
	EventCommandQueued  = "command_queued"
	EventAlertRaised    = "alert_raised"
	EventAlertResolved  = "alert_resolved"
	EventConfigUpdated  = "config_updated"
	EventKeypad         = "keypad_event"
)

// Event is a push hint. Consumers still read state through the gateways.
type Event struct {
	Type    string      `json:"type"`
	Room    string      `json:"room,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Notifier delivers events best effort. Publish must not block the caller
// on slow consumers and never reports failure.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// DropFunc is told which sink discarded an event
type DropFunc func(sink string)

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Multi fans an event out to several notifiers
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Publish(ctx, e)
		}
	}
}
