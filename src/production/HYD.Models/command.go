package hydmodels

import "time"

// ControlCommand is an actuator instruction queued by the dashboard.
// Processed only ever moves from false to true.
type ControlCommand struct {
	ID         int64     `json:"id" db:"id"`
	Room       string    `json:"room" db:"room"`
	DeviceType string    `json:"device_type" db:"device_type"`
	Action     string    `json:"action" db:"action"`
	Value      *int      `json:"value" db:"value"`
	Mode       string    `json:"mode" db:"mode"`
	Processed  bool      `json:"processed" db:"processed"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
