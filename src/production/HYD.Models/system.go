package hydmodels

import "time"

// Keypad actions
const (
	KeypadKeyPress      = "key_press"
	KeypadClear         = "clear"
	KeypadUnlockSuccess = "unlock_success"
	KeypadUnlockFailed  = "unlock_failed"
	KeypadLockSuccess   = "lock_success"
)

// SystemStatus is the heartbeat row of a node
type SystemStatus struct {
	DeviceID string    `json:"device_id" db:"device_id"`
	Status   bool      `json:"status" db:"status"`
	LastSeen time.Time `json:"last_seen" db:"last_seen"`
}

// KeypadEvent records one interaction with the door keypad
type KeypadEvent struct {
	ID         int64     `json:"id" db:"id"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	KeyPressed string    `json:"key_pressed" db:"key_pressed"`
	Action     string    `json:"action" db:"action"`
	Success    *bool     `json:"success" db:"success"`
	Timestamp  time.Time `json:"timestamp" db:"recorded_at"`
}

// ConfigEntry is one row of the key/value system configuration
type ConfigEntry struct {
	Key         string    `json:"config_key" db:"config_key"`
	Value       string    `json:"config_value" db:"config_value"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}
