package hydmodels

import "time"

// Device types the dashboard aggregates into room snapshots
const (
	DeviceTypeLight = "light"
	DeviceTypeFan   = "fan"
)

// Actuator modes
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// SensorReading is one report from a node. Rows are never mutated.
type SensorReading struct {
	ID             int64     `json:"id" db:"id"`
	DeviceID       string    `json:"device_id" db:"device_id"`
	Room           string    `json:"room" db:"room"`
	Temperature    float64   `json:"temperature" db:"temperature"`
	Humidity       float64   `json:"humidity" db:"humidity"`
	MotionDetected bool      `json:"motion_detected" db:"motion_detected"`
	LightLevel     int       `json:"light_level" db:"light_level"`
	CurrentReading float64   `json:"current_reading" db:"current_reading"`
	Timestamp      time.Time `json:"timestamp" db:"recorded_at"`
}

// DeviceStatus is the last reported state of one actuator, unique per (room, device_type)
type DeviceStatus struct {
	ID          int64     `json:"id" db:"id"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	Room        string    `json:"room" db:"room"`
	DeviceType  string    `json:"device_type" db:"device_type"`
	Status      bool      `json:"status" db:"status"`
	Brightness  *int      `json:"brightness" db:"brightness"`
	Mode        string    `json:"mode" db:"mode"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// LegacyReading mirrors the flat readings log kept for older consumers.
// Values are stored as the strings the nodes sent. ID is zero, and left out
// of the JSON, when the log lives in Mongo.
type LegacyReading struct {
	ID        int64     `json:"id,omitempty" bson:"-" db:"id"`
	Temp      string    `json:"temp" bson:"temp" db:"temp"`
	Hum       string    `json:"hum" bson:"hum" db:"hum"`
	Mot       string    `json:"mot" bson:"mot" db:"mot"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}
