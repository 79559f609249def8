package hydmodels

import "time"

// RoomSnapshot aggregates a room's latest reading with its light and fan state
type RoomSnapshot struct {
	Room           string    `json:"room"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	MotionDetected bool      `json:"motion_detected"`
	LightLevel     int       `json:"light_level"`
	Current        float64   `json:"current"`
	LightStatus    *bool     `json:"light_status"`
	Brightness     *int      `json:"brightness"`
	FanStatus      *bool     `json:"fan_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewRoomSnapshot merges a reading with the room's device statuses.
// Statuses for other rooms or other device types are ignored.
func NewRoomSnapshot(r SensorReading, statuses []DeviceStatus) RoomSnapshot {
	snap := RoomSnapshot{
		Room:           r.Room,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		MotionDetected: r.MotionDetected,
		LightLevel:     r.LightLevel,
		Current:        r.CurrentReading,
		Timestamp:      r.Timestamp,
	}
	for _, s := range statuses {
		if s.Room != r.Room {
			continue
		}
		status := s.Status
		switch s.DeviceType {
		case DeviceTypeLight:
			snap.LightStatus = &status
			snap.Brightness = s.Brightness
		case DeviceTypeFan:
			snap.FanStatus = &status
		}
	}
	return snap
}

// RoomDetail is the dashboard view of one room
type RoomDetail struct {
	Room    string          `json:"room"`
	Current *SensorReading  `json:"current"`
	Devices []DeviceStatus  `json:"devices"`
	History []SensorReading `json:"history"`
}

// ChartPoint is one sample of the room chart series
type ChartPoint struct {
	Label       string    `json:"time"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	LightLevel  int       `json:"light_level"`
	Timestamp   time.Time `json:"timestamp"`
}

// SystemStatusView is returned even when no heartbeat was ever received
type SystemStatusView struct {
	DeviceID string     `json:"device_id"`
	Status   bool       `json:"status"`
	LastSeen *time.Time `json:"last_seen"`
	Known    bool       `json:"known"`
}
