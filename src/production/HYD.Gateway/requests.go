package gateway

import (
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

// SensorReport is the body of the sensor_data action
type SensorReport struct {
	DeviceID       string     `json:"device_id" validate:"required"`
	Room           string     `json:"room" validate:"required"`
	Temperature    float64    `json:"temperature"`
	Humidity       float64    `json:"humidity"`
	MotionDetected bool       `json:"motion_detected"`
	LightLevel     int        `json:"light_level"`
	CurrentReading float64    `json:"current_reading"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

func (r *SensorReport) Validate() error {
	trim(&r.DeviceID, &r.Room)
	return validateStruct(r)
}

// DeviceStatusReport is the body of the device_status action
type DeviceStatusReport struct {
	DeviceID   string `json:"device_id" validate:"required"`
	Room       string `json:"room" validate:"required"`
	DeviceType string `json:"device_type" validate:"required"`
	Status     bool   `json:"status"`
	Brightness *int   `json:"brightness"`
	Mode       string `json:"mode" validate:"oneof=auto manual"`
}

func (r *DeviceStatusReport) Validate() error {
	trim(&r.DeviceID, &r.Room, &r.DeviceType, &r.Mode)
	if r.Mode == "" {
		r.Mode = hydmodels.ModeManual
	}
	return validateStruct(r)
}

type AlertReport struct {
	DeviceID  string  `json:"device_id" validate:"required"`
	AlertType string  `json:"alert_type" validate:"required"`
	Room      *string `json:"room"`
	Message   string  `json:"message" validate:"required"`
	Severity  string  `json:"severity" validate:"required,oneof=info warning critical"`
}

func (r *AlertReport) Validate() error {
	trim(&r.DeviceID, &r.AlertType, &r.Message, &r.Severity)
	if r.Room != nil {
		trim(r.Room)
		if *r.Room == "" {
			r.Room = nil
		}
	}
	return validateStruct(r)
}

type SystemStatusReport struct {
	DeviceID string `json:"device_id" validate:"required"`
	Status   bool   `json:"status"`
}

func (r *SystemStatusReport) Validate() error {
	trim(&r.DeviceID)
	return validateStruct(r)
}

type KeypadReport struct {
	DeviceID string `json:"device_id" validate:"required"`
	Key      string `json:"key" validate:"required"`
	Action   string `json:"action" validate:"required,oneof=key_press clear unlock_success unlock_failed lock_success"`
	Success  *bool  `json:"success"`
}

func (r *KeypadReport) Validate() error {
	trim(&r.DeviceID, &r.Key, &r.Action)
	return validateStruct(r)
}

// LegacyReport carries the flat temp/hum/mot triple older nodes post as form fields
type LegacyReport struct {
	Temp string `json:"temp" form:"Temp" validate:"required"`
	Hum  string `json:"hum" form:"Hum" validate:"required"`
	Mot  string `json:"mot" form:"mot" validate:"required"`
}

func (r *LegacyReport) Validate() error {
	trim(&r.Temp, &r.Hum, &r.Mot)
	return validateStruct(r)
}

// CommandRequest is the body of the send_command action
type CommandRequest struct {
	Room       string `json:"room" validate:"required"`
	DeviceType string `json:"device_type" validate:"required"`
	Action     string `json:"action" validate:"required"`
	Value      *int   `json:"value"`
	Mode       string `json:"mode" validate:"oneof=auto manual"`
}

func (r *CommandRequest) Validate() error {
	trim(&r.Room, &r.DeviceType, &r.Action, &r.Mode)
	if r.Mode == "" {
		r.Mode = hydmodels.ModeManual
	}
	return validateStruct(r)
}

type ConfigUpdate struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

func (r *ConfigUpdate) Validate() error {
	trim(&r.Key)
	return validateStruct(r)
}

type ResolveRequest struct {
	AlertID int64 `json:"alert_id" validate:"required,gt=0"`
}

func (r *ResolveRequest) Validate() error {
	return validateStruct(r)
}
