package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

// Command actions a node understands
const (
	ActionTurnOn        = "turn_on"
	ActionTurnOff       = "turn_off"
	ActionToggle        = "toggle"
	ActionSetBrightness = "set_brightness"
	ActionSetMode       = "set_mode"
)

// TempThresholdKey is the config entry above which the node raises an alert
const TempThresholdKey = "temp_threshold"

// configRefreshTicks controls how often the node re-reads its config
const configRefreshTicks = 12

// Client is the ingest API surface the node uses
type Client interface {
	ReportSensors(ctx context.Context, r gateway.SensorReport) (int64, error)
	ReportDeviceStatus(ctx context.Context, r gateway.DeviceStatusReport) error
	ReportSystemStatus(ctx context.Context, deviceID string, online bool) error
	PollCommands(ctx context.Context) ([]hydmodels.ControlCommand, error)
	GetConfig(ctx context.Context) (map[string]string, error)
	ReportAlert(ctx context.Context, r gateway.AlertReport) (int64, error)
}

type device struct {
	on         bool
	brightness int
	mode       string
}

// Simulator plays the part of one room node
type Simulator struct {
	client   Client
	deviceID string
	room     string
	log      *logger.Logger
	rng      *rand.Rand

	temperature float64
	humidity    float64
	devices     map[string]*device

	ticks         int
	tempThreshold float64
	overThreshold bool
}

func New(c Client, deviceID, room string, log *logger.Logger) *Simulator {
	return NewWithSource(c, deviceID, room, log, rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
}

// NewWithSource seeds the sensor random walk, for reproducible runs
func NewWithSource(c Client, deviceID, room string, log *logger.Logger, src rand.Source) *Simulator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Simulator{
		client:      c,
		deviceID:    deviceID,
		room:        room,
		log:         log.WithComponent("simulator").WithField("room", room),
		rng:         rand.New(src),
		temperature: 22,
		humidity:    45,
		devices: map[string]*device{
			hydmodels.DeviceTypeLight: {mode: hydmodels.ModeManual},
			hydmodels.DeviceTypeFan:   {mode: hydmodels.ModeManual},
		},
		tempThreshold: math.Inf(1),
	}
}

// Run ticks every interval until ctx is done
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.log.WithError(err).Warn("Tick finished with errors")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one node cycle: report sensors, heartbeat, claim and apply
// commands, report the resulting device state.
func (s *Simulator) Tick(ctx context.Context) error {
	var errs []error

	if s.ticks%configRefreshTicks == 0 {
		if err := s.refreshConfig(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.ticks++

	report := s.sample()
	if _, err := s.client.ReportSensors(ctx, report); err != nil {
		errs = append(errs, fmt.Errorf("report sensors: %w", err))
	}
	if err := s.checkThreshold(ctx, report.Temperature); err != nil {
		errs = append(errs, err)
	}

	if err := s.client.ReportSystemStatus(ctx, s.deviceID, true); err != nil {
		errs = append(errs, fmt.Errorf("heartbeat: %w", err))
	}

	commands, err := s.client.PollCommands(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("poll commands: %w", err))
	}

	changed := make(map[string]bool)
	for _, cmd := range commands {
		if cmd.Room != s.room {
			// claims are global, so this command is now lost for its room
			s.log.WithFields(map[string]interface{}{
				"command_id":  cmd.ID,
				"target_room": cmd.Room,
				"device_type": cmd.DeviceType,
			}).Warn("Dropping claimed command for another room")
			continue
		}
		if s.apply(cmd) {
			changed[cmd.DeviceType] = true
		}
	}

	for _, deviceType := range []string{hydmodels.DeviceTypeLight, hydmodels.DeviceTypeFan} {
		if !changed[deviceType] {
			continue
		}
		if err := s.client.ReportDeviceStatus(ctx, s.status(deviceType)); err != nil {
			errs = append(errs, fmt.Errorf("report %s status: %w", deviceType, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Simulator) refreshConfig(ctx context.Context) error {
	cfg, err := s.client.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}
	raw, ok := cfg[TempThresholdKey]
	if !ok {
		s.tempThreshold = math.Inf(1)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.log.WithField("value", raw).Warn("Ignoring non numeric temp_threshold")
		return nil
	}
	s.tempThreshold = v
	return nil
}

// checkThreshold raises one alert per crossing above the threshold
func (s *Simulator) checkThreshold(ctx context.Context, temperature float64) error {
	if temperature <= s.tempThreshold {
		s.overThreshold = false
		return nil
	}
	if s.overThreshold {
		return nil
	}

	room := s.room
	_, err := s.client.ReportAlert(ctx, gateway.AlertReport{
		DeviceID:  s.deviceID,
		AlertType: "high_temperature",
		Room:      &room,
		Message:   fmt.Sprintf("Temperature %.1fC above threshold %.1fC", temperature, s.tempThreshold),
		Severity:  hydmodels.SeverityWarning,
	})
	if err != nil {
		return fmt.Errorf("report alert: %w", err)
	}
	s.overThreshold = true
	return nil
}

// sample advances the sensor random walk. Device state feeds back into it:
// a running fan cools the room and lights draw current.
func (s *Simulator) sample() gateway.SensorReport {
	light := s.devices[hydmodels.DeviceTypeLight]
	fan := s.devices[hydmodels.DeviceTypeFan]

	drift := s.rng.NormFloat64() * 0.2
	if fan.on {
		drift -= 0.1
	}
	s.temperature = clampFloat(s.temperature+drift, 10, 40)
	s.humidity = clampFloat(s.humidity+s.rng.NormFloat64()*0.5, 10, 90)

	lightLevel := 50 + s.rng.IntN(150)
	current := 0.05
	if light.on {
		lightLevel += light.brightness * 5
		current += 0.3 * float64(light.brightness) / 100
	}
	if fan.on {
		current += 0.4
	}

	return gateway.SensorReport{
		DeviceID:       s.deviceID,
		Room:           s.room,
		Temperature:    math.Round(s.temperature*10) / 10,
		Humidity:       math.Round(s.humidity*10) / 10,
		MotionDetected: s.rng.IntN(10) < 2,
		LightLevel:     lightLevel,
		CurrentReading: math.Round(current*100) / 100,
	}
}

// apply mutates device state and reports whether anything changed
func (s *Simulator) apply(cmd hydmodels.ControlCommand) bool {
	d, ok := s.devices[cmd.DeviceType]
	if !ok {
		s.log.WithFields(map[string]interface{}{"command_id": cmd.ID, "device_type": cmd.DeviceType}).Warn("Unknown device type")
		return false
	}

	before := *d
	switch cmd.Action {
	case ActionTurnOn:
		d.on = true
	case ActionTurnOff:
		d.on = false
	case ActionToggle:
		d.on = !d.on
	case ActionSetBrightness:
		if cmd.Value == nil {
			s.log.WithField("command_id", cmd.ID).Warn("set_brightness without value")
			return false
		}
		d.brightness = clampInt(*cmd.Value, 0, 100)
		d.on = d.brightness > 0
	case ActionSetMode:
	default:
		s.log.WithFields(map[string]interface{}{"command_id": cmd.ID, "action": cmd.Action}).Warn("Unknown command action")
		return false
	}
	if cmd.Mode != "" {
		d.mode = cmd.Mode
	}
	if d.on && cmd.DeviceType == hydmodels.DeviceTypeLight && d.brightness == 0 {
		d.brightness = 100
	}

	s.log.WithFields(map[string]interface{}{"command_id": cmd.ID, "device_type": cmd.DeviceType, "action": cmd.Action}).Info("Applied command")
	return *d != before
}

func (s *Simulator) status(deviceType string) gateway.DeviceStatusReport {
	d := s.devices[deviceType]
	report := gateway.DeviceStatusReport{
		DeviceID:   s.deviceID,
		Room:       s.room,
		DeviceType: deviceType,
		Status:     d.on,
		Mode:       d.mode,
	}
	if deviceType == hydmodels.DeviceTypeLight {
		b := d.brightness
		report.Brightness = &b
	}
	return report
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
