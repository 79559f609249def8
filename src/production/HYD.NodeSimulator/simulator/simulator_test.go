package simulator

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

type fakeClient struct {
	mu         sync.Mutex
	sensors    []gateway.SensorReport
	statuses   []gateway.DeviceStatusReport
	heartbeats int
	alerts     []gateway.AlertReport
	configs    int
	config     map[string]string
	commands   []hydmodels.ControlCommand
	pollErr    error
}

func (f *fakeClient) ReportSensors(_ context.Context, r gateway.SensorReport) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensors = append(f.sensors, r)
	return int64(len(f.sensors)), nil
}

func (f *fakeClient) ReportDeviceStatus(_ context.Context, r gateway.DeviceStatusReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, r)
	return nil
}

func (f *fakeClient) ReportSystemStatus(context.Context, string, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeClient) PollCommands(context.Context) ([]hydmodels.ControlCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	out := f.commands
	f.commands = nil
	return out, nil
}

func (f *fakeClient) GetConfig(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs++
	return f.config, nil
}

func (f *fakeClient) ReportAlert(_ context.Context, r gateway.AlertReport) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, r)
	return int64(len(f.alerts)), nil
}

func newSim(c Client) *Simulator {
	return NewWithSource(c, "esp32_main", "kitchen", nil, rand.NewPCG(1, 2))
}

func intPtr(v int) *int { return &v }

func TestTickReportsWithoutCommands(t *testing.T) {
	fc := &fakeClient{}
	sim := newSim(fc)

	require.NoError(t, sim.Tick(context.Background()))

	require.Len(t, fc.sensors, 1)
	assert.Equal(t, "kitchen", fc.sensors[0].Room)
	assert.Equal(t, "esp32_main", fc.sensors[0].DeviceID)
	assert.Equal(t, 1, fc.heartbeats)
	assert.Equal(t, 1, fc.configs)
	assert.Empty(t, fc.statuses)
	assert.Empty(t, fc.alerts)
}

func TestTickAppliesCommandsForOwnRoom(t *testing.T) {
	fc := &fakeClient{commands: []hydmodels.ControlCommand{
		{ID: 1, Room: "kitchen", DeviceType: "light", Action: ActionSetBrightness, Value: intPtr(70), Mode: "manual"},
		{ID: 2, Room: "kitchen", DeviceType: "fan", Action: ActionTurnOn, Mode: "auto"},
		{ID: 3, Room: "bedroom", DeviceType: "fan", Action: ActionTurnOff, Mode: "manual"},
		{ID: 4, Room: "kitchen", DeviceType: "heater", Action: ActionTurnOn, Mode: "manual"},
	}}
	sim := newSim(fc)

	require.NoError(t, sim.Tick(context.Background()))

	require.Len(t, fc.statuses, 2)
	light, fan := fc.statuses[0], fc.statuses[1]
	assert.Equal(t, "light", light.DeviceType)
	assert.True(t, light.Status)
	require.NotNil(t, light.Brightness)
	assert.Equal(t, 70, *light.Brightness)

	assert.Equal(t, "fan", fan.DeviceType)
	assert.True(t, fan.Status)
	assert.Equal(t, "auto", fan.Mode)
	assert.Nil(t, fan.Brightness)
}

func TestForeignRoomCommandIsWarned(t *testing.T) {
	var buf bytes.Buffer
	fc := &fakeClient{commands: []hydmodels.ControlCommand{
		{ID: 9, Room: "bedroom", DeviceType: "fan", Action: ActionTurnOn, Mode: "manual"},
	}}
	sim := NewWithSource(fc, "esp32_main", "kitchen", logger.NewWriterLogger(&buf, zerolog.InfoLevel), rand.NewPCG(1, 2))

	require.NoError(t, sim.Tick(context.Background()))

	assert.Empty(t, fc.statuses)
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"command_id":9`)
	assert.Contains(t, out, `"target_room":"bedroom"`)
}

func TestRepeatedCommandReportsNoChange(t *testing.T) {
	fc := &fakeClient{commands: []hydmodels.ControlCommand{
		{ID: 1, Room: "kitchen", DeviceType: "fan", Action: ActionTurnOff, Mode: "manual"},
	}}
	sim := newSim(fc)

	require.NoError(t, sim.Tick(context.Background()))
	assert.Empty(t, fc.statuses)
}

func TestToggleLightDefaultsToFullBrightness(t *testing.T) {
	sim := newSim(&fakeClient{})
	assert.True(t, sim.apply(hydmodels.ControlCommand{Room: "kitchen", DeviceType: "light", Action: ActionToggle}))
	assert.Equal(t, 100, *sim.status("light").Brightness)

	assert.True(t, sim.apply(hydmodels.ControlCommand{Room: "kitchen", DeviceType: "light", Action: ActionSetBrightness, Value: intPtr(0)}))
	assert.False(t, sim.status("light").Status)

	assert.False(t, sim.apply(hydmodels.ControlCommand{Room: "kitchen", DeviceType: "light", Action: ActionSetBrightness}))
	assert.False(t, sim.apply(hydmodels.ControlCommand{Room: "kitchen", DeviceType: "light", Action: "explode"}))
}

func TestThresholdAlertRaisedOncePerCrossing(t *testing.T) {
	fc := &fakeClient{config: map[string]string{TempThresholdKey: "0"}}
	sim := newSim(fc)

	require.NoError(t, sim.Tick(context.Background()))
	require.NoError(t, sim.Tick(context.Background()))

	require.Len(t, fc.alerts, 1)
	assert.Equal(t, "high_temperature", fc.alerts[0].AlertType)
	assert.Equal(t, hydmodels.SeverityWarning, fc.alerts[0].Severity)
	require.NotNil(t, fc.alerts[0].Room)
	assert.Equal(t, "kitchen", *fc.alerts[0].Room)

	// config is only re-read every few ticks
	assert.Equal(t, 1, fc.configs)
}

func TestPollFailureStillReports(t *testing.T) {
	fc := &fakeClient{pollErr: errors.New("circuit breaker is open")}
	sim := newSim(fc)

	err := sim.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll commands")
	assert.Len(t, fc.sensors, 1)
	assert.Equal(t, 1, fc.heartbeats)
}

func TestRunStopsWithContext(t *testing.T) {
	fc := &fakeClient{}
	sim := newSim(fc)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sim.Run(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.GreaterOrEqual(t, len(fc.sensors), 1)
}
