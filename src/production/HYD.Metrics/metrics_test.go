package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("ingest", "get_commands", 200, 3*time.Millisecond)
	m.ObserveRequest("ingest", "get_commands", 200, 5*time.Millisecond)
	m.CommandQueued()
	m.CommandsClaimed(3)
	m.CommandsClaimed(0)
	m.AlertRaised("critical")
	m.NotificationDropped("websocket")
	m.BridgeMessage("sensor_data", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("ingest", "get_commands", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsEnqueued))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CommandsDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsRaised.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("websocket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeMessages.WithLabelValues("sensor_data", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("dispatch", "get_latest", 500, time.Second)
	m.CommandQueued()
	m.CommandsClaimed(1)
	m.AlertRaised("info")
	m.NotificationDropped("mqtt")
	m.BridgeMessage("alert", "error")
}

func TestNewMetricsRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
