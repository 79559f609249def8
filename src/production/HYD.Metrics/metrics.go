package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hydrahome"

// Metrics groups the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	CommandsEnqueued     prometheus.Counter
	CommandsDelivered    prometheus.Counter
	AlertsRaised         *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
	BridgeMessages       *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Gateway requests by gateway, action and HTTP status",
		}, []string{"gateway", "action", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Gateway request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"gateway", "action"}),
		CommandsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_enqueued_total",
			Help:      "Control commands queued by the dashboard",
		}),
		CommandsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_delivered_total",
			Help:      "Control commands claimed by node polls",
		}),
		AlertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts appended to the ledger by severity",
		}, []string{"severity"}),
		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Push notifications dropped by sink",
		}, []string{"sink"}),
		BridgeMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_bridge_messages_total",
			Help:      "MQTT ingest messages by action and outcome",
		}, []string{"action", "outcome"}),
	}
}

func (m *Metrics) ObserveRequest(gateway, action string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(gateway, action, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(gateway, action).Observe(elapsed.Seconds())
}

func (m *Metrics) CommandQueued() {
	if m == nil {
		return
	}
	m.CommandsEnqueued.Inc()
}

func (m *Metrics) CommandsClaimed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.CommandsDelivered.Add(float64(n))
}

func (m *Metrics) AlertRaised(severity string) {
	if m == nil {
		return
	}
	m.AlertsRaised.WithLabelValues(severity).Inc()
}

func (m *Metrics) NotificationDropped(sink string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(sink).Inc()
}

func (m *Metrics) BridgeMessage(action, outcome string) {
	if m == nil {
		return
	}
	m.BridgeMessages.WithLabelValues(action, outcome).Inc()
}
