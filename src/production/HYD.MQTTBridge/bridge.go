package mqttbridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	config "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Config"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
	notifier "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Notifier"
)

// Ingest actions accepted over MQTT. get_commands stays HTTP-only since a
// claim needs a reply.
const (
	ActionSensorData   = "sensor_data"
	ActionDeviceStatus = "device_status"
	ActionAlert        = "alert"
	ActionSystemStatus = "system_status"
	ActionKeypadEvent  = "keypad_event"
)

const (
	queueSize        = 4096
	mqttSink         = "mqtt"
	defaultOpTimeout = 5 * time.Second
)

// IngestHandler is the subset of the ingest gateway the bridge feeds
type IngestHandler interface {
	ReportSensors(ctx context.Context, r gateway.SensorReport) (int64, error)
	ReportDeviceStatus(ctx context.Context, r gateway.DeviceStatusReport) error
	ReportAlert(ctx context.Context, r gateway.AlertReport) (int64, error)
	ReportSystemStatus(ctx context.Context, r gateway.SystemStatusReport) error
	ReportKeypadEvent(ctx context.Context, r gateway.KeypadReport) (int64, error)
}

type inbound struct {
	action     string
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Bridge subscribes to node reports on MQTT, feeds them to the ingest
// gateway in batches, and publishes push hints back to the broker.
type Bridge struct {
	cfg       config.MQTTConfig
	brokerURL string
	ingest    IngestHandler
	client    mqtt.Client
	msgCh     chan inbound
	wg        sync.WaitGroup
	log       *logger.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

func New(cfg config.MQTTConfig, brokerURL string, ingest IngestHandler, log *logger.Logger, m *metrics.Metrics) *Bridge {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	return &Bridge{
		cfg:       cfg,
		brokerURL: brokerURL,
		ingest:    ingest,
		msgCh:     make(chan inbound, queueSize),
		log:       log.WithComponent("mqtt_bridge"),
		metrics:   m,
	}
}

func (b *Bridge) ingestTopic() string {
	return b.cfg.TopicPrefix + "/ingest/+"
}

// Start connects to the broker and runs the batch writer until ctx ends or Stop is called
func (b *Bridge) Start(ctx context.Context) error {
	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "hydrahome-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(b.brokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetKeepAlive(b.cfg.KeepAlive).
		SetPingTimeout(b.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if b.cfg.BrokerUser != "" {
		opts.SetUsername(b.cfg.BrokerUser)
		opts.SetPassword(b.cfg.BrokerPass)
	}

	if b.cfg.UseTLS {
		tlsCfg, err := tlsConfig(b.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.log.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := b.ingestTopic()
		b.log.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to ingest topic")
		if token := c.Subscribe(topic, 1, b.onMessage); token.Wait() && token.Error() != nil {
			b.log.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	b.client = mqtt.NewClient(opts)
	if tk := b.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	b.startWriter(ctx)
	return nil
}

func (b *Bridge) startWriter(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.batchWriter(ctx)
	}()
}

// Stop disconnects and drains queued messages
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.msgCh)
	b.mu.Unlock()

	b.wg.Wait()
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
}

func (b *Bridge) IsConnected() bool {
	return b.client != nil && b.client.IsConnected()
}

func (b *Bridge) onMessage(_ mqtt.Client, m mqtt.Message) {
	b.handleMessage(m.Topic(), m.Payload())
}

// handleMessage validates the topic and queues the payload for the batch writer.
// Expected topic: <prefix>/ingest/<action>
func (b *Bridge) handleMessage(topic string, payload []byte) {
	b.log.Logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Received MQTT message")

	action, ok := b.actionFromTopic(topic)
	if !ok {
		b.log.Logger.Warn().Str("topic", topic).Msg("Unsupported ingest topic")
		b.metrics.BridgeMessage("unknown", "rejected")
		b.publishError(deviceIDOf(payload), "unknown_action", fmt.Sprintf("unsupported topic %s", topic))
		return
	}

	msg := inbound{action: action, topic: topic, payload: append([]byte(nil), payload...), receivedAt: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.msgCh <- msg:
	default:
		b.metrics.BridgeMessage(action, "dropped")
		b.publishError(deviceIDOf(payload), "overloaded", "ingest queue full, message dropped")
	}
}

func (b *Bridge) actionFromTopic(topic string) (string, bool) {
	prefix := b.cfg.TopicPrefix + "/ingest/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	action := strings.TrimPrefix(topic, prefix)
	switch action {
	case ActionSensorData, ActionDeviceStatus, ActionAlert, ActionSystemStatus, ActionKeypadEvent:
		return action, true
	}
	return action, false
}

func (b *Bridge) batchWriter(ctx context.Context) {
	batch := make([]inbound, 0, b.cfg.BatchSize)
	timer := time.NewTimer(b.cfg.BatchWindow)
	defer timer.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		b.log.Logger.Debug().Int("batch_size", len(batch)).Msg("Flushing MQTT batch to ingest gateway")

		failed := 0
		for _, msg := range batch {
			opCtx, cancel := context.WithTimeout(ctx, b.cfg.OpTimeout)
			err := b.apply(opCtx, msg)
			cancel()
			if err != nil {
				failed++
				b.reportFailure(msg, err)
				continue
			}
			b.metrics.BridgeMessage(msg.action, "ok")
		}

		b.log.Logger.Info().Int("count", len(batch)).Int("failed", failed).Msg("Processed MQTT batch")
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// the pending batch still gets its own deadlines
			flush(context.WithoutCancel(ctx))
			return
		case msg, ok := <-b.msgCh:
			if !ok {
				flush(ctx)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= b.cfg.BatchSize {
				flush(ctx)
				timer.Reset(b.cfg.BatchWindow)
			}
		case <-timer.C:
			flush(ctx)
			timer.Reset(b.cfg.BatchWindow)
		}
	}
}

var errDecode = errors.New("payload is not valid JSON for action")

// apply decodes one message and runs the matching ingest operation
func (b *Bridge) apply(ctx context.Context, msg inbound) error {
	decode := func(v interface{}) error {
		if err := json.Unmarshal(msg.payload, v); err != nil {
			return fmt.Errorf("%w %s: %v", errDecode, msg.action, err)
		}
		return nil
	}

	switch msg.action {
	case ActionSensorData:
		var r gateway.SensorReport
		if err := decode(&r); err != nil {
			return err
		}
		if r.Timestamp == nil {
			r.Timestamp = &msg.receivedAt
		}
		_, err := b.ingest.ReportSensors(ctx, r)
		return err
	case ActionDeviceStatus:
		var r gateway.DeviceStatusReport
		if err := decode(&r); err != nil {
			return err
		}
		return b.ingest.ReportDeviceStatus(ctx, r)
	case ActionAlert:
		var r gateway.AlertReport
		if err := decode(&r); err != nil {
			return err
		}
		_, err := b.ingest.ReportAlert(ctx, r)
		return err
	case ActionSystemStatus:
		var r gateway.SystemStatusReport
		if err := decode(&r); err != nil {
			return err
		}
		return b.ingest.ReportSystemStatus(ctx, r)
	case ActionKeypadEvent:
		var r gateway.KeypadReport
		if err := decode(&r); err != nil {
			return err
		}
		_, err := b.ingest.ReportKeypadEvent(ctx, r)
		return err
	}
	return fmt.Errorf("unsupported action %s", msg.action)
}

func (b *Bridge) reportFailure(msg inbound, err error) {
	kind, outcome, text := "storage_error", "error", gateway.PublicMessage(err)
	var verr *gateway.ValidationError
	switch {
	case errors.Is(err, errDecode):
		kind, outcome, text = "decode_error", "rejected", err.Error()
	case errors.As(err, &verr):
		kind, outcome = "validation_error", "rejected"
	}

	deviceID := deviceIDOf(msg.payload)
	b.metrics.BridgeMessage(msg.action, outcome)
	b.log.Logger.Error().Err(err).
		Str("action", msg.action).
		Str("topic", msg.topic).
		Str("device_id", deviceID).
		Msg("MQTT ingest failed")
	b.publishError(deviceID, kind, text)
}

// publishError reports a failed message back to the node on <prefix>/errors/<device_id>
func (b *Bridge) publishError(deviceID, errorType, message string) {
	if !b.IsConnected() {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"device_id":  deviceID,
		"timestamp":  time.Now().UTC(),
	})
	if err != nil {
		b.log.ErrorWithError(err, "Failed to marshal error payload")
		return
	}

	topic := fmt.Sprintf("%s/errors/%s", b.cfg.TopicPrefix, deviceID)
	token := b.client.Publish(topic, 1, false, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		b.log.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to publish error")
	}
}

// Publish implements notifier.Notifier. Events go to <prefix>/events/<type>;
// queued commands also nudge <prefix>/commands/<room> so nodes can poll early.
func (b *Bridge) Publish(_ context.Context, e notifier.Event) {
	if !b.IsConnected() {
		b.metrics.NotificationDropped(mqttSink)
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		b.log.ErrorWithError(err, "Failed to encode event")
		return
	}

	b.client.Publish(fmt.Sprintf("%s/events/%s", b.cfg.TopicPrefix, e.Type), 0, false, data)
	if e.Type == notifier.EventCommandQueued && e.Room != "" {
		b.client.Publish(fmt.Sprintf("%s/commands/%s", b.cfg.TopicPrefix, e.Room), 0, false, data)
	}
}

func deviceIDOf(payload []byte) string {
	var head struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || strings.TrimSpace(head.DeviceID) == "" {
		return "unknown"
	}
	return strings.TrimSpace(head.DeviceID)
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
