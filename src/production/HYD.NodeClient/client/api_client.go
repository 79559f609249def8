package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
)

const ingestPath = "/api/ingest"

// ErrCircuitOpen is returned without contacting the server
var ErrCircuitOpen = errors.New("circuit breaker is open")

// APIError is a non-2xx reply carrying the server's error envelope
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

// retryable reports whether another attempt could succeed. A 4xx will not.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// APIClient talks to the ingest gateway on behalf of one node
type APIClient struct {
	http           *resty.Client
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
	logger         *logger.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration, log *logger.Logger) *APIClient {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithComponent("api_client")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetLogger(restyLogger{log}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "hydrahome-node")

	return &APIClient{
		http:           httpClient,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
		maxRetries:     3,
		retryDelay:     1 * time.Second,
		logger:         log,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type idResponse struct {
	envelope
	ID int64 `json:"id"`
}

type commandsResponse struct {
	envelope
	Commands []hydmodels.ControlCommand `json:"commands"`
}

type configResponse struct {
	envelope
	Config map[string]string `json:"config"`
}

// execute performs one attempt through the circuit breaker
func (c *APIClient) execute(ctx context.Context, method, path, action string, body, result interface{}) error {
	if !c.circuitBreaker.canExecute() {
		return ErrCircuitOpen
	}

	var errBody envelope
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errBody)
	if action != "" {
		req.SetQueryParam("action", action)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.circuitBreaker.onFailure()
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: errBody.Error}
		if apiErr.Message == "" {
			apiErr.Message = resp.String()
		}
		// the server answered; only its own failures count against it
		if apiErr.Status >= http.StatusInternalServerError {
			c.circuitBreaker.onFailure()
		} else {
			c.circuitBreaker.onSuccess()
		}
		return apiErr
	}

	c.circuitBreaker.onSuccess()
	return nil
}

// retryWithBackoff executes a function with exponential backoff retry logic
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || !retryable(err) || attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))
		c.logger.WithError(err).WithField("attempt", attempt+1).Debug("Retrying request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (c *APIClient) post(ctx context.Context, action string, retry bool, body, result interface{}) error {
	call := func() error {
		return c.execute(ctx, http.MethodPost, ingestPath, action, body, result)
	}
	if retry {
		return c.retryWithBackoff(ctx, call)
	}
	return call()
}

func (c *APIClient) get(ctx context.Context, action string, retry bool, result interface{}) error {
	call := func() error {
		return c.execute(ctx, http.MethodGet, ingestPath, action, nil, result)
	}
	if retry {
		return c.retryWithBackoff(ctx, call)
	}
	return call()
}

// ReportSensors posts a sensor reading and returns its id
func (c *APIClient) ReportSensors(ctx context.Context, r gateway.SensorReport) (int64, error) {
	var out idResponse
	if err := c.post(ctx, "sensor_data", true, r, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *APIClient) ReportDeviceStatus(ctx context.Context, r gateway.DeviceStatusReport) error {
	return c.post(ctx, "device_status", true, r, &envelope{})
}

// ReportSystemStatus sends the node heartbeat
func (c *APIClient) ReportSystemStatus(ctx context.Context, deviceID string, online bool) error {
	return c.post(ctx, "system_status", true, gateway.SystemStatusReport{DeviceID: deviceID, Status: online}, &envelope{})
}

func (c *APIClient) GetConfig(ctx context.Context) (map[string]string, error) {
	var out configResponse
	if err := c.get(ctx, "get_config", true, &out); err != nil {
		return nil, err
	}
	return out.Config, nil
}

// PollCommands claims pending commands. A claim is not repeatable: if the
// reply is lost the commands are gone, so it is never retried.
func (c *APIClient) PollCommands(ctx context.Context) ([]hydmodels.ControlCommand, error) {
	var out commandsResponse
	if err := c.get(ctx, "get_commands", false, &out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

// ReportAlert is single-shot so a lost reply cannot raise the alert twice
func (c *APIClient) ReportAlert(ctx context.Context, r gateway.AlertReport) (int64, error) {
	var out idResponse
	if err := c.post(ctx, "alert", false, r, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *APIClient) ReportKeypadEvent(ctx context.Context, r gateway.KeypadReport) (int64, error) {
	var out idResponse
	if err := c.post(ctx, "keypad_event", false, r, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Health checks if the API Service is alive
func (c *APIClient) Health(ctx context.Context) error {
	return c.retryWithBackoff(ctx, func() error {
		return c.execute(ctx, http.MethodGet, "/health/live", "", nil, &map[string]interface{}{})
	})
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	cb := c.circuitBreaker
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return map[string]interface{}{
		"state":          cb.state.String(),
		"failure_count":  cb.failureCount,
		"last_fail_time": cb.lastFailTime,
		"max_failures":   cb.maxFailures,
		"reset_timeout":  cb.resetTimeout,
	}
}

// restyLogger routes resty's own warnings into zerolog
type restyLogger struct {
	log *logger.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Logger.Debug().Msgf(format, v...)
}
