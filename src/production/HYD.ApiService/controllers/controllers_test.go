package controllers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.ApiService/middleware"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
	implementation "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Repository/Implementation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	db       *sql.DB
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := implementation.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, implementation.CreateTables(ctx, db, implementation.SQLite))

	d := implementation.SQLite
	repos := gateway.Repositories{
		Telemetry: implementation.NewSQLTelemetryRepository(db, d),
		Commands:  implementation.NewSQLCommandRepository(db, d),
		Alerts:    implementation.NewSQLAlertRepository(db, d),
		System:    implementation.NewSQLSystemRepository(db, d),
		Config:    implementation.NewSQLConfigRepository(db, d),
		Legacy:    implementation.NewSQLLegacyReadingLog(db, d),
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	deps := gateway.Deps{Repos: repos, Metrics: m, SystemDeviceID: "esp32_main"}
	log := logger.NewNopLogger()

	router := gin.New()
	router.Use(middleware.RequestID())
	NewIngestController(gateway.NewIngest(deps), log, m).RegisterRoutes(router)
	NewDispatchController(gateway.NewDispatch(deps), log, m).RegisterRoutes(router)

	return &testServer{router: router, db: db, metrics: m, registry: registry}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestActionRouting(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing action", http.MethodGet, "/api/ingest", "", 400, "action: is required"},
		{"unknown action", http.MethodGet, "/api/dispatch?action=drop_tables", "", 400, "unknown action"},
		{"wrong method", http.MethodGet, "/api/ingest?action=sensor_data", "", 400, "not allowed"},
		{"wrong method on dispatch", http.MethodPost, "/api/dispatch?action=get_latest", `{}`, 400, "not allowed"},
		{"malformed json", http.MethodPost, "/api/ingest?action=sensor_data", `{"device_id":`, 400, "invalid JSON body"},
		{"missing field", http.MethodPost, "/api/ingest?action=sensor_data", `{"device_id":"esp32_1"}`, 400, "room"},
		{"bad severity", http.MethodPost, "/api/ingest?action=alert", `{"device_id":"d","alert_type":"t","message":"m","severity":"fatal"}`, 400, "severity"},
		{"bad resolved filter", http.MethodGet, "/api/dispatch?action=get_alerts&resolved=maybe", "", 400, "resolved"},
		{"room required", http.MethodGet, "/api/dispatch?action=room_detail", "", 400, "room"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, out := s.do(t, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, out["error"], tc.wantError)
			assert.Nil(t, out["success"])
		})
	}
}

func TestSensorReportThenLatest(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodPost, "/api/ingest?action=sensor_data",
		`{"device_id":" esp32_1 ","room":"kitchen","temperature":22.5,"humidity":40,"motion_detected":true,"light_level":300,"current_reading":1.2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(1), out["id"])

	w, out = s.do(t, http.MethodGet, "/api/dispatch?action=get_latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].([]interface{})
	require.Len(t, data, 1)
	room := data[0].(map[string]interface{})
	assert.Equal(t, "kitchen", room["room"])
	assert.Equal(t, 22.5, room["temperature"])
	assert.Nil(t, room["light_status"])

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("ingest", "sensor_data", "200")))
}

func TestCommandRoundTripOverLegacyPaths(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodPost, "/serverAPI/api_dispatch.php?action=send_command",
		`{"room":"kitchen","device_type":"light","action":"set_brightness","value":70}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), out["id"])

	w, out = s.do(t, http.MethodGet, "/serverAPI/api_ingest.php?action=get_commands", "")
	require.Equal(t, http.StatusOK, w.Code)
	commands := out["commands"].([]interface{})
	require.Len(t, commands, 1)
	cmd := commands[0].(map[string]interface{})
	assert.Equal(t, "set_brightness", cmd["action"])
	assert.Equal(t, float64(70), cmd["value"])
	assert.Equal(t, "manual", cmd["mode"])
	assert.Equal(t, true, cmd["processed"])

	_, out = s.do(t, http.MethodGet, "/api/ingest?action=get_commands", "")
	assert.Equal(t, []interface{}{}, out["commands"])
}

func TestRoomDetailUnknownRoom(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodGet, "/api/dispatch?action=room_detail&room=attic", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attic", out["room"])
	assert.Nil(t, out["current"])
	assert.Equal(t, []interface{}{}, out["devices"])
	assert.Equal(t, []interface{}{}, out["history"])
}

func TestAlertLifecycle(t *testing.T) {
	s := newTestServer(t)

	_, out := s.do(t, http.MethodPost, "/api/ingest?action=alert",
		`{"device_id":"esp32_1","alert_type":"high_temp","room":"kitchen","message":"31C","severity":"critical"}`)
	id := out["id"].(float64)

	_, out = s.do(t, http.MethodGet, "/api/dispatch?action=get_alerts&resolved=false", "")
	require.Len(t, out["alerts"], 1)

	body := fmt.Sprintf(`{"alert_id":%d}`, int64(id))
	_, out = s.do(t, http.MethodPost, "/api/dispatch?action=resolve_alert", body)
	assert.Equal(t, true, out["resolved"])

	_, out = s.do(t, http.MethodPost, "/api/dispatch?action=resolve_alert", body)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, false, out["resolved"])

	_, out = s.do(t, http.MethodGet, "/api/dispatch?action=get_alerts&resolved=false", "")
	assert.Equal(t, []interface{}{}, out["alerts"])

	w, out := s.do(t, http.MethodPost, "/api/dispatch?action=resolve_alert", `{"alert_id":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, out["error"], "alert_id")
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestServer(t)

	_, out := s.do(t, http.MethodPost, "/api/dispatch?action=update_config", `{"key":"temp_threshold","value":"28"}`)
	assert.Equal(t, true, out["success"])

	_, out = s.do(t, http.MethodGet, "/api/ingest?action=get_config", "")
	assert.Equal(t, map[string]interface{}{"temp_threshold": "28"}, out["config"])
}

func TestSystemStatusUnknownThenKnown(t *testing.T) {
	s := newTestServer(t)

	_, out := s.do(t, http.MethodGet, "/api/dispatch?action=system_status", "")
	assert.Equal(t, "esp32_main", out["device_id"])
	assert.Equal(t, false, out["known"])
	assert.Equal(t, false, out["status"])
	assert.Nil(t, out["last_seen"])

	s.do(t, http.MethodPost, "/api/ingest?action=system_status", `{"device_id":"esp32_main","status":true}`)

	_, out = s.do(t, http.MethodGet, "/api/dispatch?action=system_status", "")
	assert.Equal(t, true, out["known"])
	assert.Equal(t, true, out["status"])
	assert.NotNil(t, out["last_seen"])
}

func TestKeypadEventsWindow(t *testing.T) {
	s := newTestServer(t)

	_, out := s.do(t, http.MethodPost, "/api/ingest?action=keypad_event", `{"device_id":"esp32_main","key":"#","action":"lock_success","success":true}`)
	assert.Equal(t, float64(1), out["id"])

	_, out = s.do(t, http.MethodGet, "/api/dispatch?action=keypad_events&since=60", "")
	events := out["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, "lock_success", events[0].(map[string]interface{})["action"])
}

func TestLatestReadingBareShape(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodGet, "/serverAPI/api_dispatch.php?action=latest_reading", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"error": "No data available"}, out)

	form := url.Values{"Temp": {"23.4"}, "Hum": {"51"}, "mot": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/serverAPI/api_ingest.php?action=legacy_reading", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, out = s.do(t, http.MethodPost, "/serverAPI/api_dispatch.php?action=latest_reading", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "23.4", out["temp"])
	assert.Equal(t, "51", out["hum"])
	assert.Equal(t, "1", out["mot"])
	assert.Nil(t, out["success"])
}

func TestLegacyPathsWithoutAction(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(t, http.MethodPost, "/serverAPI/api_dispatch.php", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"error": "No data available"}, out)

	form := url.Values{"Temp": {"22.5"}, "Hum": {"40"}, "mot": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/serverAPI/api_ingest.php", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	w, out = s.do(t, http.MethodPost, "/serverAPI/api_dispatch.php", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "22.5", out["temp"])
	assert.Equal(t, "40", out["hum"])
	assert.Equal(t, "1", out["mot"])

	// explicit actions still win on the legacy paths
	w, out = s.do(t, http.MethodGet, "/serverAPI/api_dispatch.php?action=get_config", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])

	// the canonical endpoints keep requiring an action
	w, out = s.do(t, http.MethodPost, "/api/ingest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "action: is required", out["error"])
}

func TestStorageFailureIs500WithoutDriverDetail(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Close())

	w, out := s.do(t, http.MethodGet, "/api/dispatch?action=get_latest", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "storage error: latest readings", out["error"])
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("dispatch", "get_latest", "500")))
}

type readiness bool

func (r readiness) HealthCheck(context.Context) (map[string]interface{}, bool) {
	status := "ok"
	if !r {
		status = "error"
	}
	return map[string]interface{}{"status": status}, bool(r)
}

func TestHealthRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics.NewMetrics(registry).ObserveRequest("ingest", "sensor_data", 200, 0)

	router := gin.New()
	NewHealthController(readiness(false), registry, nil).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hydrahome_gateway_requests_total")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
