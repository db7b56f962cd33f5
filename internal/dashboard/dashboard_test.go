package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/auth"
	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/storage"
	"github.com/nithinbasa/SmartGrid/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

type fixture struct {
	server *Server
	engine *monitor.Engine
	buffer *storage.ReadingBuffer
	clock  *stepClock
	router http.Handler
}

func newFixture(t *testing.T, authCfg config.Auth) *fixture {
	t.Helper()
	log := logger.WithComponent("dashboard")
	clock := &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	engine, err := monitor.NewEngine(monitor.DefaultThresholds(), monitor.WithClock(clock))
	require.NoError(t, err)

	buffer := storage.NewReadingBuffer(50)
	server := NewServer(Deps{
		Engine:     engine,
		Buffer:     buffer,
		Controller: control.NewController(),
		Auth:       auth.NewManager(authCfg),
		Hub:        websocket.NewHub(log),
		Logger:     log,
		SourceName: "simulated",
		AlertLimit: 10,
		Location:   time.UTC,
	})
	server.now = clock.Now

	return &fixture{server: server, engine: engine, buffer: buffer, clock: clock, router: server.Router()}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v))
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t, config.Auth{})
	f.buffer.Add(monitor.SensorReading{Voltage: 230, Current: 2, Power: 500, Timestamp: f.clock.now})
	f.engine.Process(monitor.SensorReading{Voltage: 170, Current: 2, Power: 500, Timestamp: f.clock.now})

	resp := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.Code)

	status := decode[statusResponse](t, resp)
	assert.Equal(t, "simulated", status.Source)
	assert.True(t, status.Demo)
	assert.Equal(t, 1, status.Alerts)
	assert.Equal(t, 1, status.Unacknowledged)
	assert.Equal(t, "30s", status.Cooldown)
	require.NotNil(t, status.Latest)
	assert.Equal(t, 230.0, status.Latest.Voltage)
	assert.Equal(t, control.DefaultLoadState(), status.Loads)
	assert.False(t, status.AuthEnabled)
}

func TestCurrentReading(t *testing.T) {
	f := newFixture(t, config.Auth{})

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/api/readings/current", "").Code)

	f.buffer.Add(monitor.SensorReading{Voltage: 221, Current: 2, Power: 450, Timestamp: f.clock.now})
	resp := f.do(t, http.MethodGet, "/api/readings/current", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 221.0, decode[monitor.SensorReading](t, resp).Voltage)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, config.Auth{})
	for i := 0; i < 5; i++ {
		f.buffer.Add(monitor.SensorReading{Voltage: float64(220 + i), Timestamp: f.clock.now.Add(time.Duration(i) * time.Second)})
	}

	all := decode[[]monitor.SensorReading](t, f.do(t, http.MethodGet, "/api/readings/history", ""))
	assert.Len(t, all, 5)

	last := decode[[]monitor.SensorReading](t, f.do(t, http.MethodGet, "/api/readings/history?n=2", ""))
	require.Len(t, last, 2)
	assert.Equal(t, 224.0, last[1].Voltage)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/readings/history?n=abc", "").Code)
}

func TestAlertsLimit(t *testing.T) {
	f := newFixture(t, config.Auth{})
	for i := 0; i < 12; i++ {
		f.engine.Notice(monitor.SeverityInfo, "notice")
	}

	assert.Len(t, decode[[]monitor.Alert](t, f.do(t, http.MethodGet, "/api/alerts", "")), 10)
	assert.Len(t, decode[[]monitor.Alert](t, f.do(t, http.MethodGet, "/api/alerts?limit=3", "")), 3)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/alerts?limit=-1", "").Code)
}

type storedAlerts struct {
	alerts []monitor.Alert
	asked  int
}

func (s *storedAlerts) RecentAlerts(_ context.Context, n int) ([]monitor.Alert, error) {
	s.asked = n
	if n < len(s.alerts) {
		return s.alerts[:n], nil
	}
	return s.alerts, nil
}

func TestAlertHistory(t *testing.T) {
	f := newFixture(t, config.Auth{})
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/alerts/history", "").Code)

	history := &storedAlerts{alerts: []monitor.Alert{
		{ID: "before-restart-2", Kind: monitor.PowerHigh, Severity: monitor.SeverityWarning},
		{ID: "before-restart-1", Kind: monitor.VoltageLow, Severity: monitor.SeverityError, Acknowledged: true},
	}}
	f.server.History = history

	resp := f.do(t, http.MethodGet, "/api/alerts/history?limit=1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[[]monitor.Alert](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "before-restart-2", got[0].ID)

	all := decode[[]monitor.Alert](t, f.do(t, http.MethodGet, "/api/alerts/history?limit=0", ""))
	assert.Len(t, all, 2)
	assert.Equal(t, maxHistoryAlerts, history.asked)

	f.server.History = &storedAlerts{}
	empty := f.do(t, http.MethodGet, "/api/alerts/history", "")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, "[]", empty.Body.String())
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t, config.Auth{})
	res := f.engine.Process(monitor.SensorReading{Voltage: 260, Current: 2, Power: 500, Timestamp: f.clock.now})
	require.Len(t, res.Alerts, 1)
	id := res.Alerts[0].ID

	resp := f.do(t, http.MethodPost, "/api/alerts/"+id+"/ack", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[monitor.Alert](t, resp).Acknowledged)

	// repeat is a no-op, not an error
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/alerts/"+id+"/ack", "").Code)

	missing := f.do(t, http.MethodPost, "/api/alerts/unknown/ack", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "alert_not_found", decode[errorResponse](t, missing).Error)
}

func TestLoads(t *testing.T) {
	f := newFixture(t, config.Auth{})

	state := decode[control.LoadState](t, f.do(t, http.MethodGet, "/api/controls/loads", ""))
	assert.Equal(t, control.DefaultLoadState(), state)

	resp := f.do(t, http.MethodPatch, "/api/controls/loads", `{"load2":true}`)
	require.Equal(t, http.StatusOK, resp.Code)
	change := decode[control.Change](t, resp)
	assert.True(t, change.State.Load2)
	assert.Equal(t, `Load control updated: {"load2":true}`, change.Action)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/controls/loads", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/controls/loads", `{"load3":true}`).Code)
}

func TestExports(t *testing.T) {
	f := newFixture(t, config.Auth{})
	f.buffer.Add(monitor.SensorReading{Voltage: 230, Current: 2, Power: 500, Timestamp: f.clock.now})
	f.engine.Process(monitor.SensorReading{Voltage: 170, Current: 2, Power: 500, Timestamp: f.clock.now})

	csv := f.do(t, http.MethodGet, "/api/export/readings.csv", "")
	require.Equal(t, http.StatusOK, csv.Code)
	assert.Equal(t, `attachment; filename="power-data-2024-05-01.csv"`, csv.Header().Get("Content-Disposition"))
	assert.Equal(t, "Timestamp,Voltage (V),Current (A),Power (W)\n2024-05-01T12:00:00.000Z,230.00,2.00,500.00\n", csv.Body.String())

	txt := f.do(t, http.MethodGet, "/api/export/alerts.txt", "")
	require.Equal(t, http.StatusOK, txt.Code)
	assert.Equal(t, "5/1/2024, 12:00:00 PM - ERROR: Low voltage detected: 170.0V", txt.Body.String())

	pdf := f.do(t, http.MethodGet, "/api/export/alerts.pdf", "")
	require.Equal(t, http.StatusOK, pdf.Code)
	assert.Equal(t, "application/pdf", pdf.Header().Get("Content-Type"))

	xlsx := f.do(t, http.MethodGet, "/api/export/readings.xlsx", "")
	require.Equal(t, http.StatusOK, xlsx.Code)
	assert.NotEmpty(t, xlsx.Body.Bytes())
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	f := newFixture(t, config.Auth{
		JWTSecret: "secret",
		TokenTTL:  time.Hour,
		Users:     []config.User{{Username: "operator", PasswordHash: string(hash)}},
	})

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPatch, "/api/controls/loads", `{"load1":false}`).Code)
	// reads stay public
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/controls/loads", "").Code)

	bad := f.do(t, http.MethodPost, "/api/login", `{"username":"operator","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	login := f.do(t, http.MethodPost, "/api/login", `{"username":"operator","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, login.Code)
	token := decode[loginResponse](t, login).Token
	require.NotEmpty(t, token)

	resp := f.do(t, http.MethodPatch, "/api/controls/loads", `{"load1":false}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, config.Auth{})
	f.do(t, http.MethodGet, "/api/status", "")

	resp := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "smartgrid_http_requests_total")
}
