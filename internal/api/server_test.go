package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/presence-core/internal/eventlog"
	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/database"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/intake"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
	"github.com/nerrad567/presence-core/migrations"
)

const (
	testDevice   = "fee150bada55"
	testReceiver = "001bc50940810000"
)

type testEnv struct {
	srv    *Server
	store  *presence.Store
	intake *intake.Manager
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testDeps(store *presence.Store, mgr *intake.Manager) Deps {
	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  testLogger(),
		Store:   store,
		Intake:  mgr,
		Version: "test",
	}
}

// testServer creates a Server over a real presence store and intake manager.
func testServer(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	store := presence.NewStore(presence.DefaultConfig())
	mgr := intake.NewManager(store, intake.DefaultConfig())

	deps := testDeps(store, mgr)
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return &testEnv{srv: srv, store: store, intake: mgr}
}

// do sends a request through the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func raddecJSON(id string, rssi int) string {
	return fmt.Sprintf(`{"transmitterId":%q,"transmitterIdType":2,`+
		`"rssiSignature":[{"receiverId":%q,"receiverIdType":1,"rssi":%d}],`+
		`"packets":["061bee"],"timestamp":%d}`,
		id, testReceiver, rssi, time.Now().UnixMilli())
}

// seed inserts one raddec for id through the intake manager.
func (e *testEnv) seed(t *testing.T, id string, rssi int) {
	t.Helper()
	err := e.intake.HandleRaddec(&raddec.Raddec{
		TransmitterID:     id,
		TransmitterIDType: raddec.IDTypeEUI48,
		RSSISignature: []raddec.Receiver{
			{ReceiverID: testReceiver, ReceiverIDType: raddec.IDTypeEUI64, RSSI: rssi},
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("HandleRaddec() error = %v", err)
	}
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

type okCheck struct{}

func (okCheck) HealthCheck(context.Context) error { return nil }

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	store := presence.NewStore(presence.DefaultConfig())
	mgr := intake.NewManager(store, intake.DefaultConfig())

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"logger", func(d *Deps) { d.Logger = nil }},
		{"store", func(d *Deps) { d.Store = nil }},
		{"intake", func(d *Deps) { d.Intake = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(store, mgr)
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Errorf("New() without %s should fail", tt.name)
			}
		})
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Health = map[string]HealthChecker{"mqtt": failingCheck{}, "database": okCheck{}}
	})
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
	checks, _ := resp["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["mqtt"] != "broker unreachable" {
		t.Errorf("checks = %v", checks)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"https://dashboard.example"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Device Query Tests ────────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/devices", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	if resp["count"] != float64(0) {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestListDevices(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)
	env.seed(t, "aabbccddeeff", -70)

	w := env.do(t, http.MethodGet, "/api/v1/devices", "")
	resp := decodeBody(t, w)
	if resp["count"] != float64(2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}

	w = env.do(t, http.MethodGet, "/api/v1/devices?deviceId="+testDevice+"&deviceIdType=2", "")
	resp = decodeBody(t, w)
	devices, _ := resp["devices"].(map[string]any)
	if len(devices) != 1 {
		t.Fatalf("filtered devices = %v, want one", devices)
	}
	view, _ := devices[testDevice+"/2"].(map[string]any)
	if view["raddec"] == nil {
		t.Errorf("device view = %v, want raddec", view)
	}

	w = env.do(t, http.MethodGet, "/api/v1/devices?deviceIdType=3", "")
	resp = decodeBody(t, w)
	if resp["count"] != float64(0) {
		t.Errorf("count for id type 3 = %v, want 0", resp["count"])
	}
}

func TestListDevices_BadQuery(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric id type", "?deviceIdType=eui"},
		{"negative id type", "?deviceIdType=-1"},
		{"unknown property", "?properties=raddec,location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)

	w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/2?properties=raddec", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	devices, _ := resp["devices"].(map[string]any)
	if _, ok := devices[testDevice+"/2"]; !ok {
		t.Errorf("devices = %v, want %s/2", devices, testDevice)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/3", ""); w.Code != http.StatusNotFound {
		t.Errorf("wrong id type status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id type status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetDevice_Attributes(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)

	dynamb := fmt.Sprintf(`{"deviceId":%q,"deviceIdType":2,"timestamp":%d,"temperature":21.5}`,
		testDevice, time.Now().UnixMilli())
	if w := env.do(t, http.MethodPost, "/api/v1/dynambs", dynamb); w.Code != http.StatusAccepted {
		t.Fatalf("POST dynambs status = %d, body %s", w.Code, w.Body.String())
	}
	statid := fmt.Sprintf(`{"deviceId":%q,"deviceIdType":2,"name":"Tag 7"}`, testDevice)
	if w := env.do(t, http.MethodPost, "/api/v1/statids", statid); w.Code != http.StatusAccepted {
		t.Fatalf("POST statids status = %d, body %s", w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/2?properties=dynamb,statid", "")
	resp := decodeBody(t, w)
	devices, _ := resp["devices"].(map[string]any)
	view, _ := devices[testDevice+"/2"].(map[string]any)

	if view["raddec"] != nil {
		t.Error("raddec returned although not requested")
	}
	dyn, _ := view["dynamb"].(map[string]any)
	if dyn["temperature"] != 21.5 {
		t.Errorf("dynamb = %v, want temperature 21.5", dyn)
	}
	st, _ := view["statid"].(map[string]any)
	if st["name"] != "Tag 7" {
		t.Errorf("statid = %v, want name", st)
	}
}

// ─── Event Log Tests ───────────────────────────────────────────────

func TestDeviceEvents_Disabled(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/2/events", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestDeviceEvents(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "api.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	log := eventlog.New(db)
	for i := range 3 {
		err := log.Record(ctx, &raddec.Raddec{
			TransmitterID:     testDevice,
			TransmitterIDType: raddec.IDTypeEUI48,
			RSSISignature:     []raddec.Receiver{{ReceiverID: testReceiver, ReceiverIDType: 1, RSSI: -60}},
			Timestamp:         time.Now().Add(time.Duration(i) * time.Second),
			Events:            []raddec.EventKind{raddec.EventKeepAlive},
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	env := testServer(t, func(d *Deps) { d.EventLog = log })

	w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/2/events?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["count"] != float64(2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}
	if resp["device"] != testDevice+"/2" {
		t.Errorf("device = %v", resp["device"])
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/"+testDevice+"/2/events?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Context Tests ─────────────────────────────────────────────────

func TestContext(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)

	w := env.do(t, http.MethodGet, "/api/v1/context", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	devices, _ := resp["devices"].(map[string]any)

	entry, _ := devices[testDevice+"/2"].(map[string]any)
	nearest, _ := entry["nearest"].([]any)
	if len(nearest) != 1 {
		t.Fatalf("nearest = %v, want the receiver", nearest)
	}
	// The receiver is closed into the graph as a placeholder.
	stub, ok := devices[testReceiver+"/1"].(map[string]any)
	if !ok {
		t.Fatalf("devices = %v, want placeholder for receiver", devices)
	}
	if n, _ := stub["nearest"].([]any); len(n) != 0 {
		t.Errorf("placeholder nearest = %v, want empty", n)
	}
}

func TestContext_Signatures(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)
	env.seed(t, "aabbccddeeff", -70)

	w := env.do(t, http.MethodGet, "/api/v1/context?signatures="+testDevice+"/2&depth=3", "")
	resp := decodeBody(t, w)
	devices, _ := resp["devices"].(map[string]any)
	if _, ok := devices["aabbccddeeff/2"]; ok {
		t.Error("unrequested device included in context")
	}
	if len(devices) != 2 {
		t.Errorf("devices = %v, want device and receiver placeholder", devices)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/context?signatures=nosig", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad signature status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/context?depth=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("depth=0 status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeviceContext(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)

	w := env.do(t, http.MethodGet, "/api/v1/context/device/"+testDevice+"/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/context/device/unknown/2", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Intake Tests ──────────────────────────────────────────────────

func TestPostRaddecs(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantAccepted float64
		wantRejected float64
	}{
		{
			name:         "single object",
			body:         raddecJSON(testDevice, -60),
			wantStatus:   http.StatusAccepted,
			wantAccepted: 1,
		},
		{
			name:         "array with one invalid",
			body:         "[" + raddecJSON("aabbccddeeff", -70) + `,{"transmitterId":"x","rssiSignature":[]}]`,
			wantStatus:   http.StatusAccepted,
			wantAccepted: 1,
			wantRejected: 1,
		},
		{
			name:         "all invalid",
			body:         `[{"transmitterId":""}]`,
			wantStatus:   http.StatusUnprocessableEntity,
			wantRejected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/raddecs", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decodeBody(t, w)
			if resp["accepted"] != tt.wantAccepted {
				t.Errorf("accepted = %v, want %v", resp["accepted"], tt.wantAccepted)
			}
			if resp["rejected"] != tt.wantRejected {
				t.Errorf("rejected = %v, want %v", resp["rejected"], tt.wantRejected)
			}
		})
	}

	if got := env.store.Len(); got != 2 {
		t.Errorf("store.Len() = %d, want 2", got)
	}
}

func TestPostRaddecs_BadBody(t *testing.T) {
	env := testServer(t)

	for _, body := range []string{"", "not json", "[]"} {
		w := env.do(t, http.MethodPost, "/api/v1/raddecs", body)
		if w.Code != http.StatusBadRequest && w.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %q: status = %d, want 400 or 422", body, w.Code)
		}
	}
}

func TestPostDynambs_UnknownDevice(t *testing.T) {
	env := testServer(t)

	body := fmt.Sprintf(`{"deviceId":"unknown","deviceIdType":2,"timestamp":%d,"temperature":20}`,
		time.Now().UnixMilli())
	w := env.do(t, http.MethodPost, "/api/v1/dynambs", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(w.Body.String(), intake.ErrUnknownDevice.Error()) {
		t.Errorf("body = %s, want unknown device error", w.Body.String())
	}
}

// ─── Stats / Metrics Tests ─────────────────────────────────────────

func TestStats(t *testing.T) {
	env := testServer(t)
	env.seed(t, testDevice, -60)

	w := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats SystemStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Presence.Devices != 1 {
		t.Errorf("presence.devices = %d, want 1", stats.Presence.Devices)
	}
	if stats.Version != "test" {
		t.Errorf("version = %q, want test", stats.Version)
	}
	if stats.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := testServer(t, func(d *Deps) { d.Gatherer = reg })
	env.intake.SetMetrics(intake.NewMetrics(reg, env.store.Len))
	env.seed(t, testDevice, -60)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{"presence_raddecs_total", "presence_devices 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestPrometheusMetrics_NotConfigured(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelRaddec: {}},
	}
	hub.Register(client)

	event := &raddec.Raddec{TransmitterID: testDevice, TransmitterIDType: 2,
		Events: []raddec.EventKind{raddec.EventAppearance}}
	if err := hub.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelRaddec {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelRaddec)
		}
		payload, _ := wsMsg.Payload.(map[string]any)
		if payload["transmitterId"] != testDevice {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelRaddec: {}},
	}
	hub.Register(client)

	d := &presence.Dynamb{DeviceID: testDevice, DeviceIDType: 2, Timestamp: time.Now(),
		Properties: map[string]any{"temperature": 20.0}}
	if err := hub.HandleDynamb(context.Background(), d); err != nil {
		t.Fatalf("HandleDynamb() error = %v", err)
	}

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not close the channel twice.
	hub.Unregister(client)
}

func TestHub_Name(t *testing.T) {
	if got := newTestHub(t).Name(); got != "websocket" {
		t.Errorf("Name() = %q, want websocket", got)
	}
}

// ─── WebSocket Connection Tests ────────────────────────────────────

// connectWebSocket dials the hub of env through an httptest server.
func connectWebSocket(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() }) //nolint:errcheck // Test cleanup
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	env := testServer(t)
	ws := connectWebSocket(t, env)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelRaddec}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	response := readMessage(t, ws)
	if response.Type != WSTypeResponse || response.ID != "sub-1" {
		t.Fatalf("response = %+v, want subscribe response", response)
	}

	event := &raddec.Raddec{TransmitterID: testDevice, TransmitterIDType: 2,
		Events: []raddec.EventKind{raddec.EventDisappearance}}
	if err := env.srv.Hub().HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	msg := readMessage(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelRaddec {
		t.Errorf("message = %+v, want raddec event", msg)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	env := testServer(t)
	ws := connectWebSocket(t, env)

	tests := []struct {
		name     string
		send     any
		wantType string
	}{
		{"ping", WSMessage{Type: WSTypePing, ID: "p-1"}, WSTypePong},
		{"unknown type", WSMessage{Type: "bogus", ID: "b-1"}, WSTypeError},
		{"unknown channel", WSMessage{Type: WSTypeSubscribe, ID: "s-1",
			Payload: WSSubscribePayload{Channels: []string{"scenes"}}}, WSTypeError},
		{"unsubscribe", WSMessage{Type: WSTypeUnsubscribe, ID: "u-1",
			Payload: WSSubscribePayload{Channels: []string{ChannelDynamb}}}, WSTypeResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteJSON(tt.send); err != nil {
				t.Fatalf("write: %v", err)
			}
			if got := readMessage(t, ws); got.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := readMessage(t, ws); got.Type != WSTypeError {
			t.Errorf("reply type = %q, want %q", got.Type, WSTypeError)
		}
	})
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	store := presence.NewStore(presence.DefaultConfig())
	deps := testDeps(store, intake.NewManager(store, intake.DefaultConfig()))
	deps.Config.Port = 19180

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start() should fail")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	addr := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", deps.Config.Port)
	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get(addr)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := http.Get(addr); err == nil {
		t.Error("server still responding after Close()")
	}
}
