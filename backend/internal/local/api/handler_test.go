package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/controller"
	localtypes "greenhouse-monitor/backend/internal/local/api/types"
	localservices "greenhouse-monitor/backend/internal/local/services"
	apitypes "greenhouse-monitor/backend/internal/shared/api"
	sharedtypes "greenhouse-monitor/backend/internal/shared/types"
	"greenhouse-monitor/backend/internal/poller"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/router"
	"greenhouse-monitor/backend/pkg/utils"
)

// fakeChannel serves a public channel with a single feed entry.
type fakeChannel struct {
	mu         sync.Mutex
	feed       string
	down       bool
	rejectCmds bool
	updates    []string
}

func (c *fakeChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.URL.Path == "/update":
		c.updates = append(c.updates, r.URL.RawQuery)

		if c.rejectCmds {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		_, _ = io.WriteString(w, "42")
	case strings.HasSuffix(r.URL.Path, "/feeds.json"):
		_, _ = io.WriteString(w, `{"channel":{"id":12345},"feeds":[`+c.feed+`]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (c *fakeChannel) set(fn func(c *fakeChannel)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c)
}

type memStore struct {
	mu    sync.Mutex
	creds telemetry.Credentials
}

func (m *memStore) Credentials(context.Context) (telemetry.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.creds, nil
}

func (m *memStore) Set(_ context.Context, c telemetry.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ChannelID != "" {
		m.creds.ChannelID = c.ChannelID
	}

	if c.ReadKey != "" {
		m.creds.ReadKey = c.ReadKey
	}

	if c.WriteKey != "" {
		m.creds.WriteKey = c.WriteKey
	}

	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds = telemetry.Credentials{}

	return nil
}

type fakeHistory struct {
	entries []commandlog.Entry
	limit   int
	err     error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]commandlog.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

type okChecker struct{}

func (okChecker) Check(context.Context) error { return nil }

type testServer struct {
	handler http.Handler
	channel *fakeChannel
	store   *memStore
	history *fakeHistory
	svc     *localservices.Services
}

const validFeed = `{"created_at":"2026-03-01T12:00:00Z","entry_id":7,"field1":"24.5","field2":"61","field3":"38","field4":"72","field5":"1","field6":"0","field7":"1"}`

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ch := &fakeChannel{feed: validFeed}
	remote := httptest.NewServer(ch)
	t.Cleanup(remote.Close)

	store := &memStore{creds: telemetry.Credentials{ChannelID: "12345", ReadKey: "READKEY1", WriteKey: "WRITEKEY"}}
	history := &fakeHistory{}

	client := telemetry.New(l, store, telemetry.WithBaseURL(remote.URL), telemetry.WithHTTPClient(remote.Client()))
	ctrl := controller.New(l, client, controller.WithReconcileGrace(0))
	t.Cleanup(ctrl.Close)

	svc := localservices.NewServices(l, localservices.Dependencies{
		Telemetry:   client,
		Controller:  ctrl,
		Poller:      poller.New(l, client, 0),
		Credentials: store,
		Commands:    history,
		Database:    okChecker{},
	})

	h := NewHandler(l, svc)
	mw := apitypes.NewMiddlewareHandler(l)
	rb := router.NewRouteBuilder(l)

	rb.Route("/api", func(rb *router.RouteBuilder) {
		rb.Use(mw.RequestIDMiddleware, mw.LoggerMiddleware, mw.RecoveryMiddleware)
		h.Register(rb)
		h.RegisterOperations("/operations", rb, nil)
	})

	return &testServer{handler: rb.Handler(), channel: ch, store: store, history: history, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	v, err := utils.FromJSONStreamLoose[T](rec.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}

func TestPingAndHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ping = %d %s", rec.Code, rec.Body.String())
	}

	if ping := decode[sharedtypes.PingResponse](t, rec); ping.Status != sharedtypes.PingStatusOK ||
		ping.Build == "" || ping.ServerTime.IsZero() {
		t.Errorf("ping = %+v", ping)
	}

	if rec.Header().Get(apitypes.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	rec = s.do(t, http.MethodGet, "/api/health", "")
	health := decode[localtypes.HealthResponse](t, rec)

	if rec.Code != http.StatusOK || !health.Database || health.MQTTEnabled || !health.Configured {
		t.Errorf("health = %d %+v", rec.Code, health)
	}

	if health.Build["version"] == "" {
		t.Error("health missing build version")
	}
}

func TestLatestReading(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/readings/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := decode[localtypes.ReadingResponse](t, rec)
	want := telemetry.Reading{Temperature: 24.5, Humidity: 61, SoilMoisture: 38, LightLevel: 72, Timestamp: "2026-03-01T12:00:00Z"}

	if got.Source != telemetry.SourceFresh || got.Reading != want || got.FetchedAt == nil {
		t.Fatalf("latest = %+v", got)
	}

	s.channel.set(func(c *fakeChannel) { c.down = true })

	got = decode[localtypes.ReadingResponse](t, s.do(t, http.MethodGet, "/api/readings/latest", ""))
	if got.Source != telemetry.SourceCached || got.Reading != want {
		t.Fatalf("latest while down = %+v, want cached reading", got)
	}

	if rec := s.do(t, http.MethodDelete, "/api/readings/cache", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear cache = %d", rec.Code)
	}

	got = decode[localtypes.ReadingResponse](t, s.do(t, http.MethodGet, "/api/readings/latest", ""))
	if got.Source != telemetry.SourceDefault || got.FetchedAt != nil || got.AgeSeconds != nil {
		t.Errorf("latest after clear = %+v, want default", got)
	}
}

func TestRefreshReading(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/readings/refresh", "")
	if rec.Code != http.StatusOK || decode[localtypes.ReadingResponse](t, rec).Source != telemetry.SourceFresh {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body.String())
	}

	if _, ok := s.svc.Poller.Last(); !ok {
		t.Error("refresh did not go through the poller")
	}
}

func TestReadingHistory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{name: "default", query: "", wantCode: http.StatusOK},
		{name: "explicit", query: "?results=3", wantCode: http.StatusOK},
		{name: "zero", query: "?results=0", wantCode: http.StatusBadRequest},
		{name: "too many", query: "?results=8001", wantCode: http.StatusBadRequest},
		{name: "not a number", query: "?results=ten", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)

			rec := s.do(t, http.MethodGet, "/api/readings/history"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}

			if tt.wantCode != http.StatusOK {
				if errs := decode[sharedtypes.ErrorResponse](t, rec).Errors; errs["results"] == "" {
					t.Errorf("missing field error: %v", errs)
				}

				return
			}

			if got := decode[localtypes.HistoryResponse](t, rec).Readings; len(got) != 1 || got[0].Temperature != 24.5 {
				t.Errorf("readings = %+v", got)
			}
		})
	}
}

func TestReadingHistory_KeepsZeroReadings(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.channel.set(func(c *fakeChannel) {
		c.feed = `{"created_at":"2026-03-01T11:45:00Z","entry_id":6,"field1":"0","field2":"0","field3":"0","field4":"0"},` + validFeed
	})

	rec := s.do(t, http.MethodGet, "/api/readings/history?results=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	got := decode[localtypes.HistoryResponse](t, rec).Readings
	if len(got) != 2 {
		t.Fatalf("readings = %+v, want the zero entry kept", got)
	}

	if got[0].Temperature != 0 || got[0].Timestamp != "2026-03-01T11:45:00Z" || got[1].Temperature != 24.5 {
		t.Errorf("readings = %+v", got)
	}
}

func TestReadingHistory_UnavailableIsEmpty(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.channel.set(func(c *fakeChannel) { c.down = true })

	rec := s.do(t, http.MethodGet, "/api/readings/history", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"readings":[]`) {
		t.Errorf("history = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDeviceStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	got := decode[localtypes.DeviceStatusResponse](t, s.do(t, http.MethodGet, "/api/devices/status", ""))
	want := telemetry.DeviceStatus{GrowLight: true, AutoMode: true}

	if !got.Live || got.Remote != want || got.Intended.DeviceStatus != want {
		t.Fatalf("status = %+v", got)
	}

	s.channel.set(func(c *fakeChannel) { c.down = true })

	got = decode[localtypes.DeviceStatusResponse](t, s.do(t, http.MethodGet, "/api/devices/status", ""))
	if got.Live || got.Remote != (telemetry.DeviceStatus{}) || got.Intended.DeviceStatus != want {
		t.Errorf("status while down = %+v, intended state should be kept", got)
	}
}

func TestSetActuator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		body       string
		reject     bool
		wantCode   int
		wantUpdate string
		check      func(t *testing.T, st controller.State)
	}{
		{
			name: "grow light on", path: "/api/devices/growLight", body: `{"on":true}`,
			wantCode: http.StatusOK, wantUpdate: "field5=1",
			check: func(t *testing.T, st controller.State) {
				if !st.GrowLight {
					t.Errorf("state = %+v", st)
				}
			},
		},
		{
			name: "watering with duration", path: "/api/devices/watering", body: `{"on":true,"durationSeconds":120}`,
			wantCode: http.StatusOK, wantUpdate: "field6=1",
			check: func(t *testing.T, st controller.State) {
				if !st.Watering || !st.AutoStopPending || st.WateringUntil == nil {
					t.Errorf("state = %+v", st)
				}
			},
		},
		{
			name: "rejected command reverts", path: "/api/devices/autoMode", body: `{"on":true}`, reject: true,
			wantCode: http.StatusBadGateway, wantUpdate: "field7=1",
		},
		{name: "unknown actuator", path: "/api/devices/heater", body: `{"on":true}`, wantCode: http.StatusNotFound},
		{name: "negative duration", path: "/api/devices/watering", body: `{"on":true,"durationSeconds":-5}`, wantCode: http.StatusBadRequest},
		{name: "too long", path: "/api/devices/watering", body: `{"on":true,"durationSeconds":7200}`, wantCode: http.StatusBadRequest},
		{
			name: "duration wrapping into range", path: "/api/devices/watering",
			body: `{"on":true,"durationSeconds":36028797018964028}`, wantCode: http.StatusBadRequest,
		},
		{name: "bad body", path: "/api/devices/watering", body: `{"on":"yes"}`, wantCode: http.StatusBadRequest},
		{name: "empty body", path: "/api/devices/watering", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)
			s.channel.set(func(c *fakeChannel) { c.rejectCmds = tt.reject })

			rec := s.do(t, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}

			var updates []string

			s.channel.set(func(c *fakeChannel) { updates = c.updates })

			if tt.wantUpdate == "" {
				if len(updates) != 0 {
					t.Errorf("unexpected updates %v", updates)
				}

				return
			}

			if len(updates) != 1 || !strings.Contains(updates[0], tt.wantUpdate) {
				t.Errorf("updates = %v, want one containing %s", updates, tt.wantUpdate)
			}

			if tt.reject {
				if st := s.svc.Controller.State(); st.AutoMode {
					t.Errorf("state not reverted: %+v", st)
				}

				return
			}

			tt.check(t, decode[controller.State](t, rec))
		})
	}
}

func TestDeviceState(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	if rec := s.do(t, http.MethodPut, "/api/devices/growLight", `{"on":true}`); rec.Code != http.StatusOK {
		t.Fatalf("set = %d", rec.Code)
	}

	s.channel.set(func(c *fakeChannel) { c.down = true })

	st := decode[controller.State](t, s.do(t, http.MethodGet, "/api/devices/state", ""))
	if !st.GrowLight || st.Watering {
		t.Errorf("state = %+v", st)
	}
}

func TestCommandLog(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.history.entries = []commandlog.Entry{{ID: "a", Actuator: "watering", On: false, Accepted: true, Origin: "auto-stop"}}

	rec := s.do(t, http.MethodGet, "/api/devices/commands?limit=5", "")
	got := decode[localtypes.CommandLogResponse](t, rec)

	if rec.Code != http.StatusOK || len(got.Commands) != 1 || got.Commands[0].Origin != "auto-stop" || s.history.limit != 5 {
		t.Errorf("commands = %d %+v (limit %d)", rec.Code, got, s.history.limit)
	}

	if rec := s.do(t, http.MethodGet, "/api/devices/commands?limit=501", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=501 status = %d", rec.Code)
	}

	s.history.err = errors.New("database is locked")

	if rec := s.do(t, http.MethodGet, "/api/devices/commands", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d", rec.Code)
	}
}

func TestCredentials(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	got := decode[localtypes.CredentialsResponse](t, s.do(t, http.MethodGet, "/api/credentials", ""))
	if got.Credentials.ReadKey != "READ****" || got.Credentials.ChannelID != "12345" || !got.ReadConfigured || !got.WriteConfigured {
		t.Fatalf("credentials = %+v", got)
	}

	if strings.Contains(s.do(t, http.MethodGet, "/api/credentials", "").Body.String(), "WRITEKEY") {
		t.Fatal("write key leaked")
	}

	if rec := s.do(t, http.MethodPut, "/api/credentials", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty update status = %d", rec.Code)
	}

	if rec := s.do(t, http.MethodPut, "/api/credentials", `{"channelID":"1","apiKey":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}

	// Populate the cache, then switch channel
	s.do(t, http.MethodGet, "/api/readings/latest", "")

	rec := s.do(t, http.MethodPut, "/api/credentials", `{"channelID":" 777 "}`)
	if rec.Code != http.StatusOK || decode[localtypes.CredentialsResponse](t, rec).Credentials.ChannelID != "777" {
		t.Fatalf("put = %d %s", rec.Code, rec.Body.String())
	}

	if _, ok := s.svc.Telemetry.Cache().Get(); ok {
		t.Error("cache kept after channel change")
	}

	if rec := s.do(t, http.MethodDelete, "/api/credentials", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	got = decode[localtypes.CredentialsResponse](t, s.do(t, http.MethodGet, "/api/credentials", ""))
	if got.ReadConfigured || got.WriteConfigured {
		t.Errorf("credentials after logout = %+v", got)
	}

	// Without credentials reads degrade to the default reading
	latest := decode[localtypes.ReadingResponse](t, s.do(t, http.MethodGet, "/api/readings/latest", ""))
	if latest.Source != telemetry.SourceDefault {
		t.Errorf("latest after logout = %+v", latest)
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	got := decode[localtypes.OperationsResponse](t, s.do(t, http.MethodGet, "/api/operations", ""))
	if len(got.MQTT) != 0 {
		t.Errorf("mqtt operations = %+v", got.MQTT)
	}

	ids := map[string]bool{}
	for _, r := range got.Routes {
		ids[r.OperationID] = true
	}

	for _, want := range []string{"ping", "health", "getLatestReading", "setActuator", "deleteCredentials", "listOperations"} {
		if !ids[want] {
			t.Errorf("operation %s not listed", want)
		}
	}
}
