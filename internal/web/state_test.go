package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighttrack/internal/config"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
)

func newTestState() (*State, *config.Store, *sensor.Tracker) {
	cfg := config.Default()
	store := config.NewStore("", cfg, zerolog.Nop())
	trk := sensor.NewTracker(cfg.Sensor.NoiseThreshold, cfg.Sensor.DefaultDistance, time.Now())
	sched := schedule.NewController(store, zerolog.Nop())
	return NewState(store, trk, sched, zerolog.Nop()), store, trk
}

func getJSON(t *testing.T, srv *httptest.Server, path string) map[string]any {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func TestStatusReportsTrackerState(t *testing.T) {
	s, _, trk := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	trk.Update(1500, time.Now())

	out := getJSON(t, srv, "/api/status")
	assert.Equal(t, float64(1500), out["distance"])
	assert.Equal(t, "approaching", out["direction"])
	assert.Equal(t, true, out["light_on"])
}

func TestParamsRoundTrip(t *testing.T) {
	s, store, _ := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/params", `{
		"moving_intensity": 0.5,
		"beam_length": 42,
		"base_color": {"r": 255, "g": 0, "b": 128},
		"background_mode": false
	}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := store.Current()
	assert.Equal(t, 0.5, cfg.Render.MovingIntensity)
	assert.Equal(t, 42, cfg.Render.BeamLength)
	assert.Equal(t, uint8(128), cfg.Render.BaseColor.B)
	assert.False(t, cfg.Render.BackgroundMode)

	out := getJSON(t, srv, "/api/params")
	assert.Equal(t, 0.5, out["moving_intensity"])
	assert.Equal(t, float64(42), out["beam_length"])
}

func TestParamsClampOutOfRange(t *testing.T) {
	s, store, _ := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/params", `{"moving_intensity": 7.0, "background_intensity": 0.9}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := store.Current()
	assert.Equal(t, 1.0, cfg.Render.MovingIntensity)
	assert.Equal(t, 0.1, cfg.Render.BackgroundIntensity)
}

func TestParamsRejectsBadInput(t *testing.T) {
	s, _, _ := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/params", `{"beam_length": `)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv, "/api/params", `{"schedule_start": "25:99"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLightToggleSetsOverride(t *testing.T) {
	s, store, _ := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := postJSON(t, srv, "/api/light", `{"on": false}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["light_on"])
	assert.Equal(t, true, out["overridden"])
	assert.False(t, store.Current().Render.LightOn)

	resp = postJSON(t, srv, "/api/light", `{"clear_override": true}`)
	resp.Body.Close()
	assert.False(t, s.sched.Overridden())
}

func TestFrameStreamDeliversFrames(t *testing.T) {
	s, _, trk := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The register happens in the upgrade handler before it returns, but
	// give the server a beat to finish the handshake bookkeeping.
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 1
	}, time.Second, 5*time.Millisecond)

	trk.Update(800, time.Now())
	s.PublishFrame([]byte{1, 2, 3}, trk.Snapshot())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		FrameID   uint64 `json:"frame_id"`
		Distance  uint16 `json:"distance"`
		Direction string `json:"direction"`
		RGB       []byte `json:"rgb"`
	}
	require.NoError(t, json.Unmarshal(msg, &frame))
	assert.Equal(t, uint64(1), frame.FrameID)
	assert.Equal(t, uint16(800), frame.Distance)
	assert.Equal(t, "approaching", frame.Direction)
	assert.Equal(t, []byte{1, 2, 3}, frame.RGB)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestState()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	out := getJSON(t, srv, "/health")
	assert.Contains(t, out, "uptime_s")
	assert.Equal(t, float64(300), out["num_leds"])
}
