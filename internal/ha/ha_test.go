package ha

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighttrack/internal/config"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
)

func newTestClient() (*Client, *config.Store) {
	cfg := config.Default()
	store := config.NewStore("", cfg, zerolog.Nop())
	trk := sensor.NewTracker(cfg.Sensor.NoiseThreshold, cfg.Sensor.DefaultDistance, time.Now())
	sched := schedule.NewController(store, zerolog.Nop())
	return NewClient(store, trk, sched, zerolog.Nop()), store
}

func TestTopics(t *testing.T) {
	c, _ := newTestClient()
	assert.Equal(t, "lighttrack/lighttrack/state", c.stateTopic())
	assert.Equal(t, "lighttrack/lighttrack/set", c.setTopic())
	assert.Equal(t, "lighttrack/lighttrack/availability", c.availabilityTopic())
	assert.Equal(t, "homeassistant/light/lighttrack_light/config", c.lightDiscoveryTopic())
	assert.Equal(t, "homeassistant/sensor/lighttrack_distance/config", c.distanceDiscoveryTopic())
}

func TestHandleCommandOnOff(t *testing.T) {
	c, store := newTestClient()

	c.handleCommand([]byte(`{"state":"OFF"}`))
	assert.False(t, store.Current().Render.LightOn)
	assert.True(t, c.sched.Overridden())

	c.handleCommand([]byte(`{"state":"ON"}`))
	assert.True(t, store.Current().Render.LightOn)
}

func TestHandleCommandBrightnessAndColor(t *testing.T) {
	c, store := newTestClient()

	c.handleCommand([]byte(`{"state":"ON","brightness":128,"color":{"r":10,"g":20,"b":30}}`))

	cfg := store.Current()
	assert.InDelta(t, 128.0/255.0, cfg.Render.MovingIntensity, 1e-9)
	assert.Equal(t, uint8(10), cfg.Render.BaseColor.R)
	assert.Equal(t, uint8(20), cfg.Render.BaseColor.G)
	assert.Equal(t, uint8(30), cfg.Render.BaseColor.B)
}

func TestHandleCommandIgnoresGarbage(t *testing.T) {
	c, store := newTestClient()
	before := store.Current().Render

	c.handleCommand([]byte(`not json`))
	assert.Equal(t, before, store.Current().Render)
}

func TestStatePayload(t *testing.T) {
	cfg := config.Default()
	cfg.Render.MovingIntensity = 0.5
	cfg.Render.LightOn = true

	var st lightState
	require.NoError(t, json.Unmarshal(statePayload(cfg), &st))
	assert.Equal(t, "ON", st.State)
	assert.Equal(t, 128, st.Brightness)
	assert.Equal(t, uint8(255), st.Color.R)

	cfg.Render.LightOn = false
	require.NoError(t, json.Unmarshal(statePayload(cfg), &st))
	assert.Equal(t, "OFF", st.State)
}

func TestDiscoveryPayloads(t *testing.T) {
	c, _ := newTestClient()

	var light map[string]any
	require.NoError(t, json.Unmarshal(c.lightDiscoveryPayload(), &light))
	assert.Equal(t, "json", light["schema"])
	assert.Equal(t, c.setTopic(), light["command_topic"])
	assert.Equal(t, c.stateTopic(), light["state_topic"])
	assert.Equal(t, true, light["brightness"])

	var dist map[string]any
	require.NoError(t, json.Unmarshal(c.distanceDiscoveryPayload(), &dist))
	assert.Equal(t, "mm", dist["unit_of_measurement"])
	assert.Equal(t, c.distanceTopic(), dist["state_topic"])
}

func TestStartWithoutBrokerFails(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = ""
	store := config.NewStore("", cfg, zerolog.Nop())
	trk := sensor.NewTracker(10, 2000, time.Now())
	sched := schedule.NewController(store, zerolog.Nop())
	c := NewClient(store, trk, sched, zerolog.Nop())
	assert.Error(t, c.Start())
}
