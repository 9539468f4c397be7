// Package ha announces the light to Home Assistant over MQTT using its
// discovery convention and mirrors state both ways: HA commands land in the
// settings store, local changes are published back as state.
package ha

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"lighttrack/internal/config"
	"lighttrack/internal/render"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
)

const (
	node           = "lighttrack"
	connectTimeout = 5 * time.Second
)

type Client struct {
	store *config.Store
	trk   *sensor.Tracker
	sched *schedule.Controller
	log   zerolog.Logger

	device string
	prefix string
	mq     mqtt.Client
}

func NewClient(store *config.Store, trk *sensor.Tracker, sched *schedule.Controller, log zerolog.Logger) *Client {
	cfg := store.Current()
	return &Client{
		store:  store,
		trk:    trk,
		sched:  sched,
		log:    log,
		device: cfg.MQTT.DeviceName,
		prefix: cfg.MQTT.DiscoveryPrefix,
	}
}

func (c *Client) stateTopic() string        { return fmt.Sprintf("%s/%s/state", node, c.device) }
func (c *Client) setTopic() string          { return fmt.Sprintf("%s/%s/set", node, c.device) }
func (c *Client) availabilityTopic() string { return fmt.Sprintf("%s/%s/availability", node, c.device) }
func (c *Client) distanceTopic() string     { return fmt.Sprintf("%s/%s/distance", node, c.device) }

func (c *Client) lightDiscoveryTopic() string {
	return fmt.Sprintf("%s/light/%s_light/config", c.prefix, c.device)
}

func (c *Client) distanceDiscoveryTopic() string {
	return fmt.Sprintf("%s/sensor/%s_distance/config", c.prefix, c.device)
}

// Start connects to the broker and registers the device. An unreachable
// broker is an error the caller may choose to tolerate; the rest of the
// controller runs fine without it.
func (c *Client) Start() error {
	cfg := c.store.Current()
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("no broker configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(node + "-" + c.device).
		SetUsername(cfg.MQTT.Username).
		SetPassword(cfg.MQTT.Password).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetWill(c.availabilityTopic(), "offline", 1, true).
		SetOnConnectHandler(c.onConnect)

	c.mq = mqtt.NewClient(opts)
	tok := c.mq.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect: timeout after %s", connectTimeout)
	}
	if tok.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", tok.Error())
	}
	return nil
}

func (c *Client) Stop() {
	if c.mq == nil || !c.mq.IsConnected() {
		return
	}
	c.mq.Publish(c.availabilityTopic(), 1, true, "offline")
	c.mq.Disconnect(250)
}

func (c *Client) onConnect(mq mqtt.Client) {
	c.log.Info().Str("device", c.device).Msg("mqtt connected")
	mq.Publish(c.availabilityTopic(), 1, true, "online")
	mq.Publish(c.lightDiscoveryTopic(), 1, true, c.lightDiscoveryPayload())
	mq.Publish(c.distanceDiscoveryTopic(), 1, true, c.distanceDiscoveryPayload())
	mq.Subscribe(c.setTopic(), 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleCommand(msg.Payload())
	})
	c.PublishState()
}

// lightCommand is the Home Assistant JSON-schema light command payload.
type lightCommand struct {
	State      string `json:"state"`
	Brightness *int   `json:"brightness"`
	Color      *struct {
		R uint8 `json:"r"`
		G uint8 `json:"g"`
		B uint8 `json:"b"`
	} `json:"color"`
}

func (c *Client) handleCommand(payload []byte) {
	var cmd lightCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.log.Warn().Err(err).Str("payload", string(payload)).Msg("bad mqtt command")
		return
	}
	applyCommand(&cmd, c.sched, c.store)
	c.PublishState()
}

func applyCommand(cmd *lightCommand, sched *schedule.Controller, store *config.Store) {
	switch cmd.State {
	case "ON":
		sched.SetLight(true)
	case "OFF":
		sched.SetLight(false)
	}
	if cmd.Brightness == nil && cmd.Color == nil {
		return
	}
	store.Update(func(c *config.Config) {
		if cmd.Brightness != nil {
			c.Render.MovingIntensity = float64(*cmd.Brightness) / 255.0
		}
		if cmd.Color != nil {
			c.Render.BaseColor = render.Color{R: cmd.Color.R, G: cmd.Color.G, B: cmd.Color.B}
		}
	})
}

type lightState struct {
	State      string `json:"state"`
	Brightness int    `json:"brightness"`
	ColorMode  string `json:"color_mode"`
	Color      struct {
		R uint8 `json:"r"`
		G uint8 `json:"g"`
		B uint8 `json:"b"`
	} `json:"color"`
}

func statePayload(cfg *config.Config) []byte {
	st := lightState{State: "OFF", ColorMode: "rgb"}
	if cfg.Render.LightOn {
		st.State = "ON"
	}
	st.Brightness = int(cfg.Render.MovingIntensity*255 + 0.5)
	st.Color.R = cfg.Render.BaseColor.R
	st.Color.G = cfg.Render.BaseColor.G
	st.Color.B = cfg.Render.BaseColor.B
	b, _ := json.Marshal(st)
	return b
}

// PublishState pushes the current light state to Home Assistant. Safe to
// call when the broker is down or never connected.
func (c *Client) PublishState() {
	if c.mq == nil || !c.mq.IsConnected() {
		return
	}
	c.mq.Publish(c.stateTopic(), 1, true, statePayload(c.store.Current()))
}

// PublishDistance reports the latest reading for the distance sensor entity.
func (c *Client) PublishDistance() {
	if c.mq == nil || !c.mq.IsConnected() {
		return
	}
	c.mq.Publish(c.distanceTopic(), 0, false, fmt.Sprintf("%d", c.trk.Distance()))
}

func (c *Client) lightDiscoveryPayload() []byte {
	b, _ := json.Marshal(map[string]any{
		"name":                  c.device,
		"unique_id":             c.device + "_light",
		"schema":                "json",
		"state_topic":           c.stateTopic(),
		"command_topic":         c.setTopic(),
		"availability_topic":    c.availabilityTopic(),
		"brightness":            true,
		"supported_color_modes": []string{"rgb"},
		"device": map[string]any{
			"identifiers": []string{c.device},
			"name":        c.device,
			"model":       "motion light strip",
		},
	})
	return b
}

func (c *Client) distanceDiscoveryPayload() []byte {
	b, _ := json.Marshal(map[string]any{
		"name":                c.device + " distance",
		"unique_id":           c.device + "_distance",
		"state_topic":         c.distanceTopic(),
		"availability_topic":  c.availabilityTopic(),
		"unit_of_measurement": "mm",
		"device_class":        "distance",
		"device": map[string]any{
			"identifiers": []string{c.device},
		},
	})
	return b
}
