package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lighttrack/internal/render"
)

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StripConfig struct {
	NumLEDs int    `yaml:"num_leds"`
	Driver  string `yaml:"driver"` // "spi" | "screen" | "sim"
	SPIDev  string `yaml:"spi_dev"`
}

type SensorConfig struct {
	Port            string `yaml:"port"` // empty selects the simulator
	BaudRate        int    `yaml:"baud_rate"`
	MinDistance     uint16 `yaml:"min_distance"`
	MaxDistance     uint16 `yaml:"max_distance"`
	NoiseThreshold  uint16 `yaml:"noise_threshold"`
	DefaultDistance uint16 `yaml:"default_distance"`
}

type RenderConfig struct {
	BaseColor           render.Color `yaml:"base_color"`
	MovingIntensity     float64      `yaml:"moving_intensity"`     // 0..1
	BackgroundIntensity float64      `yaml:"background_intensity"` // 0..0.1
	BeamLength          int          `yaml:"beam_length"`          // 1..num_leds
	CenterShift         int          `yaml:"center_shift"`         // +-num_leds/2
	TrailLength         int          `yaml:"trail_length"`         // 0..num_leds/2
	HoldSeconds         int          `yaml:"hold_seconds"`         // 1..60
	FrameIntervalMS     int          `yaml:"frame_interval_ms"`    // 5..100
	BackgroundMode      bool         `yaml:"background_mode"`
	LightOn             bool         `yaml:"light_on"`
}

type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"` // "HH:MM"
	End     string `yaml:"end"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"` // empty disables MQTT
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DeviceName      string `yaml:"device_name"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Strip    StripConfig    `yaml:"strip"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Render   RenderConfig   `yaml:"render"`
	Schedule ScheduleConfig `yaml:"schedule"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Strip: StripConfig{
			NumLEDs: 300,
			Driver:  "spi",
			SPIDev:  "/dev/spidev0.0",
		},
		Sensor: SensorConfig{
			Port:            "/dev/ttyAMA0",
			BaudRate:        115200,
			MinDistance:     0,
			MaxDistance:     4000,
			NoiseThreshold:  10,
			DefaultDistance: 2000,
		},
		Render: RenderConfig{
			BaseColor:           render.Color{R: 255, G: 255, B: 255},
			MovingIntensity:     0.8,
			BackgroundIntensity: 0.02,
			BeamLength:          20,
			CenterShift:         0,
			TrailLength:         10,
			HoldSeconds:         5,
			FrameIntervalMS:     20,
			BackgroundMode:      false,
			LightOn:             true,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Start:   "20:00",
			End:     "08:00",
		},
		MQTT: MQTTConfig{
			DeviceName:      "lighttrack",
			DiscoveryPrefix: "homeassistant",
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.Clamp()
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Clamp forces every parameter into its documented range. This is the single
// validation point: the renderer trusts what it is handed.
func (c *Config) Clamp() {
	if c.Strip.NumLEDs < 1 {
		c.Strip.NumLEDs = 1
	}
	n := c.Strip.NumLEDs

	if c.Sensor.BaudRate <= 0 {
		c.Sensor.BaudRate = 115200
	}
	if c.Sensor.MaxDistance < c.Sensor.MinDistance {
		c.Sensor.MaxDistance = c.Sensor.MinDistance
	}
	c.Sensor.DefaultDistance = clampU16(c.Sensor.DefaultDistance, c.Sensor.MinDistance, c.Sensor.MaxDistance)

	r := &c.Render
	r.MovingIntensity = clampF(r.MovingIntensity, 0, 1)
	r.BackgroundIntensity = clampF(r.BackgroundIntensity, 0, 0.1)
	r.BeamLength = clampI(r.BeamLength, 1, n)
	r.CenterShift = clampI(r.CenterShift, -n/2, n/2)
	r.TrailLength = clampI(r.TrailLength, 0, n/2)
	r.HoldSeconds = clampI(r.HoldSeconds, 1, 60)
	r.FrameIntervalMS = clampI(r.FrameIntervalMS, 5, 100)
}

// RenderParams converts the persisted settings into the per-frame parameter
// snapshot the renderer consumes.
func (c *Config) RenderParams() render.Params {
	r := c.Render
	return render.Params{
		BaseColor:           r.BaseColor,
		MovingIntensity:     r.MovingIntensity,
		BackgroundIntensity: r.BackgroundIntensity,
		BeamLength:          r.BeamLength,
		CenterShift:         r.CenterShift,
		TrailLength:         r.TrailLength,
		Hold:                time.Duration(r.HoldSeconds) * time.Second,
		BackgroundMode:      r.BackgroundMode,
		LightOn:             r.LightOn,
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampU16(v, lo, hi uint16) uint16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
