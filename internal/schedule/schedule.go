package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"lighttrack/internal/config"
)

// Window is a daily on-interval in minutes since midnight. Start after end
// means the window spans midnight (e.g. 20:00 to 08:00).
type Window struct {
	start int
	end   int
}

func ParseWindow(start, end string) (Window, error) {
	s, err := parseHHMM(start)
	if err != nil {
		return Window{}, fmt.Errorf("start time: %w", err)
	}
	e, err := parseHHMM(end)
	if err != nil {
		return Window{}, fmt.Errorf("end time: %w", err)
	}
	return Window{start: s, end: e}, nil
}

// Contains reports whether the wall-clock time falls inside the window.
func (w Window) Contains(t time.Time) bool {
	cur := t.Hour()*60 + t.Minute()
	if w.start <= w.end {
		return cur >= w.start && cur < w.end
	}
	return cur >= w.start || cur < w.end
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	return h*60 + m, nil
}

// Controller applies the configured window to the light-enabled setting.
// A manual toggle (web or MQTT) sets an override and the schedule stands
// down until the override is cleared.
type Controller struct {
	store    *config.Store
	log      zerolog.Logger
	override atomic.Bool
}

func NewController(store *config.Store, log zerolog.Logger) *Controller {
	return &Controller{store: store, log: log}
}

// SetLight is the manual light switch. It wins over the schedule.
func (c *Controller) SetLight(on bool) {
	c.override.Store(true)
	c.store.Update(func(cfg *config.Config) { cfg.Render.LightOn = on })
	c.log.Info().Bool("on", on).Msg("light set manually, schedule overridden")
}

// ClearOverride hands control back to the schedule.
func (c *Controller) ClearOverride() {
	c.override.Store(false)
}

func (c *Controller) Overridden() bool {
	return c.override.Load()
}

// Apply evaluates the schedule once against the given time.
func (c *Controller) Apply(now time.Time) {
	cfg := c.store.Current()
	if !cfg.Schedule.Enabled || c.override.Load() {
		return
	}
	w, err := ParseWindow(cfg.Schedule.Start, cfg.Schedule.End)
	if err != nil {
		c.log.Warn().Err(err).Msg("invalid schedule, skipping")
		return
	}
	shouldBeOn := w.Contains(now)
	if cfg.Render.LightOn == shouldBeOn {
		return
	}
	c.store.Update(func(cfg *config.Config) { cfg.Render.LightOn = shouldBeOn })
	c.log.Info().Bool("on", shouldBeOn).Msg("schedule applied")
}

// Run re-evaluates the schedule every second until cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Apply(time.Now())
		}
	}
}
