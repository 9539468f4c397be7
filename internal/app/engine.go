// Package app runs the pipeline: sensor reader feeding the motion tracker,
// the schedule controller, and the render loop pushing frames to the strip.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lighttrack/internal/config"
	"lighttrack/internal/led"
	"lighttrack/internal/render"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
)

// statusInterval paces the periodic distance log and MQTT sensor update.
const statusInterval = 5 * time.Second

// FramePublisher receives every rendered frame. The web layer implements it
// to stream previews; Nop discards.
type FramePublisher interface {
	PublishFrame(rgb []byte, snap sensor.Snapshot)
}

type NopPublisher struct{}

func (NopPublisher) PublishFrame([]byte, sensor.Snapshot) {}

// DistancePublisher is the optional periodic telemetry hook (MQTT sensor).
type DistancePublisher interface {
	PublishDistance()
}

type Engine struct {
	store    *config.Store
	trk      *sensor.Tracker
	reader   *sensor.Reader
	sched    *schedule.Controller
	renderer *render.Renderer
	driver   led.Driver
	pub      FramePublisher
	dist     DistancePublisher
	log      zerolog.Logger
}

func NewEngine(store *config.Store, trk *sensor.Tracker, reader *sensor.Reader,
	sched *schedule.Controller, renderer *render.Renderer, driver led.Driver,
	pub FramePublisher, log zerolog.Logger) *Engine {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Engine{
		store:    store,
		trk:      trk,
		reader:   reader,
		sched:    sched,
		renderer: renderer,
		driver:   driver,
		pub:      pub,
		log:      log,
	}
}

// SetDistancePublisher attaches the periodic telemetry hook. Must be called
// before Run.
func (e *Engine) SetDistancePublisher(d DistancePublisher) { e.dist = d }

// Run drives all goroutines until the context is cancelled or the sensor
// reader fails. The strip is blanked on the way out.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.reader.Run(ctx) })
	g.Go(func() error {
		e.sched.Run(ctx)
		return nil
	})
	g.Go(func() error { return e.renderLoop(ctx) })

	err := g.Wait()
	e.blank()
	return err
}

func (e *Engine) renderLoop(ctx context.Context) error {
	interval := e.frameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	status := time.NewTicker(statusInterval)
	defer status.Stop()

	frame := make([]byte, e.renderer.NumLEDs()*3)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-status.C:
			snap := e.trk.Snapshot()
			e.log.Debug().
				Uint16("distance", snap.Distance).
				Stringer("direction", snap.Direction).
				Msg("sensor status")
			if e.dist != nil {
				e.dist.PublishDistance()
			}
		case now := <-ticker.C:
			snap := e.trk.Snapshot()
			e.renderer.Paint(frame, snap, now, e.store.Current().RenderParams())
			if err := e.driver.Write(frame); err != nil {
				e.log.Error().Err(err).Msg("strip write failed")
			}
			e.pub.PublishFrame(frame, snap)

			// Settings changes can retune the frame cadence.
			if next := e.frameInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				e.log.Info().Dur("interval", interval).Msg("frame interval changed")
			}
		}
	}
}

func (e *Engine) frameInterval() time.Duration {
	return time.Duration(e.store.Current().Render.FrameIntervalMS) * time.Millisecond
}

func (e *Engine) blank() {
	frame := make([]byte, e.renderer.NumLEDs()*3)
	if err := e.driver.Write(frame); err != nil {
		e.log.Debug().Err(err).Msg("blank on shutdown failed")
	}
}
