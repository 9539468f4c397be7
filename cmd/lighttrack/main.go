package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/host/v3"

	"lighttrack/internal/app"
	"lighttrack/internal/config"
	"lighttrack/internal/ha"
	"lighttrack/internal/led"
	"lighttrack/internal/render"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
	"lighttrack/internal/web"
)

func main() {
	// ---- Flags (config.yaml can override most) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		driver     = flag.String("driver", "", "strip driver: spi | screen | sim (overrides config)")
		sensorPort = flag.String("sensor-port", "", "serial device of the distance sensor (overrides config)")
		simSensor  = flag.Bool("sim-sensor", false, "synthesize sensor frames instead of reading the serial port")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// ---- Load config.yaml, seed it on first run ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; writing defaults")
		cfg = config.Default()
		if err := config.Save(*configPath, cfg); err != nil {
			log.Warn().Err(err).Msg("could not seed config file; settings will not persist")
			*configPath = ""
		}
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *driver != "" {
		cfg.Strip.Driver = *driver
	}
	if *sensorPort != "" {
		cfg.Sensor.Port = *sensorPort
	}
	store := config.NewStore(*configPath, cfg, log.Logger)
	cfg = store.Current()

	// ---- Strip driver selection, with fallback ----
	var strip led.Driver
	switch cfg.Strip.Driver {
	case "spi":
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; falling back to screen")
			strip = led.NewScreen(cfg.Strip.NumLEDs)
			break
		}
		drv, err := led.NewStrip(cfg.Strip.SPIDev, cfg.Strip.NumLEDs)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.Strip.SPIDev).Msg("SPI init failed; falling back to screen")
			strip = led.NewScreen(cfg.Strip.NumLEDs)
		} else {
			strip = drv
		}
	case "screen":
		strip = led.NewScreen(cfg.Strip.NumLEDs)
	case "sim":
		strip = led.NewCapture()
	default:
		log.Warn().Str("driver", cfg.Strip.Driver).Msg("unknown driver; using screen")
		strip = led.NewScreen(cfg.Strip.NumLEDs)
	}

	// ---- Sensor source, with sim fallback ----
	trk := sensor.NewTracker(cfg.Sensor.NoiseThreshold, cfg.Sensor.DefaultDistance, time.Now())
	var src sensor.Source
	if *simSensor {
		src = sensor.NewSim(cfg.Sensor.MinDistance, cfg.Sensor.MaxDistance, 50*time.Millisecond)
		log.Info().Msg("using synthesized sensor input")
	} else {
		s, err := sensor.OpenPort(cfg.Sensor.Port, cfg.Sensor.BaudRate)
		if err != nil {
			log.Warn().Err(err).Str("port", cfg.Sensor.Port).Msg("sensor port open failed; using synthesized input")
			src = sensor.NewSim(cfg.Sensor.MinDistance, cfg.Sensor.MaxDistance, 50*time.Millisecond)
		} else {
			src = s
		}
	}
	reader := sensor.NewReader(src, sensor.NewDecoder(cfg.Sensor.MinDistance, cfg.Sensor.MaxDistance), trk, log.Logger)

	// ---- Pipeline ----
	sched := schedule.NewController(store, log.Logger)
	renderer := render.New(cfg.Sensor.MinDistance, cfg.Sensor.MaxDistance, cfg.Strip.NumLEDs)
	state := web.NewState(store, trk, sched, log.Logger)
	engine := app.NewEngine(store, trk, reader, sched, renderer, strip, state, log.Logger)

	// ---- Home Assistant (optional) ----
	hub := ha.NewClient(store, trk, sched, log.Logger)
	if err := hub.Start(); err != nil {
		log.Warn().Err(err).Msg("mqtt unavailable; continuing without Home Assistant")
	} else {
		engine.SetDistancePublisher(hub)
		defer hub.Stop()
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      withCORS(state.Routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("driver", cfg.Strip.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Run until signalled ----
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-ch:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-done
	case err := <-done:
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("pipeline stopped")
		}
	}

	_ = srv.Close()
	_ = strip.Close()
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
