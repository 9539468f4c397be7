package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lighttrack/internal/config"
	"lighttrack/internal/render"
	"lighttrack/internal/schedule"
	"lighttrack/internal/sensor"
)

// State is the HTTP/websocket face of the controller: a JSON API over the
// settings store plus a live frame feed for the browser preview.
type State struct {
	store *config.Store
	trk   *sensor.Tracker
	sched *schedule.Controller
	log   zerolog.Logger

	mu        sync.RWMutex
	clients   map[*websocket.Conn]bool
	frameID   uint64
	startTime time.Time
}

func NewState(store *config.Store, trk *sensor.Tracker, sched *schedule.Controller, log zerolog.Logger) *State {
	return &State{
		store:     store,
		trk:       trk,
		sched:     sched,
		log:       log,
		clients:   map[*websocket.Conn]bool{},
		startTime: time.Now(),
	}
}

// Routes wires the handlers onto a fresh mux.
func (s *State) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/api/status", s.HandleStatus)
	mux.HandleFunc("/api/params", s.HandleParams)
	mux.HandleFunc("/api/light", s.HandleLight)
	mux.HandleFunc("/ws", s.HandleFramesWS)
	return mux
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	frameID := s.frameID
	s.mu.RUnlock()
	cfg := s.store.Current()
	writeJSON(w, map[string]any{
		"frame_id": frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"num_leds": cfg.Strip.NumLEDs,
		"fps":      1000.0 / float64(cfg.Render.FrameIntervalMS),
	})
}

func (s *State) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.trk.Snapshot()
	cfg := s.store.Current()
	writeJSON(w, map[string]any{
		"distance":           snap.Distance,
		"direction":          snap.Direction.String(),
		"last_motion_ms_ago": time.Since(snap.LastMotion).Milliseconds(),
		"light_on":           cfg.Render.LightOn,
		"schedule_enabled":   cfg.Schedule.Enabled,
		"overridden":         s.sched.Overridden(),
	})
}

// paramsUpdate carries a partial settings change; absent fields are left
// untouched. Values land in the store, which clamps and persists them.
type paramsUpdate struct {
	BaseColor           *render.Color `json:"base_color"`
	MovingIntensity     *float64      `json:"moving_intensity"`
	BackgroundIntensity *float64      `json:"background_intensity"`
	BeamLength          *int          `json:"beam_length"`
	CenterShift         *int          `json:"center_shift"`
	TrailLength         *int          `json:"trail_length"`
	HoldSeconds         *int          `json:"hold_seconds"`
	FrameIntervalMS     *int          `json:"frame_interval_ms"`
	BackgroundMode      *bool         `json:"background_mode"`
	ScheduleEnabled     *bool         `json:"schedule_enabled"`
	ScheduleStart       *string       `json:"schedule_start"`
	ScheduleEnd         *string       `json:"schedule_end"`
}

func (s *State) HandleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeParams(w)
	case http.MethodPost:
		var upd paramsUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if upd.ScheduleStart != nil {
			if _, err := schedule.ParseWindow(*upd.ScheduleStart, "00:00"); err != nil {
				http.Error(w, "invalid schedule_start", http.StatusBadRequest)
				return
			}
		}
		if upd.ScheduleEnd != nil {
			if _, err := schedule.ParseWindow("00:00", *upd.ScheduleEnd); err != nil {
				http.Error(w, "invalid schedule_end", http.StatusBadRequest)
				return
			}
		}
		s.store.Update(func(c *config.Config) { apply(&upd, c) })
		s.log.Info().Msg("parameters updated via API")
		s.writeParams(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func apply(u *paramsUpdate, c *config.Config) {
	r := &c.Render
	if u.BaseColor != nil {
		r.BaseColor = *u.BaseColor
	}
	if u.MovingIntensity != nil {
		r.MovingIntensity = *u.MovingIntensity
	}
	if u.BackgroundIntensity != nil {
		r.BackgroundIntensity = *u.BackgroundIntensity
	}
	if u.BeamLength != nil {
		r.BeamLength = *u.BeamLength
	}
	if u.CenterShift != nil {
		r.CenterShift = *u.CenterShift
	}
	if u.TrailLength != nil {
		r.TrailLength = *u.TrailLength
	}
	if u.HoldSeconds != nil {
		r.HoldSeconds = *u.HoldSeconds
	}
	if u.FrameIntervalMS != nil {
		r.FrameIntervalMS = *u.FrameIntervalMS
	}
	if u.BackgroundMode != nil {
		r.BackgroundMode = *u.BackgroundMode
	}
	if u.ScheduleEnabled != nil {
		c.Schedule.Enabled = *u.ScheduleEnabled
	}
	if u.ScheduleStart != nil {
		c.Schedule.Start = *u.ScheduleStart
	}
	if u.ScheduleEnd != nil {
		c.Schedule.End = *u.ScheduleEnd
	}
}

func (s *State) writeParams(w http.ResponseWriter) {
	cfg := s.store.Current()
	writeJSON(w, map[string]any{
		"base_color":           cfg.Render.BaseColor,
		"moving_intensity":     cfg.Render.MovingIntensity,
		"background_intensity": cfg.Render.BackgroundIntensity,
		"beam_length":          cfg.Render.BeamLength,
		"center_shift":         cfg.Render.CenterShift,
		"trail_length":         cfg.Render.TrailLength,
		"hold_seconds":         cfg.Render.HoldSeconds,
		"frame_interval_ms":    cfg.Render.FrameIntervalMS,
		"background_mode":      cfg.Render.BackgroundMode,
		"light_on":             cfg.Render.LightOn,
		"schedule_enabled":     cfg.Schedule.Enabled,
		"schedule_start":       cfg.Schedule.Start,
		"schedule_end":         cfg.Schedule.End,
	})
}

func (s *State) HandleLight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		On            *bool `json:"on"`
		ClearOverride bool  `json:"clear_override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.ClearOverride {
		s.sched.ClearOverride()
	}
	if body.On != nil {
		s.sched.SetLight(*body.On)
	}
	writeJSON(w, map[string]any{
		"light_on":   s.store.Current().Render.LightOn,
		"overridden": s.sched.Overridden(),
	})
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// PublishFrame pushes one rendered frame and its motion snapshot to every
// connected preview client. Called from the render loop; slow clients are
// bounded by a short write deadline.
func (s *State) PublishFrame(rgb []byte, snap sensor.Snapshot) {
	s.mu.Lock()
	s.frameID++
	frameID := s.frameID
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return
	}
	type frame struct {
		T         int64  `json:"t"`
		FrameID   uint64 `json:"frame_id"`
		Distance  uint16 `json:"distance"`
		Direction string `json:"direction"`
		RGB       []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{
		T:         time.Now().UnixNano(),
		FrameID:   frameID,
		Distance:  snap.Distance,
		Direction: snap.Direction.String(),
		RGB:       rgb,
	})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("frame write failed")
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
