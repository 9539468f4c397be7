package config

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Store owns the live configuration. Readers take lock-free snapshots every
// frame; writers go through Update, which clamps, republishes and persists.
// The renderer never sees a half-applied change.
type Store struct {
	path string
	log  zerolog.Logger

	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Config]
}

func NewStore(path string, cfg *Config, log zerolog.Logger) *Store {
	s := &Store{path: path, log: log}
	cc := *cfg
	cc.Clamp()
	s.cur.Store(&cc)
	return s
}

// Current returns the active configuration snapshot. The returned value
// must be treated as read-only.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Update applies a mutation to a copy of the current configuration, clamps
// it, publishes it atomically and writes it back to disk. A failed save is
// logged but does not roll back the in-memory change; the device keeps
// running on the new settings.
func (s *Store) Update(mutate func(*Config)) *Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cur.Load()
	mutate(&next)
	next.Clamp()
	s.cur.Store(&next)

	if s.path != "" {
		if err := Save(s.path, &next); err != nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("settings save failed")
		}
	}
	return &next
}
