package sensor

import (
	"io"
	"math/rand"
	"sync"
	"time"
)

// Sim synthesizes well-formed sensor frames, sweeping the distance back and
// forth between min and max with occasional jitter below the noise
// threshold. It stands in for the UART when no sensor is attached.
type Sim struct {
	mu       sync.Mutex
	min      uint16
	max      uint16
	step     int
	distance int
	interval time.Duration
	lastEmit time.Time
	closed   bool
	rng      *rand.Rand
}

func NewSim(min, max uint16, interval time.Duration) *Sim {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Sim{
		min:      min,
		max:      max,
		step:     25,
		distance: int(min),
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read emits at most one frame per interval; between frames it returns
// (0, nil), matching a quiet UART with a read timeout.
func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	now := time.Now()
	if now.Sub(s.lastEmit) < s.interval {
		return 0, nil
	}
	s.lastEmit = now

	s.distance += s.step
	if s.distance >= int(s.max) || s.distance <= int(s.min) {
		s.step = -s.step
		s.distance += s.step
	}
	d := s.distance
	if s.rng.Intn(10) == 0 {
		d += s.rng.Intn(9) - 4 // sub-threshold jitter
	}
	if d < int(s.min) {
		d = int(s.min)
	}
	if d > int(s.max) {
		d = int(s.max)
	}

	frame := [frameLen]byte{SyncByte, SyncByte, 0x00, byte(d & 0xFF), byte(d >> 8), 0x00, 0x00}
	n := copy(p, frame[:])
	return n, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
