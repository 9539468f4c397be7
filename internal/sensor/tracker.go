package sensor

import (
	"sync/atomic"
	"time"
)

// Direction classifies the most recent qualifying movement.
type Direction int

const (
	Stationary Direction = iota
	Approaching
	Receding
)

func (d Direction) String() string {
	switch d {
	case Approaching:
		return "approaching"
	case Receding:
		return "receding"
	default:
		return "stationary"
	}
}

// Snapshot is the composite motion state published to the render side.
// It is immutable once published; readers always see distance, direction
// and motion timestamp from the same acquisition cycle.
type Snapshot struct {
	Distance   uint16
	Direction  Direction
	LastMotion time.Time
}

// Tracker derives motion state from successive distance samples. Update is
// called from the acquisition loop only; Snapshot may be called from any
// goroutine.
type Tracker struct {
	noise uint16

	// acquisition-side state, never touched outside Update
	last       uint16
	direction  Direction
	lastMotion time.Time

	shared atomic.Pointer[Snapshot]
}

// NewTracker seeds the tracker with a default distance so the renderer has
// something sane to show before the first real reading arrives.
func NewTracker(noiseThreshold, initialDistance uint16, now time.Time) *Tracker {
	t := &Tracker{
		noise:      noiseThreshold,
		last:       initialDistance,
		direction:  Stationary,
		lastMotion: now,
	}
	t.shared.Store(&Snapshot{Distance: initialDistance, Direction: Stationary, LastMotion: now})
	return t
}

// Update folds one accepted sample into the motion state. Direction and the
// motion timestamp only change when the delta reaches the noise threshold;
// smaller jitters keep the previous direction sticky. The composite snapshot
// is published last so readers never observe a distance newer than the
// motion fields describing it.
func (t *Tracker) Update(distance uint16, now time.Time) {
	diff := int(distance) - int(t.last)
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	if abs >= int(t.noise) {
		if distance > t.last {
			t.direction = Receding
		} else {
			t.direction = Approaching
		}
		t.lastMotion = now
	}
	t.last = distance

	t.shared.Store(&Snapshot{
		Distance:   distance,
		Direction:  t.direction,
		LastMotion: t.lastMotion,
	})
}

// Snapshot returns the most recently published motion state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.shared.Load()
}

// Distance returns the last accepted distance, for telemetry consumers.
func (t *Tracker) Distance() uint16 {
	return t.shared.Load().Distance
}
