package sensor

import (
	"testing"
	"time"
)

func TestTrackerInitialSnapshot(t *testing.T) {
	t0 := time.Now()
	trk := NewTracker(10, 2000, t0)

	snap := trk.Snapshot()
	if snap.Distance != 2000 || snap.Direction != Stationary || !snap.LastMotion.Equal(t0) {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestTrackerBelowThresholdKeepsDirection(t *testing.T) {
	t0 := time.Now()
	trk := NewTracker(10, 50, t0)

	trk.Update(100, t0.Add(time.Second)) // qualifying move, receding
	before := trk.Snapshot()

	trk.Update(105, t0.Add(2*time.Second)) // |diff|=5 < threshold
	after := trk.Snapshot()

	if after.Direction != before.Direction {
		t.Fatalf("direction changed on sub-threshold move: %v -> %v", before.Direction, after.Direction)
	}
	if !after.LastMotion.Equal(before.LastMotion) {
		t.Fatalf("motion timestamp changed on sub-threshold move")
	}
	if after.Distance != 105 {
		t.Fatalf("distance must update unconditionally, got %d", after.Distance)
	}
}

func TestTrackerDirectionFlips(t *testing.T) {
	cases := []struct {
		name string
		from uint16
		to   uint16
		want Direction
	}{
		{"receding", 50, 100, Receding},
		{"approaching", 100, 50, Approaching},
		{"exactly at threshold", 100, 110, Receding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t0 := time.Now()
			trk := NewTracker(10, tc.from, t0)
			now := t0.Add(time.Second)
			trk.Update(tc.to, now)

			snap := trk.Snapshot()
			if snap.Direction != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, snap.Direction)
			}
			if !snap.LastMotion.Equal(now) {
				t.Fatalf("motion timestamp not updated on qualifying move")
			}
		})
	}
}

func TestTrackerDirectionStickyAcrossJitter(t *testing.T) {
	t0 := time.Now()
	trk := NewTracker(10, 1000, t0)

	trk.Update(900, t0.Add(time.Second)) // approaching
	for i := 0; i < 5; i++ {
		trk.Update(900+uint16(i), t0.Add(time.Duration(2+i)*time.Second))
	}

	if got := trk.Snapshot().Direction; got != Approaching {
		t.Fatalf("expected direction to stay approaching through jitter, got %v", got)
	}
}

func TestTrackerSnapshotIsComposite(t *testing.T) {
	t0 := time.Now()
	trk := NewTracker(10, 100, t0)
	now := t0.Add(time.Second)
	trk.Update(500, now)

	snap := trk.Snapshot()
	if snap.Distance != 500 || snap.Direction != Receding || !snap.LastMotion.Equal(now) {
		t.Fatalf("snapshot fields not published as one unit: %+v", snap)
	}
}
