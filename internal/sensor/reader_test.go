package sensor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedSource hands out byte chunks one Read at a time, then EOF.
type scriptedSource struct {
	chunks [][]byte
	closed bool
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	if n == len(s.chunks[0]) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = s.chunks[0][n:]
	}
	return n, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func TestReaderLastValidSampleWins(t *testing.T) {
	src := &scriptedSource{chunks: [][]byte{
		frame(100),
		frame(5000), // out of range for max 4000, must not publish
		{0x01},      // stray byte, resync
		frame(250),
	}}
	dec := NewDecoder(0, 4000)
	trk := NewTracker(10, 2000, time.Now())
	r := NewReader(src, dec, trk, zerolog.Nop())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := trk.Distance(); got != 250 {
		t.Fatalf("expected last valid distance 250, got %d", got)
	}
	if !src.closed {
		t.Fatal("source not closed on exit")
	}
}

func TestReaderOutOfRangeKeepsPrevious(t *testing.T) {
	src := &scriptedSource{chunks: [][]byte{
		frame(300),
		frame(4500),
	}}
	dec := NewDecoder(0, 4000)
	trk := NewTracker(10, 2000, time.Now())
	r := NewReader(src, dec, trk, zerolog.Nop())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := trk.Distance(); got != 300 {
		t.Fatalf("expected retained distance 300, got %d", got)
	}
}

func TestReaderStopsOnCancel(t *testing.T) {
	src := NewSim(0, 4000, time.Millisecond)
	dec := NewDecoder(0, 4000)
	trk := NewTracker(10, 2000, time.Now())
	r := NewReader(src, dec, trk, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not stop after cancellation")
	}
}

func TestSimProducesDecodableFrames(t *testing.T) {
	sim := NewSim(0, 4000, time.Millisecond)
	dec := NewDecoder(0, 4000)
	buf := make([]byte, 16)

	samples := 0
	for i := 0; i < 200 && samples < 5; i++ {
		n, err := sim.Read(buf)
		if err != nil {
			t.Fatalf("sim read: %v", err)
		}
		dec.Feed(buf[:n])
		for {
			d, status := dec.Next()
			if status == StatusPending {
				break
			}
			if status != StatusSample {
				t.Fatalf("sim emitted undecodable frame: %v (%d)", status, d)
			}
			samples++
		}
		time.Sleep(time.Millisecond)
	}
	if samples < 5 {
		t.Fatalf("expected at least 5 simulated samples, got %d", samples)
	}
}
