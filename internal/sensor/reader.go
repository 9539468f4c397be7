package sensor

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// pollDelay bounds the acquisition loop when the transport has nothing
// pending, so an idle sensor does not saturate a CPU core.
const pollDelay = 5 * time.Millisecond

// Reader runs the decoder and tracker against a byte source. It is the
// acquisition half of the pipeline; the render loop only ever sees the
// tracker's published snapshots.
type Reader struct {
	src Source
	dec *Decoder
	trk *Tracker
	log zerolog.Logger
}

func NewReader(src Source, dec *Decoder, trk *Tracker, log zerolog.Logger) *Reader {
	return &Reader{src: src, dec: dec, trk: trk, log: log}
}

// Run reads until the context is cancelled or the source fails terminally.
// Sync loss and out-of-range frames are recoverable and only logged; the
// previous accepted distance stays published throughout.
func (r *Reader) Run(ctx context.Context) error {
	defer r.src.Close()

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.src.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			time.Sleep(pollDelay)
			continue
		}
		r.dec.Feed(buf[:n])

		for {
			distance, status := r.dec.Next()
			if status == StatusPending {
				break
			}
			switch status {
			case StatusResync:
				r.log.Warn().Msg("sensor sync lost, flushing input buffer")
			case StatusOutOfRange:
				r.log.Debug().Uint16("distance", distance).Msg("sensor reading out of range, dropped")
			case StatusSample:
				r.trk.Update(distance, time.Now())
			}
		}
	}
}
