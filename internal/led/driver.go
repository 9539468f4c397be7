package led

import (
	"image"
	"sync"
)

// Driver abstracts the strip transport. Frames are packed RGB, 3 bytes per
// LED, written whole.
type Driver interface {
	Write(rgb []byte) error
	Close() error
}

// toImage packs an RGB frame into the 1-pixel-tall image the periph drawers
// consume.
func toImage(rgb []byte) *image.NRGBA {
	n := len(rgb) / 3
	img := image.NewNRGBA(image.Rect(0, 0, n, 1))
	for x := 0; x < n; x++ {
		off := img.PixOffset(x, 0)
		img.Pix[off+0] = rgb[x*3+0]
		img.Pix[off+1] = rgb[x*3+1]
		img.Pix[off+2] = rgb[x*3+2]
		img.Pix[off+3] = 0xFF
	}
	return img
}

// Capture is a driver for tests and hostless runs: it just remembers the
// last frame.
type Capture struct {
	mu   sync.Mutex
	last []byte
}

func NewCapture() *Capture { return &Capture{} }

func (c *Capture) Write(rgb []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = append(c.last[:0], rgb...)
	return nil
}

// Last returns a copy of the most recently written frame.
func (c *Capture) Last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.last))
	copy(out, c.last)
	return out
}

func (c *Capture) Close() error { return nil }
