package led

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
)

// refreshRate is the WS2812 data rate in kHz; the SPI clock runs at three
// encoded bits per data bit plus a little headroom.
const refreshRate physic.Frequency = 800

// Strip drives a WS2812-style strip through an NRZ-over-SPI encoder.
type Strip struct {
	drawer display.Drawer
	port   spi.PortCloser
	n      int
}

// NewStrip opens the SPI port registered under dev (empty string picks the
// first available) and prepares the NRZ encoder for numLEDs pixels.
func NewStrip(dev string, numLEDs int) (*Strip, error) {
	if numLEDs <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", numLEDs)
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open SPI port %q: %w", dev, err)
	}
	opts := nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      ((refreshRate * 3) + 100) * physic.KiloHertz,
	}
	d, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("init nrzled: %w", err)
	}
	_ = d.Halt()
	return &Strip{drawer: d, port: port, n: numLEDs}, nil
}

func (s *Strip) Write(rgb []byte) error {
	if len(rgb) != s.n*3 {
		return fmt.Errorf("frame length %d does not match %d LEDs", len(rgb), s.n)
	}
	return s.drawer.Draw(s.drawer.Bounds(), toImage(rgb), image.Point{})
}

func (s *Strip) Close() error {
	if err := s.drawer.Halt(); err != nil {
		_ = s.port.Close()
		return err
	}
	return s.port.Close()
}
