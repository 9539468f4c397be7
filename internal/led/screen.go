package led

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"
)

// Screen renders the strip as ANSI color blocks on the terminal, for
// running without hardware.
type Screen struct {
	drawer display.Drawer
	n      int
}

func NewScreen(numLEDs int) *Screen {
	return &Screen{drawer: screen.New(numLEDs), n: numLEDs}
}

func (s *Screen) Write(rgb []byte) error {
	if len(rgb) != s.n*3 {
		return fmt.Errorf("frame length %d does not match %d LEDs", len(rgb), s.n)
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), toImage(rgb), image.Point{}); err != nil {
		return err
	}
	fmt.Printf("\n")
	return nil
}

func (s *Screen) Close() error {
	return s.drawer.Halt()
}
