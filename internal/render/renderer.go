package render

import (
	"math"
	"time"

	"lighttrack/internal/sensor"
)

// Color is one 8-bit RGB pixel.
type Color struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

// Params is the full effect parameter set, snapshotted once per frame.
// Values are assumed clamped at the configuration boundary; the painter
// still bounds-checks every index it derives.
type Params struct {
	BaseColor           Color
	MovingIntensity     float64 // 0..1
	BackgroundIntensity float64 // 0..0.1
	BeamLength          int     // 1..NumLEDs
	CenterShift         int     // -NumLEDs/2..NumLEDs/2
	TrailLength         int     // 0..NumLEDs/2
	Hold                time.Duration
	BackgroundMode      bool
	LightOn             bool
}

// trailDim is the trail's intensity relative to the beam.
const trailDim = 0.8

// maxFadeWidth caps the linear edge fade of beam and trail.
const maxFadeWidth = 5

// Renderer paints the strip buffer from a motion snapshot and a parameter
// set. It holds only the strip geometry; Paint is pure given its inputs.
type Renderer struct {
	min     uint16
	max     uint16
	numLEDs int
}

func New(minDistance, maxDistance uint16, numLEDs int) *Renderer {
	return &Renderer{min: minDistance, max: maxDistance, numLEDs: numLEDs}
}

// NumLEDs returns the strip length this renderer paints for.
func (r *Renderer) NumLEDs() int { return r.numLEDs }

// Paint overwrites dst (3 bytes per LED, RGB) with one frame.
func (r *Renderer) Paint(dst []byte, m sensor.Snapshot, now time.Time, p Params) {
	if !p.LightOn {
		fill(dst, Color{})
		return
	}

	showMoving := now.Sub(m.LastMotion) <= p.Hold

	bgActive := p.BackgroundMode && p.BackgroundIntensity > 0
	if bgActive {
		fill(dst, scale(p.BaseColor, p.BackgroundIntensity))
	} else {
		fill(dst, Color{})
	}
	if !showMoving {
		return
	}

	center := r.centerLED(m.Distance, p.CenterShift)
	half := p.BeamLength / 2
	start := clampIndex(center-half, r.numLEDs)
	evenAdj := 0
	if p.BeamLength%2 == 0 {
		evenAdj = 1
	}
	end := clampIndex(center+half-evenAdj, r.numLEDs)

	if p.BeamLength > 0 && p.MovingIntensity > 0 {
		fadeWidth := half
		if fadeWidth > maxFadeWidth {
			fadeWidth = maxFadeWidth
		}
		for i := start; i <= end; i++ {
			factor := 1.0
			if fadeWidth > 0 && p.BeamLength > 1 {
				distFromStart := i - start
				distFromEnd := end - i
				if distFromStart < fadeWidth {
					factor = float64(distFromStart) / float64(fadeWidth)
				} else if distFromEnd < fadeWidth {
					factor = float64(distFromEnd) / float64(fadeWidth)
				}
			}
			blend(dst, i, scale(p.BaseColor, p.MovingIntensity*factor), bgActive)
		}
	}

	// Trail extends past the beam in the direction of travel, dimmer and
	// with its own fade at the far end. Out-of-range indices are skipped,
	// not clamped, so the trail clips at the strip edge.
	if m.Direction != sensor.Stationary && p.TrailLength > 0 && p.MovingIntensity > 0 {
		fadeWidth := p.TrailLength / 2
		if fadeWidth > maxFadeWidth {
			fadeWidth = maxFadeWidth
		}
		for i := 1; i <= p.TrailLength; i++ {
			idx := start - i
			if m.Direction == sensor.Receding {
				idx = end + i
			}
			if idx < 0 || idx >= r.numLEDs {
				continue
			}
			factor := 1.0
			if fadeWidth > 0 && p.TrailLength > 1 && i > p.TrailLength-fadeWidth {
				factor = float64(p.TrailLength-i) / float64(fadeWidth)
			}
			blend(dst, idx, scale(p.BaseColor, p.MovingIntensity*factor*trailDim), bgActive)
		}
	}
}

// centerLED maps a distance onto the strip: min distance lands on LED 0,
// max on the last LED, then the configured shift is applied and the result
// clamped to the strip.
func (r *Renderer) centerLED(distance uint16, shift int) int {
	proportion := 0.0
	if span := float64(r.max) - float64(r.min); span > 0 && distance > r.min {
		proportion = (float64(distance) - float64(r.min)) / span
	}
	if proportion > 1 {
		proportion = 1
	}
	base := int(math.Round(proportion * float64(r.numLEDs-1)))
	return clampIndex(base+shift, r.numLEDs)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// scale multiplies a color by an intensity in [0,1], rounding to 8 bits.
func scale(c Color, intensity float64) Color {
	if intensity <= 0 {
		return Color{}
	}
	if intensity > 1 {
		intensity = 1
	}
	return Color{
		R: uint8(math.Round(float64(c.R) * intensity)),
		G: uint8(math.Round(float64(c.G) * intensity)),
		B: uint8(math.Round(float64(c.B) * intensity)),
	}
}

func fill(dst []byte, c Color) {
	for i := 0; i+2 < len(dst); i += 3 {
		dst[i], dst[i+1], dst[i+2] = c.R, c.G, c.B
	}
}

// blend writes one pixel: additive over an active background, overwrite
// otherwise. The add saturates, never wraps.
func blend(dst []byte, idx int, c Color, add bool) {
	off := idx * 3
	if off < 0 || off+2 >= len(dst) {
		return
	}
	if !add {
		dst[off], dst[off+1], dst[off+2] = c.R, c.G, c.B
		return
	}
	dst[off] = satAdd(dst[off], c.R)
	dst[off+1] = satAdd(dst[off+1], c.G)
	dst[off+2] = satAdd(dst[off+2], c.B)
}

func satAdd(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}
