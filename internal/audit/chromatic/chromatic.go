// Package chromatic measures saturated red and opponent-color transitions between frames.
package chromatic

import (
	"math"

	"github.com/farcloser/photic/internal/types"
)

// Tracker keeps the previous frame's color. It is not safe for concurrent use.
type Tracker struct {
	previous    types.ChromaticResult
	hasPrevious bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Reset() {
	t.previous = types.ChromaticResult{}
	t.hasPrevious = false
}

// Update measures color, with channels in [0,255], against the previous call.
func (t *Tracker) Update(color types.RGB) types.ChromaticResult {
	result := Measure(color)

	if t.hasPrevious {
		result.HasPrevious = true
		result.RedDelta = math.Abs(result.RedIntensity - t.previous.RedIntensity)
		result.Contrast = max(
			math.Abs(result.RedGreen-t.previous.RedGreen),
			math.Abs(result.BlueYellow-t.previous.BlueYellow),
		) / 2
	}

	t.previous = result
	t.hasPrevious = true

	return result
}

// Measure computes the single-frame values of a color: red intensity and opponent channels.
func Measure(color types.RGB) types.ChromaticResult {
	r := channel(color.R)
	g := channel(color.G)
	b := channel(color.B)

	return types.ChromaticResult{
		// Red above the stronger of the other two primaries: 1 for pure red, 0 for any gray.
		RedIntensity: max(r-max(g, b), 0),
		RedGreen:     r - g,
		BlueYellow:   b - (r+g)/2,
	}
}

func channel(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return min(max(v, 0), 255) / 255
}
