package frames

import (
	"errors"
	"fmt"
	"math"

	"github.com/farcloser/photic/internal/types"
)

const bytesPerPixel = 3

// Defaults for flash detection on reduced frames.
const (
	DefaultFlashDelta    = 0.1  // relative luminance change of a flash transition
	DefaultFlashCoverage = 0.25 // screen fraction that must change for a flash
)

var errFrameSize = errors.New("frame size mismatch")

// Reducer turns raw rgb24 frames into feature records. It keeps the previous frame's luminance
// to derive coverage and flash transitions. It is not safe for concurrent use.
type Reducer struct {
	width, height int
	flashDelta    float64
	flashCoverage float64

	previous    []float64
	previousAvg float64
	hasPrevious bool
	linear      [256]float64
}

// NewReducer returns a reducer for frames of the given size. Non-positive thresholds use the defaults.
func NewReducer(width, height int, flashDelta, flashCoverage float64) *Reducer {
	if !(flashDelta > 0) {
		flashDelta = DefaultFlashDelta
	}

	if !(flashCoverage > 0) {
		flashCoverage = DefaultFlashCoverage
	}

	r := &Reducer{
		width:         width,
		height:        height,
		flashDelta:    flashDelta,
		flashCoverage: flashCoverage,
	}

	for i := range r.linear {
		c := float64(i) / 255
		if c <= 0.04045 {
			r.linear[i] = c / 12.92
		} else {
			r.linear[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}

	return r
}

// FrameSize is the number of bytes of one rgb24 frame.
func (r *Reducer) FrameSize() int {
	return r.width * r.height * bytesPerPixel
}

// Reduce computes brightness (mean Rec.709 relative luminance), mean color, coverage
// (fraction of pixels whose luminance changed by at least the flash delta) and the flash flag.
// The returned frame has no timestamp.
func (r *Reducer) Reduce(pixels []byte) (types.Frame, error) {
	pixelCount := r.width * r.height
	if pixelCount <= 0 || len(pixels) != pixelCount*bytesPerPixel {
		return types.Frame{}, fmt.Errorf("%w: got %d bytes, want %d", errFrameSize, len(pixels), r.FrameSize())
	}

	if r.previous == nil {
		r.previous = make([]float64, pixelCount)
	}

	var (
		sumR, sumG, sumB float64
		sumLuminance     float64
		changed          int
	)

	for i := range pixelCount {
		red, green, blue := pixels[i*3], pixels[i*3+1], pixels[i*3+2]

		sumR += float64(red)
		sumG += float64(green)
		sumB += float64(blue)

		luminance := 0.2126*r.linear[red] + 0.7152*r.linear[green] + 0.0722*r.linear[blue]
		sumLuminance += luminance

		if r.hasPrevious && math.Abs(luminance-r.previous[i]) >= r.flashDelta {
			changed++
		}

		r.previous[i] = luminance
	}

	count := float64(pixelCount)
	brightness := sumLuminance / count
	coverage := float64(changed) / count

	frame := types.Frame{
		Brightness: brightness,
		Color:      types.RGB{R: sumR / count, G: sumG / count, B: sumB / count},
		Coverage:   coverage,
	}

	if r.hasPrevious {
		frame.Flash = math.Abs(brightness-r.previousAvg) >= r.flashDelta && coverage >= r.flashCoverage
	}

	r.previousAvg = brightness
	r.hasPrevious = true

	return frame, nil
}

// Reset forgets the previous frame.
func (r *Reducer) Reset() {
	r.previous = nil
	r.previousAvg = 0
	r.hasPrevious = false
}
