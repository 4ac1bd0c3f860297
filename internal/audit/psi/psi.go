// Package psi computes a photosensitivity index from flash rate, intensity, coverage and duration.
package psi

import "math"

// Component weights, summing to 1.
const (
	weightRate      = 0.35
	weightIntensity = 0.3
	weightCoverage  = 0.2
	weightDuration  = 0.15
)

// Saturation points: a component reaches 1 at these values.
const (
	RateLimit        = 3.0  // flashes per second
	CoverageLimit    = 0.25 // fraction of the screen
	DurationLimitSec = 5.0
)

type Inputs struct {
	FlashesPerSecond float64
	Intensity        float64 // flash luminance change, [0,1]
	Coverage         float64 // fraction of the frame involved, [0,1]
	DurationSeconds  float64 // how long flashing has been sustained
}

// Score returns the index in [0,1]. Non-finite or negative inputs count as 0.
func Score(in Inputs) float64 {
	return weightRate*unit(in.FlashesPerSecond/RateLimit) +
		weightIntensity*unit(in.Intensity) +
		weightCoverage*unit(in.Coverage/CoverageLimit) +
		weightDuration*unit(in.DurationSeconds/DurationLimitSec)
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return min(max(v, 0), 1)
}
