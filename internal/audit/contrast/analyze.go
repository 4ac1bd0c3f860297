package contrast

import (
	"math"

	"github.com/farcloser/photic/internal/audit/percentile"
	"github.com/farcloser/photic/internal/types"
)

// DefaultThreshold is the just-noticeable difference for Delta E76.
const DefaultThreshold = 2.3

// Options configures Analyze.
type Options struct {
	Threshold float64 // JND (default 2.3)

	// Index weighting: base^age over the last WindowSize deltas.
	WindowSize      int     // default 30
	DecayRate       float64 // base = 1 - DecayRate (default 0.1)
	HalfLifeSamples float64 // when > 0, base = 0.5^(1/HalfLifeSamples), overriding DecayRate

	// Time weighting, used instead of index weighting when both are set.
	HalfLifeMs float64
	Timestamps []float64 // ms, one per color

	// SampleCorrected uses the n-1 variance denominator.
	SampleCorrected bool
}

// DefaultOptions returns the defaults for Analyze.
func DefaultOptions() Options {
	return Options{
		Threshold:  DefaultThreshold,
		WindowSize: 30,
		DecayRate:  0.1,
	}
}

func applyDefaults(opts *Options) {
	defaults := DefaultOptions()

	if !(opts.Threshold > 0) || math.IsInf(opts.Threshold, 0) {
		opts.Threshold = defaults.Threshold
	}

	if opts.WindowSize <= 0 {
		opts.WindowSize = defaults.WindowSize
	}

	if !(opts.DecayRate > 0) {
		opts.DecayRate = defaults.DecayRate
	}

	opts.DecayRate = min(opts.DecayRate, 0.999)
}

// Analyze computes Delta E statistics over consecutive colors. It is a pure function of its input.
// Fewer than two colors yield a zeroed result flagged InsufficientData.
func Analyze(colors []types.LabColor, opts Options) *types.ContrastResult {
	if len(colors) < 2 {
		return &types.ContrastResult{TotalSamples: len(colors), InsufficientData: true}
	}

	applyDefaults(&opts)

	deltas := make([]float64, len(colors)-1)

	var (
		mean        float64
		m2          float64
		maxDelta    float64
		significant int
	)

	// Welford's online mean and variance.
	for i := 1; i < len(colors); i++ {
		delta := DeltaE76(colors[i-1], colors[i])
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			delta = 0
		}

		deltas[i-1] = delta

		n := float64(i)
		diff := delta - mean
		mean += diff / n
		m2 += diff * (delta - mean)

		maxDelta = max(maxDelta, delta)

		if delta >= opts.Threshold {
			significant++
		}
	}

	count := float64(len(deltas))

	variance := m2 / count
	if opts.SampleCorrected && len(deltas) > 1 {
		variance = m2 / (count - 1)
	}

	var weighted float64
	if opts.HalfLifeMs > 0 && len(opts.Timestamps) == len(colors) {
		weighted = timeWeighted(deltas, opts.Timestamps[1:], opts.HalfLifeMs)
	} else {
		weighted = indexWeighted(deltas, opts)
	}

	tree := percentile.Build(deltas)
	median, _ := tree.Quantile(50)
	p90, _ := tree.Quantile(90)
	p95, _ := tree.Quantile(95)

	return &types.ContrastResult{
		Sensitivity:           min(100, 100*mean/opts.Threshold),
		Fluctuations:          math.Sqrt(max(variance, 0)),
		AverageDeltaE:         mean,
		MaxDeltaE:             maxDelta,
		SignificantChanges:    significant,
		TotalSamples:          len(colors),
		FluctuationRate:       float64(significant) / count,
		WeightedAverageDeltaE: weighted,
		MedianDeltaE:          median,
		P90DeltaE:             p90,
		P95DeltaE:             p95,
	}
}

// indexWeighted averages the last WindowSize deltas with weight base^age (age 0 is the newest).
func indexWeighted(deltas []float64, opts Options) float64 {
	base := 1 - opts.DecayRate
	if opts.HalfLifeSamples > 0 {
		base = math.Pow(0.5, 1/opts.HalfLifeSamples)
	}

	start := max(0, len(deltas)-opts.WindowSize)
	weight := 1.0

	var sum, weights float64

	for i := len(deltas) - 1; i >= start; i-- {
		sum += deltas[i] * weight
		weights += weight
		weight *= base
	}

	if weights == 0 {
		return 0
	}

	return sum / weights
}

// timeWeighted averages deltas with weight exp(-age*ln2/halfLife), age measured from the newest timestamp.
func timeWeighted(deltas, timestamps []float64, halfLifeMs float64) float64 {
	newest := timestamps[len(timestamps)-1]

	var sum, weights float64

	for i, delta := range deltas {
		age := newest - timestamps[i]
		if math.IsNaN(age) || age < 0 {
			age = 0
		}

		weight := math.Exp(-age * math.Ln2 / halfLifeMs)
		sum += delta * weight
		weights += weight
	}

	if !(weights > 0) {
		return 0
	}

	return sum / weights
}
