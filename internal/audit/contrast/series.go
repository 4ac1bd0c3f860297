package contrast

import (
	"math"

	"github.com/farcloser/photic/internal/types"
)

const (
	minWindowSamples = 5
	maxWindowSamples = 120

	// compactAfter is the number of discarded samples tolerated before the backing slice is compacted.
	compactAfter = 1024
)

// SeriesOptions configures the streaming analyzer.
type SeriesOptions struct {
	Analysis           Options // Timestamps is managed by the series
	WindowMs           float64 // default 1000
	SamplingIntervalMs float64 // expected spacing between samples (default 1000/30)
	TrendHalfLifeMs    float64 // half-life of the whole-series trend (default 500)
}

// DefaultSeriesOptions returns the defaults for 30 fps sampling.
func DefaultSeriesOptions() SeriesOptions {
	return SeriesOptions{
		Analysis:           DefaultOptions(),
		WindowMs:           1000,
		SamplingIntervalMs: 1000.0 / 30,
		TrendHalfLifeMs:    500,
	}
}

// TimedColor is a Lab sample with its timestamp in milliseconds.
type TimedColor struct {
	TimestampMs float64
	Color       types.LabColor
}

// Series applies Analyze over a sliding time window, one sample at a time.
// The window start only moves forward: discarded samples are never revisited.
type Series struct {
	opts       SeriesOptions
	minSamples int
	samples    []TimedColor
	start      int
	trend      float64
	hasTrend   bool
}

// NewSeries returns an empty streaming analyzer.
func NewSeries(opts SeriesOptions) *Series {
	defaults := DefaultSeriesOptions()

	if !(opts.WindowMs > 0) {
		opts.WindowMs = defaults.WindowMs
	}

	if !(opts.SamplingIntervalMs > 0) {
		opts.SamplingIntervalMs = defaults.SamplingIntervalMs
	}

	if !(opts.TrendHalfLifeMs > 0) {
		opts.TrendHalfLifeMs = defaults.TrendHalfLifeMs
	}

	return &Series{
		opts:       opts,
		minSamples: MinWindowSamples(opts.WindowMs, opts.SamplingIntervalMs),
	}
}

// MinWindowSamples is the number of samples a window keeps even when they are older than the window span.
// Sparse sampling extends the window back in time rather than analyzing a handful of points.
func MinWindowSamples(windowMs, intervalMs float64) int {
	expected := math.Ceil(windowMs / intervalMs / 2)
	if math.IsNaN(expected) || math.IsInf(expected, 0) {
		return minWindowSamples
	}

	return int(min(max(expected, minWindowSamples), maxWindowSamples))
}

// Reset forgets every sample and the trend.
func (s *Series) Reset() {
	s.samples = nil
	s.start = 0
	s.trend = 0
	s.hasTrend = false
}

// Push adds a sample and analyzes the current window.
func (s *Series) Push(timestampMs float64, color types.LabColor) types.TemporalContrast {
	if n := len(s.samples); n > 0 {
		previous := s.samples[n-1]
		delta := DeltaE76(previous.Color, color)

		if !math.IsNaN(delta) && !math.IsInf(delta, 0) {
			if s.hasTrend {
				elapsed := max(timestampMs-previous.TimestampMs, 0)
				alpha := 1 - math.Exp(-elapsed*math.Ln2/s.opts.TrendHalfLifeMs)
				s.trend += alpha * (delta - s.trend)
			} else {
				s.trend = delta
				s.hasTrend = true
			}
		}
	}

	s.samples = append(s.samples, TimedColor{TimestampMs: timestampMs, Color: color})

	for len(s.samples)-s.start > s.minSamples && s.samples[s.start].TimestampMs < timestampMs-s.opts.WindowMs {
		s.start++
	}

	if s.start >= compactAfter && s.start*2 >= len(s.samples) {
		s.samples = append([]TimedColor(nil), s.samples[s.start:]...)
		s.start = 0
	}

	window := s.samples[s.start:]
	colors := make([]types.LabColor, len(window))
	timestamps := make([]float64, len(window))

	for i, sample := range window {
		colors[i] = sample.Color
		timestamps[i] = sample.TimestampMs
	}

	opts := s.opts.Analysis
	opts.Timestamps = timestamps

	return types.TemporalContrast{
		Timestamp:     timestampMs,
		WindowStart:   window[0].TimestampMs,
		WindowSamples: len(window),
		Window:        *Analyze(colors, opts),
		TrendDeltaE:   s.trend,
	}
}

// AnalyzeTemporalSeries runs a fresh Series over a complete sequence.
func AnalyzeTemporalSeries(samples []TimedColor, opts SeriesOptions) []types.TemporalContrast {
	series := NewSeries(opts)
	out := make([]types.TemporalContrast, 0, len(samples))

	for _, sample := range samples {
		out = append(out, series.Push(sample.TimestampMs, sample.Color))
	}

	return out
}
