// Package spectral tracks the brightness spectrum of a video over a sliding window.
package spectral

import (
	"math"
	"slices"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/photic/internal/ringbuffer"
	"github.com/farcloser/photic/internal/types"
)

const (
	// MinSamples is the smallest window analyzed, whatever the FFT length.
	MinSamples = 32

	// Dominant frequency search band, Hz.
	BandLowHz  = 3.0
	BandHighHz = 50.0

	// Bins on each side of the peak used as the noise reference.
	noiseNeighbors = 4

	epsilon = 1e-12
)

// Params configures a single Analyze call.
type Params struct {
	BufferLength int     // ring buffer capacity (default 128)
	FFTLength    int     // samples per transform before padding (default 64)
	SampleRate   float64 // Hz (default 30)

	// Timestamp of the sample in seconds. When HasTimestamp is false, consecutive
	// calls are assumed to be 1/SampleRate apart.
	Timestamp    float64
	HasTimestamp bool
}

// DefaultParams returns the parameters used for 30 fps video.
func DefaultParams() Params {
	return Params{
		BufferLength: 128,
		FFTLength:    64,
		SampleRate:   30,
	}
}

// Engine is the stateful spectral analyzer of one session.
type Engine struct {
	buffer  *ringbuffer.Buffer[float64]
	tracker *PhaseTracker
	ffts    map[int]*Radix2
	windows map[int][]float64
}

// NewEngine returns an engine with an empty history.
func NewEngine() *Engine {
	return &Engine{
		buffer:  ringbuffer.New[float64](DefaultParams().BufferLength),
		tracker: NewPhaseTracker(),
		ffts:    make(map[int]*Radix2),
		windows: make(map[int][]float64),
	}
}

// Reset drops the sample history and the phase history.
func (e *Engine) Reset() {
	e.buffer.Reset()
	e.tracker.Reset()
}

// Len returns the number of buffered samples.
func (e *Engine) Len() int {
	return e.buffer.Len()
}

// Analyze pushes one brightness sample and analyzes the most recent window.
// Malformed samples and parameters never fail the call: they yield a zeroed result.
func (e *Engine) Analyze(brightness float64, params Params) *types.SpectralResult {
	params = withDefaults(params)

	required := max(MinSamples, params.FFTLength)
	e.buffer.Resize(max(params.BufferLength, required))
	e.buffer.Push(sanitize(brightness))

	fill := e.buffer.Len()
	if fill < required {
		return &types.SpectralResult{WindowSize: fill}
	}

	if params.SampleRate <= 0 || math.IsNaN(params.SampleRate) || math.IsInf(params.SampleRate, 0) {
		return &types.SpectralResult{WindowSize: fill}
	}

	size := nextPowerOfTwo(params.FFTLength)
	if size == 0 {
		return &types.SpectralResult{WindowSize: fill}
	}

	samples := e.buffer.Last(params.FFTLength)
	hann := e.window(params.FFTLength)

	windowSum := floats.Sum(hann)
	if windowSum <= epsilon {
		return &types.SpectralResult{WindowSize: fill}
	}

	center := median(samples)
	re := make([]float64, size)
	im := make([]float64, size)

	for i, sample := range samples {
		re[i] = (sample - center) * hann[i]
	}

	e.transform(size).Transform(re, im)

	elapsed := e.tracker.Begin(size, e.buffer.Cap(), params.SampleRate, params.Timestamp, params.HasTimestamp)

	half := size / 2
	resolution := params.SampleRate / float64(size)
	spectrum := make([]types.SpectralBin, half+1)

	for k := range half + 1 {
		scale := 2 / windowSum
		if k == 0 || k == half {
			scale = 1 / windowSum
		}

		frequency := float64(k) * resolution
		phase := math.Atan2(im[k], re[k])

		spectrum[k] = types.SpectralBin{
			Frequency:              frequency,
			Amplitude:              math.Hypot(re[k], im[k]) * scale,
			Phase:                  phase,
			InstantaneousFrequency: e.tracker.Instantaneous(k, frequency, phase, elapsed),
		}
	}

	result := &types.SpectralResult{
		Spectrum:        spectrum,
		BinResolutionHz: resolution,
		WindowSize:      params.FFTLength,
	}

	low := max(1, int(math.Ceil(BandLowHz/resolution)))
	high := min(half, int(math.Floor(BandHighHz/resolution)))

	if low <= high {
		peak := low
		for k := low + 1; k <= high; k++ {
			if spectrum[k].Amplitude > spectrum[peak].Amplitude {
				peak = k
			}
		}

		if spectrum[peak].Amplitude > 0 {
			result.DominantFrequency = spectrum[peak].Frequency
			result.DominantInstantaneousFrequency = spectrum[peak].InstantaneousFrequency
			result.DominantAmplitude = spectrum[peak].Amplitude
			result.ConfidenceDb = confidence(spectrum, peak)
		}

		amplitudes := make([]float64, 0, high-low+1)
		for k := low; k <= high; k++ {
			amplitudes = append(amplitudes, spectrum[k].Amplitude)
		}

		result.SpectralFlatness = spectralFlatness(amplitudes)
	}

	if !finite(result) {
		return &types.SpectralResult{WindowSize: fill}
	}

	return result
}

func (e *Engine) transform(size int) *Radix2 {
	fft, ok := e.ffts[size]
	if !ok {
		fft = NewRadix2(size)
		e.ffts[size] = fft
	}

	return fft
}

func (e *Engine) window(size int) []float64 {
	coefficients, ok := e.windows[size]
	if !ok {
		coefficients = window.Hann(size)
		e.windows[size] = coefficients
	}

	return coefficients
}

func withDefaults(params Params) Params {
	defaults := DefaultParams()

	if params.BufferLength <= 0 {
		params.BufferLength = defaults.BufferLength
	}

	if params.FFTLength <= 0 {
		params.FFTLength = defaults.FFTLength
	}

	if params.SampleRate == 0 {
		params.SampleRate = defaults.SampleRate
	}

	return params
}

// sanitize coerces a brightness sample into [0,1]; non-finite values become 0.
func sanitize(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	return min(max(value, 0), 1)
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

// confidence is the peak-to-neighborhood power ratio in dB.
func confidence(spectrum []types.SpectralBin, peak int) float64 {
	signal := spectrum[peak].Amplitude * spectrum[peak].Amplitude

	var noiseSum float64

	count := 0

	for k := max(0, peak-noiseNeighbors); k <= min(len(spectrum)-1, peak+noiseNeighbors); k++ {
		if k == peak {
			continue
		}

		noiseSum += spectrum[k].Amplitude * spectrum[k].Amplitude
		count++
	}

	noise := epsilon
	if count > 0 {
		noise = max(noiseSum/float64(count), epsilon)
	}

	return 10 * math.Log10(signal/noise)
}

// spectralFlatness computes the Wiener entropy: geometric mean / arithmetic mean of the positive amplitudes.
// Returns 1.0 for white noise (flat spectrum), lower for tonal content.
func spectralFlatness(amplitudes []float64) float64 {
	var arithmeticSum float64

	var logSum float64

	count := 0

	for _, a := range amplitudes {
		if a > 0 {
			arithmeticSum += a
			logSum += math.Log(a)
			count++
		}
	}

	if count == 0 || arithmeticSum == 0 {
		return 0
	}

	arithmeticMean := arithmeticSum / float64(count)
	geometricMean := math.Exp(logSum / float64(count))

	return min(geometricMean/arithmeticMean, 1)
}

func finite(result *types.SpectralResult) bool {
	scalars := []float64{
		result.DominantFrequency,
		result.DominantInstantaneousFrequency,
		result.DominantAmplitude,
		result.SpectralFlatness,
		result.ConfidenceDb,
	}

	for _, bin := range result.Spectrum {
		scalars = append(scalars, bin.Amplitude, bin.Phase, bin.InstantaneousFrequency)
	}

	for _, v := range scalars {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
