package spectral

import "math"

// PhaseTracker remembers the phase of every bin between calls so that an instantaneous
// frequency can be derived from the phase advance. It is invalidated whenever the
// transform geometry (FFT size, buffer length) or the sample rate changes.
type PhaseTracker struct {
	size          int
	bufferLength  int
	rate          float64
	lastTimestamp float64
	hasTimestamp  bool
	phases        map[int]float64
}

// NewPhaseTracker returns an empty tracker.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{phases: make(map[int]float64)}
}

// Reset forgets every stored phase.
func (p *PhaseTracker) Reset() {
	clear(p.phases)
	p.size = 0
	p.bufferLength = 0
	p.rate = 0
	p.hasTimestamp = false
	p.lastTimestamp = 0
}

// Begin starts a new call and returns the elapsed time since the previous one.
// Stored phases are dropped when the geometry or rate differs from the previous call.
func (p *PhaseTracker) Begin(size, bufferLength int, rate, timestamp float64, hasTimestamp bool) float64 {
	if size != p.size || bufferLength != p.bufferLength || rate != p.rate {
		clear(p.phases)
		p.size = size
		p.bufferLength = bufferLength
		p.rate = rate
		p.hasTimestamp = false
	}

	elapsed := 1 / rate
	if hasTimestamp && p.hasTimestamp {
		if dt := timestamp - p.lastTimestamp; dt > 0 && !math.IsInf(dt, 0) {
			elapsed = dt
		}
	}

	p.hasTimestamp = hasTimestamp
	p.lastTimestamp = timestamp

	return elapsed
}

// Instantaneous records the phase of a bin and returns its instantaneous frequency,
// measured as the deviation from the phase advance expected at the bin center:
//
//	center + wrap(phase - previous - 2π·center·elapsed) / (2π·elapsed)
//
// Without a previous phase the bin center frequency is returned.
func (p *PhaseTracker) Instantaneous(bin int, center, phase, elapsed float64) float64 {
	previous, ok := p.phases[bin]
	p.phases[bin] = phase

	if !ok || elapsed <= 0 {
		return center
	}

	expected := 2 * math.Pi * center * elapsed
	deviation := wrapPhase(phase - previous - expected)

	return center + deviation/(2*math.Pi*elapsed)
}

// wrapPhase maps an angle into (-pi, pi].
func wrapPhase(angle float64) float64 {
	wrapped := math.Mod(angle+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}

	return wrapped - math.Pi
}
