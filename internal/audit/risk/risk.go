// Package risk classifies per-frame photosensitivity measurements into a session-wide risk level
// that never decreases until the session is reset.
package risk

import (
	"fmt"
	"math"

	"github.com/farcloser/photic/internal/types"
)

// Flicker band, in Hz.
const (
	FlickerLowHz  = 3.0
	FlickerHighHz = 30.0
)

// Minimum history before anything above low can be assigned.
const (
	MinFlashHistory   = 2
	MinPatternHistory = 2
)

type threshold struct {
	psi, intensity, coverage, red, redDelta, chroma, pattern float64
}

var (
	high = threshold{
		psi:       0.8,
		intensity: 0.8,
		coverage:  0.25,
		red:       0.8,
		redDelta:  0.6,
		chroma:    0.8,
		pattern:   0.8,
	}
	medium = threshold{
		psi:       0.5,
		intensity: 0.5,
		coverage:  0.1,
		red:       0.5,
		redDelta:  0.3,
		chroma:    0.5,
		pattern:   0.5,
	}
)

// Composite score weights and cut points.
const (
	weightPSI     = 0.7
	weightColor   = 0.2
	weightPattern = 0.1

	scoreHigh   = 0.75
	scoreMedium = 0.5
)

// Inputs aggregates the measurements of one frame.
type Inputs struct {
	// History available so far.
	FlashHistory   int  // frames with flash measurements
	PatternHistory int  // frames with pattern measurements
	HasRed         bool // current red reading
	HasPreviousRed bool

	FlashesPerSecond float64 // max flashes in any one second window
	Intensity        float64 // average flash intensity, [0,1]
	Coverage         float64 // bright-area fraction, [0,1]
	PSI              float64
	RedIntensity     float64
	RedDelta         float64
	Chroma           float64 // red-green / blue-yellow contrast
	Pattern          float64
	FlickerHz        float64 // dominant flicker frequency, 0 when unknown
}

// Engine holds the highest level of a session. It is not safe for concurrent use.
type Engine struct {
	highest types.RiskLevel
}

func NewEngine() *Engine {
	return &Engine{}
}

// Reset starts a new session: the only way the reported level goes down.
func (e *Engine) Reset() {
	e.highest = types.RiskLow
}

// Highest is the highest level observed since the last reset.
func (e *Engine) Highest() types.RiskLevel {
	return e.highest
}

// Assess classifies one frame and folds it into the session level.
func (e *Engine) Assess(in Inputs) types.RiskAssessment {
	current, score, reasons := Classify(in)
	e.highest = max(e.highest, current)

	return types.RiskAssessment{
		Level:   e.highest,
		Current: current,
		Highest: e.highest,
		Score:   score,
		Reasons: reasons,
	}
}

// Classify is the stateless classification of a single frame.
func Classify(in Inputs) (types.RiskLevel, float64, []string) {
	in = sanitize(in)
	score := Score(in)

	if !hasHistory(in) {
		return types.RiskLow, score, nil
	}

	if reasons := exceeded(in, high, true); len(reasons) > 0 {
		return types.RiskHigh, score, reasons
	}

	if reasons := exceeded(in, medium, false); len(reasons) > 0 {
		return types.RiskMedium, score, reasons
	}

	switch {
	case score >= scoreHigh:
		return types.RiskHigh, score, []string{fmt.Sprintf("composite score %.2f", score)}
	case score >= scoreMedium:
		return types.RiskMedium, score, []string{fmt.Sprintf("composite score %.2f", score)}
	}

	return types.RiskLow, score, nil
}

// Score is the weighted composite of PSI, color and pattern risk.
func Score(in Inputs) float64 {
	in = sanitize(in)

	color := unit(max(in.RedIntensity, in.Chroma, in.RedDelta))

	return weightPSI*unit(in.PSI) + weightColor*color + weightPattern*unit(in.Pattern)
}

func hasHistory(in Inputs) bool {
	return in.FlashHistory >= MinFlashHistory &&
		in.PatternHistory >= MinPatternHistory &&
		in.HasRed && in.HasPreviousRed
}

// InFlickerBand reports whether a frequency lies in the band most likely to provoke seizures.
func InFlickerBand(hz float64) bool {
	return hz >= FlickerLowHz && hz <= FlickerHighHz
}

// exceeded lists the thresholds met by in. Flash rate is strict above 3 for high and inclusive for medium.
func exceeded(in Inputs, limits threshold, strict bool) []string {
	var reasons []string

	add := func(cond bool, format string, value float64) {
		if cond {
			reasons = append(reasons, fmt.Sprintf(format, value))
		}
	}

	add(in.PSI >= limits.psi, "psi %.2f", in.PSI)

	if strict {
		add(in.FlashesPerSecond > 3, "%.1f flashes per second", in.FlashesPerSecond)
	} else {
		add(in.FlashesPerSecond >= 3, "%.1f flashes per second", in.FlashesPerSecond)
	}

	add(in.Intensity >= limits.intensity, "flash intensity %.2f", in.Intensity)
	add(in.Coverage >= limits.coverage, "coverage %.2f", in.Coverage)
	add(in.RedIntensity >= limits.red, "red intensity %.2f", in.RedIntensity)
	add(in.RedDelta >= limits.redDelta, "red transition %.2f", in.RedDelta)
	add(in.Chroma >= limits.chroma, "chromatic contrast %.2f", in.Chroma)
	add(in.Pattern >= limits.pattern, "pattern %.2f", in.Pattern)

	if InFlickerBand(in.FlickerHz) {
		if strict {
			add(in.Intensity >= medium.intensity || in.Coverage >= medium.coverage, "flicker at %.1f Hz", in.FlickerHz)
		} else {
			add(true, "flicker at %.1f Hz", in.FlickerHz)
		}
	}

	return reasons
}

func sanitize(in Inputs) Inputs {
	for _, v := range []*float64{
		&in.FlashesPerSecond, &in.Intensity, &in.Coverage, &in.PSI,
		&in.RedIntensity, &in.RedDelta, &in.Chroma, &in.Pattern, &in.FlickerHz,
	} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}

	return in
}

func unit(v float64) float64 {
	return min(max(v, 0), 1)
}
