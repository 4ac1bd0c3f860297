//nolint:staticcheck // too dumb on Db vs. DB
package types

// TimeUnit declares the unit of frame timestamps. It is never inferred from the data.
type TimeUnit int

const (
	UnitUnknown TimeUnit = iota
	Seconds
	Milliseconds
)

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "s"
	case Milliseconds:
		return "ms"
	case UnitUnknown:
	}

	return "unknown"
}

// ToSeconds converts a timestamp expressed in this unit to seconds.
func (u TimeUnit) ToSeconds(value float64) float64 {
	if u == Milliseconds {
		return value / 1000
	}

	return value
}

// RGB is a color sample with channels in [0,255].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// LabColor is a CIE L*a*b* color (D65 white point).
type LabColor struct {
	L float64
	A float64
	B float64
}

// Frame is the per-frame scalar record produced by the feature extractor.
type Frame struct {
	Timestamp  float64 `json:"timestamp"`          // in the session TimeUnit
	Brightness float64 `json:"brightness"`         // normalized, [0,1]
	Color      RGB     `json:"color"`              // dominant color
	Flash      bool    `json:"flash"`              // extractor flagged a flash
	Pattern    float64 `json:"pattern,omitempty"`  // pattern periodicity score, [0,1]
	Coverage   float64 `json:"coverage,omitempty"` // bright-area fraction of the screen, [0,1]
}

// SpectralBin is one FFT bin up to Nyquist.
type SpectralBin struct {
	Frequency              float64 // Hz, bin center
	Amplitude              float64 // coherent-gain corrected
	Phase                  float64 // radians
	InstantaneousFrequency float64 // Hz, from phase advance since the previous call
}

/*
Spectral Interpretation

| DominantFrequency | ConfidenceDb | Interpretation                              |
|-------------------|--------------|---------------------------------------------|
| 0                 | any          | Not enough samples yet, or no band content. |
| 3-30 Hz           | > 10 dB      | Periodic flicker in the hazardous band.     |
| 3-30 Hz           | < 3 dB       | Broadband brightness change, not flicker.   |
| > 30 Hz           | any          | Above the photosensitive band.              |

SpectralFlatness approaches 1.0 for noise-like brightness and 0 for a pure tone.
*/

// SpectralResult contains the brightness spectrum of the most recent window.
type SpectralResult struct {
	DominantFrequency              float64
	DominantInstantaneousFrequency float64
	DominantAmplitude              float64 // amplitude of the dominant bin, in brightness units
	Spectrum                       []SpectralBin
	SpectralFlatness               float64
	ConfidenceDb                   float64
	BinResolutionHz                float64
	WindowSize                     int
}

/*
Contrast Sensitivity Interpretation

| AverageDeltaE | Interpretation                          |
|---------------|-----------------------------------------|
| < 1.0         | Imperceptible color changes.            |
| 1.0-2.3       | Perceptible on close inspection.        |
| 2.3-10        | Noticeable at a glance.                 |
| > 10          | Strong chromatic changes between frames.|

Sensitivity is AverageDeltaE expressed as a percentage of the JND threshold, capped at 100.
*/

// ContrastResult contains perceptual color-difference statistics over a color sequence.
type ContrastResult struct {
	Sensitivity           float64
	Fluctuations          float64 // standard deviation of Delta E
	AverageDeltaE         float64
	MaxDeltaE             float64
	SignificantChanges    int
	TotalSamples          int
	FluctuationRate       float64 // significant changes per delta, [0,1]
	WeightedAverageDeltaE float64
	MedianDeltaE          float64
	P90DeltaE             float64
	P95DeltaE             float64
	InsufficientData      bool // fewer than 2 samples; every other field is zero
}

// TemporalContrast is the per-sample output of the streaming contrast analyzer.
type TemporalContrast struct {
	Timestamp     float64 // ms
	WindowStart   float64 // ms, timestamp of the oldest sample kept in the window
	WindowSamples int
	Window        ContrastResult
	TrendDeltaE   float64 // exponentially weighted Delta E over the whole series
}

// FlashEvent is a single flash.
type FlashEvent struct {
	Timestamp float64 // seconds
	Frame     int
}

// FlashCluster is a maximal run of flashes separated by gaps within the cluster threshold.
type FlashCluster struct {
	ID         int
	StartTime  float64
	EndTime    float64
	StartFrame int
	EndFrame   int
	Count      int
	Flashes    []FlashEvent
}

// ViolationWindow is a closed one second window whose flash count exceeded the threshold.
// StartFrame and EndFrame are both inclusive.
type ViolationWindow struct {
	StartTime  float64
	EndTime    float64
	StartFrame int
	EndFrame   int
	FrameCount int
	FlashCount int
	Clusters   []int // IDs of overlapping clusters
}

// FlashUpdate is the per-frame output of the flash violation tracker.
type FlashUpdate struct {
	InWindow         bool
	WindowFlashes    int
	ViolationFrames  int
	ViolationWindows int
	Clusters         int // closed and open
}

// ChromaticResult contains red-channel and opponent-color measurements for one frame.
type ChromaticResult struct {
	RedIntensity float64 // saturated red, [0,1]
	RedDelta     float64 // absolute change of RedIntensity since the previous frame
	RedGreen     float64 // red-green opponent value, [-1,1]
	BlueYellow   float64 // blue-yellow opponent value, [-1,1]
	Contrast     float64 // max opponent change since the previous frame, [0,1]
	HasPrevious  bool
}

// RiskLevel is an ordered photosensitivity risk classification.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	}

	return "unknown"
}

// RiskAssessment is the output of the risk escalation engine.
type RiskAssessment struct {
	Level   RiskLevel // reported, never below Highest
	Current RiskLevel // classification of this frame alone
	Highest RiskLevel // highest level this session
	Score   float64   // weighted composite score
	Reasons []string  // thresholds that triggered Current
}
