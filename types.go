package photic

import "github.com/farcloser/photic/internal/types"

type (
	Frame     = types.Frame
	RGB       = types.RGB
	RiskLevel = types.RiskLevel
)

const (
	RiskLow    = types.RiskLow
	RiskMedium = types.RiskMedium
	RiskHigh   = types.RiskHigh
)

// FrameResult is the analysis of one frame.
type FrameResult struct {
	Index     int
	Timestamp float64 // seconds
	Flash     bool    // counted as a flash, by the extractor or by brightness change

	Spectral         *types.SpectralResult
	Contrast         types.TemporalContrast
	Chromatic        types.ChromaticResult
	Flashes          types.FlashUpdate
	FlashesPerSecond int // flashes in the second ending at this frame
	PSI              float64
	Risk             types.RiskAssessment
}

// Report summarizes a session.
type Report struct {
	SessionID string
	Frames    int
	Duration  float64 // seconds, first to last timestamp

	// Highest risk level of the session.
	Risk RiskLevel

	// High-level issues
	Issues []Issue

	// Quick access booleans
	HasFlashViolations bool
	HasRedFlash        bool
	HasFlicker         bool
	HasPatterns        bool
	HasColorContrast   bool
	HasHighPSI         bool

	// Summary
	IssueCount    int
	WorstSeverity Severity

	// Peaks over the session
	PeakPSI              float64
	PeakFlashesPerSecond int
	PeakRedDelta         float64
	PeakPattern          float64
	PeakFlickerHz        float64 // dominant frequency of Spectral, 0 when no flicker was found

	// Flash history
	ViolationFrames int
	Windows         []types.ViolationWindow
	Clusters        []types.FlashCluster

	// Raw analysis results (nil when never available)
	Spectral *types.SpectralResult // strongest in-band spectrum
	Contrast *types.ContrastResult // window with the highest p95 Delta E

	// Delta E between consecutive frames since the last seek
	MedianDeltaE float64
	P95DeltaE    float64
	TrendDeltaE  float64
}
