// Package photic analyzes a stream of per-frame video features for photosensitive seizure risk.
package photic

/*
Usage:

session, err := photic.NewSession(photic.Config{TimeUnit: photic.Milliseconds})
if err != nil {
    return err
}

for frame := range frames {
    result := session.Process(frame)
    if result.Risk.Level == photic.RiskHigh {
        fmt.Println("High risk at", result.Timestamp)
    }
}

report := session.Finish()
for _, issue := range report.Issues {
    if issue.Detected {
        fmt.Printf("[%s] %s\n", issue.Severity, issue.Summary)
    }
}

// The user seeked: drop the analysis windows, keep the session risk.
session.Seek()

// A new video: new session identifier, risk back to low.
session.Reset()

// Broadcast rules (ITU-R BT.1702 style)
cfg := photic.ConfigForProfile(photic.ProfileBroadcast)
cfg.TimeUnit = photic.Seconds
report, err := photic.Analyze(reader, cfg)

*/

// Check represents a high-level photosensitivity check.
type Check int

const (
	CheckFlashRate Check = 1 << iota
	CheckRedFlash
	CheckFlicker
	CheckPattern
	CheckColorContrast
	CheckPSI

	// Presets.
	ChecksFlash = CheckFlashRate | CheckRedFlash | CheckFlicker | CheckPSI
	ChecksAll   = ChecksFlash | CheckPattern | CheckColorContrast
)

func (c Check) String() string {
	switch c {
	case CheckFlashRate:
		return "flash-rate"
	case CheckRedFlash:
		return "red-flash"
	case CheckFlicker:
		return "flicker"
	case CheckPattern:
		return "pattern"
	case CheckColorContrast:
		return "color-contrast"
	case CheckPSI:
		return "psi"
	}

	return "unknown"
}

// Severity indicates how bad a detected issue is.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "no issue"
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	}

	return "unknown"
}

// Issue represents a detected problem.
type Issue struct {
	Check      Check
	Detected   bool
	Severity   Severity
	Summary    string  // human-readable summary
	Confidence float64 // 0.0-1.0
}

// Bands defines severity thresholds for a check. Higher values are worse.
type Bands struct {
	Mild     float64
	Moderate float64
	Severe   float64
}

// Match returns the severity for a value.
// Returns (SeverityNone, false) when the value is below detection (the Mild threshold).
func (b Bands) Match(value float64) (Severity, bool) {
	switch {
	case value >= b.Severe:
		return SeveritySevere, true
	case value >= b.Moderate:
		return SeverityModerate, true
	case value >= b.Mild:
		return SeverityMild, true
	}

	return SeverityNone, false
}
