package photic

import "fmt"

func interpretResults(report *Report, cfg Config) {
	// Flash rate
	if cfg.Checks&CheckFlashRate != 0 {
		windows := len(report.Windows)
		severity, detected := cfg.FlashRate.Match(float64(windows))

		var summary string

		switch severity {
		case SeverityNone:
			summary = fmt.Sprintf("No second with more than %d flashes", cfg.FlashesPerSecond)
		case SeverityMild, SeverityModerate:
			summary = fmt.Sprintf("%d seconds with more than %d flashes", windows, cfg.FlashesPerSecond)
		case SeveritySevere:
			summary = fmt.Sprintf(
				"%d seconds with more than %d flashes, peak %d per second over %d frames",
				windows,
				cfg.FlashesPerSecond,
				report.PeakFlashesPerSecond,
				report.ViolationFrames,
			)
		}

		report.HasFlashViolations = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckFlashRate,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 1.0,
		})
	}

	// Red flash
	if cfg.Checks&CheckRedFlash != 0 {
		severity, detected := cfg.RedFlash.Match(report.PeakRedDelta)

		summary := "No saturated red transitions"
		if detected {
			summary = fmt.Sprintf("Saturated red transition of %.0f%%", report.PeakRedDelta*100)
		}

		report.HasRedFlash = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckRedFlash,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 0.8,
		})
	}

	// Flicker (only meaningful when an in-band spectrum was seen)
	if cfg.Checks&CheckFlicker != 0 {
		var (
			severity   Severity
			detected   bool
			summary    = "No periodic flicker in the 3-30 Hz band"
			confidence = 0.5
		)

		if report.Spectral != nil {
			severity, detected = cfg.Flicker.Match(report.Spectral.ConfidenceDb)
			confidence = min(1, report.Spectral.ConfidenceDb/20)

			if detected {
				summary = fmt.Sprintf(
					"Flicker at %.1f Hz (%.1f dB above neighbors)",
					report.Spectral.DominantFrequency,
					report.Spectral.ConfidenceDb,
				)
			}
		}

		report.HasFlicker = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckFlicker,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: confidence,
		})
	}

	// Patterns
	if cfg.Checks&CheckPattern != 0 {
		severity, detected := cfg.Pattern.Match(report.PeakPattern)

		summary := "No hazardous patterns"
		if detected {
			summary = fmt.Sprintf("Pattern score up to %.2f", report.PeakPattern)
		}

		report.HasPatterns = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckPattern,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 0.6,
		})
	}

	// Color contrast
	if cfg.Checks&CheckColorContrast != 0 && report.Contrast != nil {
		p95 := report.Contrast.P95DeltaE
		severity, detected := cfg.ColorContrast.Match(p95)

		var summary string

		switch severity {
		case SeverityNone:
			summary = "Color changes below the noticeable threshold"
		case SeverityMild:
			summary = fmt.Sprintf("Noticeable color changes (p95 Delta E %.1f)", p95)
		case SeverityModerate, SeveritySevere:
			summary = fmt.Sprintf(
				"Strong color changes (p95 Delta E %.1f, %d significant in one window)",
				p95,
				report.Contrast.SignificantChanges,
			)
		}

		report.HasColorContrast = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckColorContrast,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 0.7,
		})
	}

	// Photosensitivity index
	if cfg.Checks&CheckPSI != 0 {
		severity, detected := cfg.PSI.Match(report.PeakPSI)

		report.HasHighPSI = detected
		report.Issues = append(report.Issues, Issue{
			Check:      CheckPSI,
			Detected:   detected,
			Severity:   severity,
			Summary:    fmt.Sprintf("Peak photosensitivity index %.2f", report.PeakPSI),
			Confidence: 0.9,
		})
	}

	for _, issue := range report.Issues {
		if issue.Detected {
			report.IssueCount++
			report.WorstSeverity = max(report.WorstSeverity, issue.Severity)
		}
	}
}
