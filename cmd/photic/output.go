//nolint:wrapcheck
package main

import (
	"fmt"
	"os"

	"github.com/farcloser/primordium/format"

	"github.com/farcloser/photic"
	"github.com/farcloser/photic/internal/output"
)

const docsBaseURL = "https://github.com/farcloser/photic/blob/main/docs/issues"

// issueInfo maps checks to their PHO ID and category.
type issueInfo struct {
	phoID    string
	category string
}

//nolint:gochecknoglobals // configuration data, effectively const
var issueInfoMap = map[photic.Check]issueInfo{
	// Flashing
	photic.CheckFlashRate: {phoID: "PHO-001", category: "1. Flashing"},
	photic.CheckPSI:       {phoID: "PHO-002", category: "1. Flashing"},
	photic.CheckFlicker:   {phoID: "PHO-003", category: "1. Flashing"},

	// Color
	photic.CheckRedFlash:      {phoID: "PHO-004", category: "2. Color"},
	photic.CheckColorContrast: {phoID: "PHO-005", category: "2. Color"},

	// Patterns
	photic.CheckPattern: {phoID: "PHO-006", category: "3. Patterns"},
}

// categoryOrder defines the display order for categories (numbered for sorting).
//
//nolint:gochecknoglobals // configuration data, effectively const
var categoryOrder = []string{
	"1. Flashing",
	"2. Color",
	"3. Patterns",
}

func outputReport(filePath string, report *photic.Report, formatName string, debug bool) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	var meta map[string]any
	if debug {
		meta = output.ReportToMap(report)
	} else {
		meta = buildFriendlyOutput(report)
	}

	data := &format.Data{
		Object: filePath,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}

// buildFriendlyOutput creates a user-friendly summary of the analysis results.
func buildFriendlyOutput(report *photic.Report) map[string]any {
	meta := map[string]any{
		"summary": fmt.Sprintf("%s risk, %d issues found (worst: %s)",
			report.Risk, report.IssueCount, report.WorstSeverity),
	}

	// Group issues by category.
	categoryIssues := make(map[string][]any)

	for _, issue := range report.Issues {
		info, ok := issueInfoMap[issue.Check]
		if !ok {
			continue
		}

		marker := "  "
		if issue.Detected {
			marker = "!!"
		}

		docURL := fmt.Sprintf("%s/%s.md", docsBaseURL, info.phoID)
		line := fmt.Sprintf("%s [%s] %s: %s (%.0f%% confidence) - %s",
			marker, issue.Severity, issue.Check, issue.Summary, issue.Confidence*100, docURL)

		categoryIssues[info.category] = append(categoryIssues[info.category], line)
	}

	// Build ordered issues map.
	if len(categoryIssues) > 0 {
		issues := make(map[string]any)

		for _, cat := range categoryOrder {
			if catIssues, ok := categoryIssues[cat]; ok {
				issues[cat] = catIssues
			}
		}

		meta["issues"] = issues
	}

	// Key properties.
	props := buildProperties(report)
	if len(props) > 0 {
		meta["properties"] = props
	}

	return meta
}

func buildProperties(report *photic.Report) map[string]any {
	props := map[string]any{
		"duration": fmt.Sprintf("%.2f s (%d frames)", report.Duration, report.Frames),
	}

	if report.PeakFlashesPerSecond > 0 {
		props["flash_rate"] = fmt.Sprintf("%d per second at peak", report.PeakFlashesPerSecond)
	}

	if len(report.Windows) > 0 {
		props["violations"] = fmt.Sprintf("%d windows, %d frames, %d clusters",
			len(report.Windows), report.ViolationFrames, len(report.Clusters))
	}

	if r := report.Spectral; r != nil {
		props["flicker"] = fmt.Sprintf("%.1f Hz (%s)", r.DominantFrequency, flickerLabel(r.ConfidenceDb))
	}

	props["psi"] = fmt.Sprintf("%.2f peak", report.PeakPSI)
	props["delta_e"] = fmt.Sprintf("median %.1f, p95 %.1f (%s)",
		report.MedianDeltaE, report.P95DeltaE, deltaELabel(report.P95DeltaE))

	return props
}

func flickerLabel(confidenceDb float64) string {
	switch {
	case confidenceDb > 10:
		return "periodic"
	case confidenceDb > 3:
		return "weak"
	default:
		return "broadband"
	}
}

func deltaELabel(deltaE float64) string {
	switch {
	case deltaE < 1:
		return "imperceptible"
	case deltaE < 2.3:
		return "subtle"
	case deltaE < 10:
		return "noticeable"
	default:
		return "strong"
	}
}
