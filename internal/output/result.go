// Package output provides shared result serialization for photic JSON output.
package output

import (
	"github.com/farcloser/photic"
	"github.com/farcloser/photic/internal/types"
)

// ReportToMap converts a session report into the canonical map structure
// used for JSON and JSONL serialization.
func ReportToMap(report *photic.Report) map[string]any {
	meta := map[string]any{
		"session": report.SessionID,
		"summary": map[string]any{
			"risk":           report.Risk.String(),
			"issue_count":    report.IssueCount,
			"worst_severity": report.WorstSeverity.String(),
			"frames":         report.Frames,
			"duration_sec":   report.Duration,
		},
		"peaks": map[string]any{
			"psi":                report.PeakPSI,
			"flashes_per_second": report.PeakFlashesPerSecond,
			"red_delta":          report.PeakRedDelta,
			"pattern":            report.PeakPattern,
			"flicker_hz":         report.PeakFlickerHz,
		},
		"delta_e": map[string]any{
			"median": report.MedianDeltaE,
			"p95":    report.P95DeltaE,
			"trend":  report.TrendDeltaE,
		},
	}

	// Issues.
	issues := make([]any, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issues = append(issues, map[string]any{
			"check":      issue.Check.String(),
			"detected":   issue.Detected,
			"severity":   issue.Severity.String(),
			"summary":    issue.Summary,
			"confidence": issue.Confidence,
		})
	}

	meta["issues"] = issues

	meta["flashes"] = map[string]any{
		"violation_frames": report.ViolationFrames,
		"windows":          WindowsToMap(report.Windows),
		"clusters":         ClustersToMap(report.Clusters),
	}

	// Raw analyzer results.
	if r := report.Spectral; r != nil {
		meta["spectral"] = SpectralToMap(r)
	}

	if r := report.Contrast; r != nil {
		meta["contrast"] = ContrastToMap(r)
	}

	return meta
}

// FrameToMap converts one frame result to a map, for per-frame JSONL output.
func FrameToMap(result *photic.FrameResult) map[string]any {
	meta := map[string]any{
		"frame":              result.Index,
		"timestamp":          result.Timestamp,
		"flash":              result.Flash,
		"flashes_per_second": result.FlashesPerSecond,
		"in_window":          result.Flashes.InWindow,
		"violation_windows":  result.Flashes.ViolationWindows,
		"psi":                result.PSI,
		"risk":               result.Risk.Level.String(),
		"risk_current":       result.Risk.Current.String(),
		"risk_score":         result.Risk.Score,
		"reasons":            result.Risk.Reasons,
		"red_intensity":      result.Chromatic.RedIntensity,
		"red_delta":          result.Chromatic.RedDelta,
		"delta_e_trend":      result.Contrast.TrendDeltaE,
	}

	if r := result.Spectral; r != nil {
		meta["dominant_hz"] = r.DominantFrequency
		meta["confidence_db"] = r.ConfidenceDb
	}

	return meta
}

// SpectralToMap converts a spectral result to a map. Bins are left out: they belong to debugging, not reports.
func SpectralToMap(result *types.SpectralResult) map[string]any {
	return map[string]any{
		"dominant_hz":               result.DominantFrequency,
		"dominant_instantaneous_hz": result.DominantInstantaneousFrequency,
		"confidence_db":             result.ConfidenceDb,
		"flatness":                  result.SpectralFlatness,
		"bin_resolution_hz":         result.BinResolutionHz,
		"window_size":               result.WindowSize,
		"bins":                      len(result.Spectrum),
	}
}

// ContrastToMap converts contrast sensitivity results to a map.
func ContrastToMap(result *types.ContrastResult) map[string]any {
	return map[string]any{
		"sensitivity":         result.Sensitivity,
		"fluctuations":        result.Fluctuations,
		"average_delta_e":     result.AverageDeltaE,
		"max_delta_e":         result.MaxDeltaE,
		"weighted_delta_e":    result.WeightedAverageDeltaE,
		"median_delta_e":      result.MedianDeltaE,
		"p90_delta_e":         result.P90DeltaE,
		"p95_delta_e":         result.P95DeltaE,
		"significant_changes": result.SignificantChanges,
		"fluctuation_rate":    result.FluctuationRate,
		"samples":             result.TotalSamples,
	}
}

// WindowsToMap converts violation windows to a list of maps.
func WindowsToMap(windows []types.ViolationWindow) []any {
	out := make([]any, 0, len(windows))
	for _, window := range windows {
		out = append(out, map[string]any{
			"start_sec":   window.StartTime,
			"end_sec":     window.EndTime,
			"start_frame": window.StartFrame,
			"end_frame":   window.EndFrame,
			"frame_count": window.FrameCount,
			"flash_count": window.FlashCount,
			"clusters":    window.Clusters,
		})
	}

	return out
}

// ClustersToMap converts flash clusters to a list of maps, without their individual flashes.
func ClustersToMap(clusters []types.FlashCluster) []any {
	out := make([]any, 0, len(clusters))
	for _, cluster := range clusters {
		out = append(out, map[string]any{
			"id":          cluster.ID,
			"start_sec":   cluster.StartTime,
			"end_sec":     cluster.EndTime,
			"start_frame": cluster.StartFrame,
			"end_frame":   cluster.EndFrame,
			"count":       cluster.Count,
		})
	}

	return out
}
