package tests_test

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"
)

// frameRecord mirrors one line of the NDJSON frame format.
type frameRecord struct {
	Timestamp  float64            `json:"timestamp"`
	Brightness float64            `json:"brightness"`
	Color      map[string]float64 `json:"color"`
	Flash      bool               `json:"flash"`
	Coverage   float64            `json:"coverage,omitempty"`
}

// flashingRecords returns count frames at 30 fps, timestamps in milliseconds, alternating between black
// and full-screen white every third frame: a 5 Hz flicker with 10 flashes per second.
func flashingRecords(count int) string {
	var builder strings.Builder

	encoder := json.NewEncoder(&builder)

	for i := range count {
		level := float64((i / 3) % 2)
		_ = encoder.Encode(frameRecord{
			Timestamp:  float64(i) * 1000 / 30,
			Brightness: level,
			Color:      map[string]float64{"r": level * 255, "g": level * 255, "b": level * 255},
			Coverage:   level,
		})
	}

	return builder.String()
}

// steadyRecords returns count identical mid-gray frames at 30 fps, timestamps in milliseconds.
func steadyRecords(count int) string {
	var builder strings.Builder

	encoder := json.NewEncoder(&builder)

	for i := range count {
		_ = encoder.Encode(frameRecord{
			Timestamp:  float64(i) * 1000 / 30,
			Brightness: 0.4,
			Color:      map[string]float64{"r": 100, "g": 100, "b": 100},
		})
	}

	return builder.String()
}

// saveRecords writes NDJSON frame records to a temporary file and returns its path.
func saveRecords(data test.Data, name, content string) string {
	return data.Temp().Save(content, name)
}

// flashingVideo renders a three second 64x36 video alternating black and white every third frame at 30 fps.
func flashingVideo(data test.Data, helpers test.Helpers) string {
	return renderVideo(data, helpers, "flashing.mkv", "format=yuv444p,geq=lum='if(lt(mod(N,6),3),16,235)':cb=128:cr=128")
}

// steadyVideo renders a three second 64x36 mid-gray video at 30 fps.
func steadyVideo(data test.Data, helpers test.Helpers) string {
	return renderVideo(data, helpers, "steady.mkv", "format=yuv444p,geq=lum=110:cb=128:cr=128")
}

func renderVideo(data test.Data, helpers test.Helpers, name, filter string) string {
	path := data.Temp().Path(name)

	helpers.Custom("ffmpeg",
		"-v", "quiet", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=64x36:r=30:d=3",
		"-vf", filter,
		"-c:v", "ffv1",
		path,
	).Run(&test.Expected{ExitCode: expect.ExitCodeSuccess})

	return path
}

// expectIssue returns a comparator verifying that the given check was detected with the given severity.
// It looks for an issue block containing: check: <check>, detected: true, severity: <severity>.
func expectIssue(check, severity string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		checkLine := fmt.Sprintf("check: %s", check)
		detectedLine := "detected: true"
		severityLine := fmt.Sprintf("severity: %s", severity)

		if strings.Contains(stdout, checkLine) &&
			strings.Contains(stdout, detectedLine) &&
			strings.Contains(stdout, severityLine) {
			return
		}

		testing.Log(
			fmt.Sprintf("expected issue %q with severity %q not found in output:\n%s", check, severity, stdout),
		)
		testing.Fail()
	}
}

// expectIssueDetected returns a comparator verifying that the given check was detected (any severity).
// It looks for an issue block containing: check: <check>, detected: true.
func expectIssueDetected(check string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		checkLine := fmt.Sprintf("check: %s", check)
		detectedLine := "detected: true"

		if strings.Contains(stdout, checkLine) && strings.Contains(stdout, detectedLine) {
			return
		}

		testing.Log(fmt.Sprintf("expected issue %q to be detected but was not found in output:\n%s", check, stdout))
		testing.Fail()
	}
}

// expectNoIssue returns a comparator verifying that the given check was NOT detected.
// It looks for check: <check> paired with detected: false, or absence of the check entirely.
func expectNoIssue(check string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		checkLine := fmt.Sprintf("check: %s", check)

		if !strings.Contains(stdout, checkLine) {
			// Check not present at all: it was not run.
			return
		}

		detectedLine := "detected: true"
		if strings.Contains(stdout, detectedLine) {
			// Need to verify this "detected: true" belongs to the same check.
			// Parse issue blocks to find the right one.
			if issueBlockContains(stdout, check, "detected: true") {
				testing.Log(fmt.Sprintf("expected no issue for %q but it was detected in output:\n%s", check, stdout))
				testing.Fail()
			}
		}
	}
}

// issueBlockContains checks whether an issue block for the given check contains the target string.
// It scans for "check: <check>" and then looks in adjacent lines for the target.
func issueBlockContains(stdout, check, target string) bool {
	lines := strings.Split(stdout, "\n")
	checkLine := fmt.Sprintf("check: %s", check)

	for i, line := range lines {
		if !strings.Contains(line, checkLine) {
			continue
		}

		// Search nearby lines (within the same issue block).
		for j := max(0, i-5); j < min(len(lines), i+5); j++ {
			if strings.Contains(lines[j], target) {
				return true
			}
		}
	}

	return false
}

// expectWorstSeverity returns a comparator verifying the worst severity in the summary.
func expectWorstSeverity(severity string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		expected := fmt.Sprintf("worst_severity: %s", severity)

		if !strings.Contains(stdout, expected) {
			testing.Log(fmt.Sprintf("expected worst severity %q not found in output:\n%s", severity, stdout))
			testing.Fail()
		}
	}
}

// expectContains returns a comparator verifying the output contains a substring.
func expectContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if !strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("expected substring %q not found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}

// expectNotContains returns a comparator verifying the output does not contain a substring.
func expectNotContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("unexpected substring %q found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}
