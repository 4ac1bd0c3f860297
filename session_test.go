package photic_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/farcloser/primordium/fault"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloser/photic"
)

// flashing returns frames whose brightness toggles every third frame (10 flashes per second at 30 fps).
func flashing(count int, unit photic.TimeUnit, start int) []photic.Frame {
	return flashingAt(30, count, unit, start)
}

func flashingAt(fps float64, count int, unit photic.TimeUnit, start int) []photic.Frame {
	out := make([]photic.Frame, count)

	for i := range out {
		frame := start + i
		level := float64((frame / 3) % 2)

		timestamp := float64(frame) / fps
		if unit == photic.Milliseconds {
			timestamp = float64(frame) * 1000 / fps
		}

		out[i] = photic.Frame{
			Timestamp:  timestamp,
			Brightness: level,
			Color:      photic.RGB{R: 255 * level, G: 255 * level, B: 255 * level},
			Coverage:   level,
		}
	}

	return out
}

func steady(count, start int) []photic.Frame {
	out := make([]photic.Frame, count)

	for i := range out {
		out[i] = photic.Frame{
			Timestamp:  float64(start+i) * 1000 / 30,
			Brightness: 0.4,
			Color:      photic.RGB{R: 100, G: 100, B: 100},
		}
	}

	return out
}

func ndjson(t *testing.T, frames ...[]photic.Frame) string {
	t.Helper()

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	for _, group := range frames {
		for _, frame := range group {
			require.NoError(t, enc.Encode(frame))
		}
	}

	return buf.String()
}

func TestNewSessionValidatesConfig(t *testing.T) {
	cases := map[string]photic.Config{
		"no time unit":         {},
		"flash intensity":      {TimeUnit: photic.Seconds, FlashIntensity: 2.5},
		"negative intensity":   {TimeUnit: photic.Seconds, FlashIntensity: -0.1},
		"cluster gap":          {TimeUnit: photic.Seconds, ClusterGap: 3},
		"fft longer than ring": {TimeUnit: photic.Seconds, BufferLength: 32, FFTLength: 64},
		"nan sample rate":      {TimeUnit: photic.Seconds, SampleRate: math.NaN()},
		"negative half-life":   {TimeUnit: photic.Milliseconds, HalfLifeMs: -1},
		"flicker amplitude":    {TimeUnit: photic.Seconds, FlickerAmplitude: 1.5},
		"negative amplitude":   {TimeUnit: photic.Seconds, FlickerAmplitude: -0.02},
	}

	for name, cfg := range cases {
		_, err := photic.NewSession(cfg)
		assert.ErrorIs(t, err, photic.ErrInvalidConfig, name)
	}

	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Milliseconds, FlashIntensity: 2})
	require.NoError(t, err)

	cfg := session.Config()
	assert.InDelta(t, 30.0, cfg.SampleRate, 0)
	assert.Equal(t, 64, cfg.FFTLength)
	assert.InDelta(t, 2.0, cfg.FlashIntensity, 0)
	assert.InDelta(t, 3.5/30, cfg.ClusterGap, 1e-12)
	assert.Equal(t, photic.ChecksAll, cfg.Checks)
	assert.InDelta(t, 0.02, cfg.FlickerAmplitude, 0)
}

func TestParseTimeUnit(t *testing.T) {
	unit, err := photic.ParseTimeUnit("ms")
	require.NoError(t, err)
	assert.Equal(t, photic.Milliseconds, unit)

	unit, err = photic.ParseTimeUnit("s")
	require.NoError(t, err)
	assert.Equal(t, photic.Seconds, unit)

	_, err = photic.ParseTimeUnit("auto")
	assert.ErrorIs(t, err, photic.ErrInvalidConfig)
}

func TestProfiles(t *testing.T) {
	for _, name := range []string{"", "standard", "strict", "broadcast"} {
		profile, err := photic.ParseProfile(name)
		require.NoError(t, err, name)

		cfg := photic.ConfigForProfile(profile)
		cfg.TimeUnit = photic.Seconds

		_, err = photic.NewSession(cfg)
		require.NoError(t, err, name)
	}

	_, err := photic.ParseProfile("cinema")
	assert.Error(t, err)

	broadcast := photic.ConfigForProfile(photic.ProfileBroadcast)
	assert.InDelta(t, 25.0, broadcast.SampleRate, 0)
	assert.Equal(t, "broadcast", photic.ProfileBroadcast.String())
}

func TestSteadyVideoIsClean(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Milliseconds})
	require.NoError(t, err)

	for _, frame := range steady(150, 0) {
		result := session.Process(frame)
		require.Equal(t, photic.RiskLow, result.Risk.Level)
		require.False(t, result.Flash)
	}

	report := session.Finish()

	assert.Equal(t, 150, report.Frames)
	assert.InDelta(t, 149.0/30, report.Duration, 1e-9)
	assert.Equal(t, photic.RiskLow, report.Risk)
	assert.Zero(t, report.IssueCount)
	assert.Equal(t, photic.SeverityNone, report.WorstSeverity)
	assert.Empty(t, report.Windows)
	assert.Empty(t, report.Clusters)
	assert.Zero(t, report.P95DeltaE)
	assert.Nil(t, report.Spectral)
}

func TestLowLevelNoiseIsNotFlicker(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Seconds})
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))

	for i := range 300 {
		result := session.Process(photic.Frame{
			Timestamp:  float64(i) / 30,
			Brightness: 0.4 + 0.001*rng.Float64(),
			Color:      photic.RGB{R: 100, G: 100, B: 100},
		})
		require.Equal(t, photic.RiskLow, result.Risk.Level, "frame %d: %v", i, result.Risk.Reasons)
	}

	report := session.Finish()

	assert.Equal(t, photic.RiskLow, report.Risk)
	assert.False(t, report.HasFlicker)
	assert.Zero(t, report.IssueCount)
	assert.Zero(t, report.PeakFlickerHz)
	assert.Nil(t, report.Spectral)
}

func TestVisibleFlickerIsMediumRisk(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Seconds})
	require.NoError(t, err)

	// 7.5 Hz at 30 fps sits on a bin; a 0.04 swing stays under the flash intensity.
	var last *photic.FrameResult
	for i := range 150 {
		last = session.Process(photic.Frame{
			Timestamp:  float64(i) / 30,
			Brightness: 0.5 + 0.04*math.Sin(2*math.Pi*7.5*float64(i)/30),
			Color:      photic.RGB{R: 100, G: 100, B: 100},
		})
		require.False(t, last.Flash)
	}

	assert.Equal(t, photic.RiskMedium, last.Risk.Level)

	report := session.Finish()

	assert.Equal(t, photic.RiskMedium, report.Risk)
	assert.True(t, report.HasFlicker)
	assert.InDelta(t, 7.5, report.PeakFlickerHz, 0.5)
	require.NotNil(t, report.Spectral)
	assert.GreaterOrEqual(t, report.Spectral.DominantAmplitude, 0.02)

	// The same swing is noise to a session that only counts larger oscillations.
	quiet, err := photic.NewSession(photic.Config{TimeUnit: photic.Seconds, FlickerAmplitude: 0.1})
	require.NoError(t, err)

	for i := range 150 {
		quiet.Process(photic.Frame{
			Timestamp:  float64(i) / 30,
			Brightness: 0.5 + 0.04*math.Sin(2*math.Pi*7.5*float64(i)/30),
			Color:      photic.RGB{R: 100, G: 100, B: 100},
		})
	}

	assert.False(t, quiet.Finish().HasFlicker)
}

func TestFlashingVideoIsHighRisk(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Seconds})
	require.NoError(t, err)

	var last *photic.FrameResult
	for _, frame := range flashing(150, photic.Seconds, 0) {
		last = session.Process(frame)
	}

	assert.Equal(t, photic.RiskHigh, last.Risk.Level)
	assert.Equal(t, 10, last.FlashesPerSecond)

	report := session.Finish()

	assert.Equal(t, photic.RiskHigh, report.Risk)
	assert.True(t, report.HasFlashViolations)
	assert.GreaterOrEqual(t, len(report.Windows), 3)
	assert.InDelta(t, 10, report.PeakFlashesPerSecond, 1)
	assert.Greater(t, report.PeakPSI, 0.8)
	assert.InDelta(t, 100.0, report.P95DeltaE, 1)

	for _, window := range report.Windows {
		assert.Equal(t, window.EndFrame-window.StartFrame+1, window.FrameCount)
		assert.Greater(t, window.FlashCount, 3)
		assert.NotEmpty(t, window.Clusters)
	}

	require.NotNil(t, report.Spectral)
	assert.InDelta(t, 5.0, report.PeakFlickerHz, 0.5)

	var detected []string

	for _, issue := range report.Issues {
		if issue.Detected {
			detected = append(detected, issue.Check.String())
		}
	}

	assert.Contains(t, detected, "flash-rate")
	assert.Contains(t, detected, "psi")
	assert.Equal(t, photic.SeveritySevere, report.WorstSeverity)
}

func TestRiskIsMonotonicUntilReset(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Milliseconds})
	require.NoError(t, err)

	for _, frame := range flashing(60, photic.Milliseconds, 0) {
		session.Process(frame)
	}

	for _, frame := range steady(90, 60) {
		result := session.Process(frame)
		require.Equal(t, photic.RiskHigh, result.Risk.Level)
	}

	session.Seek()

	result := session.Process(steady(1, 0)[0])
	assert.Equal(t, photic.RiskHigh, result.Risk.Level)
	assert.Equal(t, photic.RiskLow, result.Risk.Current)

	id := session.ID()
	session.Reset()

	assert.NotEqual(t, id, session.ID())

	result = session.Process(steady(1, 0)[0])
	assert.Equal(t, photic.RiskLow, result.Risk.Level)
	assert.Zero(t, result.Index)
	assert.Empty(t, session.Finish().Windows)
}

func TestSeekClearsDeltaEDistribution(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Milliseconds})
	require.NoError(t, err)

	for _, frame := range flashing(60, photic.Milliseconds, 0) {
		session.Process(frame)
	}

	session.Seek()

	for _, frame := range steady(60, 0) {
		session.Process(frame)
	}

	report := session.Finish()

	assert.Equal(t, 120, report.Frames)
	assert.Equal(t, photic.RiskHigh, report.Risk)
	assert.NotEmpty(t, report.Windows)
	assert.Zero(t, report.MedianDeltaE)
	assert.Zero(t, report.P95DeltaE)
}

func TestTimeUnitsAreEquivalent(t *testing.T) {
	// 32 fps keeps both renditions of every timestamp exact.
	seconds, err := photic.Analyze(
		strings.NewReader(ndjson(t, flashingAt(32, 96, photic.Seconds, 0))),
		photic.Config{TimeUnit: photic.Seconds, SampleRate: 32},
	)
	require.NoError(t, err)

	milliseconds, err := photic.Analyze(
		strings.NewReader(ndjson(t, flashingAt(32, 96, photic.Milliseconds, 0))),
		photic.Config{TimeUnit: photic.Milliseconds, SampleRate: 32},
	)
	require.NoError(t, err)

	diff := cmp.Diff(seconds, milliseconds,
		cmpopts.IgnoreFields(photic.Report{}, "SessionID"),
		cmpopts.EquateApprox(0, 1e-6),
	)
	assert.Empty(t, diff)
}

func TestStreamTreatsRegressionAsSeek(t *testing.T) {
	input := ndjson(t, flashing(45, photic.Milliseconds, 0), flashing(45, photic.Milliseconds, 0))

	var results []*photic.FrameResult

	report, err := photic.Stream(strings.NewReader(input), photic.Config{TimeUnit: photic.Milliseconds},
		func(result *photic.FrameResult) {
			results = append(results, result)
		})
	require.NoError(t, err)
	require.Len(t, results, 90)

	assert.Equal(t, 90, report.Frames)
	// Frame indices keep counting across the seek.
	assert.Equal(t, 45, results[45].Index)
	assert.Zero(t, results[45].Flashes.ViolationWindows)
	assert.Equal(t, photic.RiskHigh, results[45].Risk.Level)

	ids := map[int]bool{}
	for _, cluster := range report.Clusters {
		assert.False(t, ids[cluster.ID], "cluster %d is duplicated", cluster.ID)
		ids[cluster.ID] = true
	}

	for _, window := range report.Windows {
		for _, id := range window.Clusters {
			assert.True(t, ids[id], fmt.Sprintf("window references unknown cluster %d", id))
		}
	}
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	_, err := photic.Analyze(strings.NewReader("{\"timestamp\": 0}\n{oops\n"), photic.Config{TimeUnit: photic.Seconds})
	require.ErrorIs(t, err, fault.ErrInvalidJSON)

	_, err = photic.Analyze(strings.NewReader(""), photic.Config{})
	require.ErrorIs(t, err, photic.ErrInvalidConfig)
}

func TestMalformedFrameValuesAreCoerced(t *testing.T) {
	session, err := photic.NewSession(photic.Config{TimeUnit: photic.Seconds})
	require.NoError(t, err)

	session.Process(photic.Frame{Timestamp: 0, Brightness: 0.5})

	result := session.Process(photic.Frame{
		Timestamp:  math.NaN(),
		Brightness: math.Inf(1),
		Color:      photic.RGB{R: math.NaN(), G: -20, B: 900},
		Pattern:    math.NaN(),
	})

	assert.InDelta(t, 1.0/30, result.Timestamp, 1e-12)
	assert.True(t, result.Flash)
	assert.False(t, math.IsNaN(result.PSI))
	assert.False(t, math.IsNaN(result.Contrast.TrendDeltaE))
}
