package flash_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloser/photic/internal/audit/flash"
	"github.com/farcloser/photic/internal/types"
)

func TestViolationWindowBoundsAreInclusive(t *testing.T) {
	tracker := flash.NewTracker(flash.Options{FlashThreshold: 3, ClusterGap: 0.3})

	for frame, ts := range []float64{0.0, 0.2, 0.4, 0.6} {
		update := tracker.Update(ts, true, frame)
		require.True(t, update.InWindow)
		require.Equal(t, frame+1, update.WindowFlashes)
		require.Zero(t, update.ViolationWindows)
	}

	update := tracker.Update(1.0, false, 4)

	assert.False(t, update.InWindow)
	assert.Equal(t, 1, update.ViolationWindows)
	assert.Equal(t, 4, update.ViolationFrames)

	windows := tracker.Windows()
	require.Len(t, windows, 1)

	expected := types.ViolationWindow{
		StartTime:  0,
		EndTime:    1,
		StartFrame: 0,
		EndFrame:   3,
		FrameCount: 4,
		FlashCount: 4,
		Clusters:   []int{0},
	}
	assert.Empty(t, cmp.Diff(expected, windows[0]))
}

func TestWindowAtThresholdIsNotAViolation(t *testing.T) {
	tracker := flash.NewTracker(flash.DefaultOptions())

	for frame, ts := range []float64{0.0, 0.3, 0.6} {
		tracker.Update(ts, true, frame)
	}

	update := tracker.Update(1.2, false, 3)
	assert.False(t, update.InWindow)
	assert.Zero(t, update.ViolationWindows)
	assert.Zero(t, update.ViolationFrames)
}

func TestFlashOnBoundaryOpensNextWindow(t *testing.T) {
	tracker := flash.NewTracker(flash.DefaultOptions())

	frame := 0
	for ; frame < 30; frame++ {
		// Flash on every third frame at 30 fps: 10 flashes per second.
		tracker.Update(float64(frame)/30, frame%3 == 0, frame)
	}

	update := tracker.Update(1.0, true, 30)

	assert.True(t, update.InWindow)
	assert.Equal(t, 1, update.WindowFlashes)
	assert.Equal(t, 1, update.ViolationWindows)
	assert.Equal(t, 30, update.ViolationFrames)

	windows := tracker.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, 29, windows[0].EndFrame)
	assert.Equal(t, 10, windows[0].FlashCount)
}

func TestClusteringByGap(t *testing.T) {
	tracker := flash.NewTracker(flash.Options{ClusterGap: 0.3})

	tracker.Update(0.0, true, 0)
	tracker.Update(0.1, true, 3)
	update := tracker.Update(0.9, true, 27)

	assert.Equal(t, 2, update.Clusters)

	clusters := tracker.Clusters()
	require.Len(t, clusters, 2)

	assert.Equal(t, 2, clusters[0].Count)
	assert.InDelta(t, 0.0, clusters[0].StartTime, 0)
	assert.InDelta(t, 0.1, clusters[0].EndTime, 0)
	assert.Equal(t, 3, clusters[0].EndFrame)

	assert.Equal(t, 1, clusters[1].Count)
	assert.InDelta(t, 0.9, clusters[1].StartTime, 0)
	assert.Equal(t, []types.FlashEvent{{Timestamp: 0.9, Frame: 27}}, clusters[1].Flashes)
}

func TestFinishEvaluatesOpenWindow(t *testing.T) {
	tracker := flash.NewTracker(flash.Options{FlashThreshold: 3, ClusterGap: 0.15})

	for frame, ts := range []float64{0.0, 0.1, 0.2, 0.5, 0.6} {
		tracker.Update(ts, true, frame)
	}

	tracker.Update(0.7, false, 5)

	update := tracker.Finish()

	assert.False(t, update.InWindow)
	assert.Equal(t, 1, update.ViolationWindows)
	assert.Equal(t, 6, update.ViolationFrames)
	assert.Equal(t, 2, update.Clusters)

	windows := tracker.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, 5, windows[0].EndFrame)
	assert.InDelta(t, 1.0, windows[0].EndTime, 0)
	assert.Equal(t, []int{0, 1}, windows[0].Clusters)
}

func TestReset(t *testing.T) {
	tracker := flash.NewTracker(flash.DefaultOptions())

	for frame := range 10 {
		tracker.Update(float64(frame)/10, true, frame)
	}

	tracker.Update(1.5, false, 10)
	require.NotEmpty(t, tracker.Windows())

	tracker.Reset()

	assert.Empty(t, tracker.Windows())
	assert.Empty(t, tracker.Clusters())
	assert.Equal(t, types.FlashUpdate{}, tracker.Update(2.0, false, 11))
}

func TestRecommendedClusterGap(t *testing.T) {
	assert.InDelta(t, 0.35, flash.RecommendedClusterGap(0.1), 1e-12)
	assert.InDelta(t, 0.05, flash.RecommendedClusterGap(0.001), 0)
	assert.InDelta(t, 2.0, flash.RecommendedClusterGap(10), 0)
}

func TestMaxFlashesPerWindow(t *testing.T) {
	assert.Zero(t, flash.MaxFlashesPerWindow(nil, 1))
	assert.Equal(t, 1, flash.MaxFlashesPerWindow([]float64{0, 1, 2}, 1))
	assert.Equal(t, 4, flash.MaxFlashesPerWindow([]float64{0.8, 0, 5, 0.2, 0.5, 1.5}, 1))
}

func TestCounter(t *testing.T) {
	counter := flash.NewCounter(0)

	assert.Equal(t, 1, counter.Add(0))
	assert.Equal(t, 2, counter.Add(0.5))
	assert.Equal(t, 3, counter.Add(0.9))
	assert.Equal(t, 3, counter.Add(1.4))
	assert.Equal(t, 3, counter.Add(1.6))
	assert.Equal(t, 3, counter.Max())
	assert.Equal(t, 2, counter.Current(2.0))

	counter.Reset()
	assert.Zero(t, counter.Max())
	assert.Zero(t, counter.Len())
}

func TestCounterIgnoresNonFiniteTimestamps(t *testing.T) {
	counter := flash.NewCounter(1)

	assert.Equal(t, 1, counter.Add(0.5))

	assert.NotPanics(t, func() {
		assert.Equal(t, 1, counter.Add(math.Inf(1)))
		assert.Equal(t, 1, counter.Add(math.Inf(-1)))
		assert.Equal(t, 1, counter.Add(math.NaN()))
	})

	assert.Equal(t, 2, counter.Add(0.9))
	assert.Equal(t, 2, counter.Max())
	assert.Equal(t, 2, counter.Current(1.0))
}
