// Package flash tracks flash rate violations over one second windows and groups flashes into clusters.
package flash

import (
	"math"

	"github.com/farcloser/photic/internal/types"
)

// WindowSpan is the length of a violation window, in seconds.
const WindowSpan = 1.0

const (
	minClusterGap = 0.05
	maxClusterGap = 2.0
	gapFactor     = 3.5
)

type Options struct {
	FlashThreshold int     // window is a violation when its flash count exceeds this (default 3)
	ClusterGap     float64 // max seconds between two flashes of the same cluster (default: RecommendedClusterGap at 30 fps)
}

func DefaultOptions() Options {
	return Options{
		FlashThreshold: 3,
		ClusterGap:     RecommendedClusterGap(1.0 / 30),
	}
}

// RecommendedClusterGap derives a cluster gap from the analysis interval, in seconds.
func RecommendedClusterGap(intervalSeconds float64) float64 {
	gap := intervalSeconds * gapFactor
	if math.IsNaN(gap) {
		return minClusterGap
	}

	return min(max(gap, minClusterGap), maxClusterGap)
}

type window struct {
	startTime  float64
	startFrame int
	flashes    []types.FlashEvent
}

// Tracker is the per-session flash violation state machine. It is not safe for concurrent use.
type Tracker struct {
	opts Options

	open     *window
	cluster  *types.FlashCluster
	lastSeen types.FlashEvent // last frame observed, flash or not
	hasSeen  bool
	hasFlash bool
	lastTime float64 // timestamp of the last flash

	windows         []types.ViolationWindow
	clusters        []types.FlashCluster
	violationFrames int
	nextCluster     int
}

func NewTracker(opts Options) *Tracker {
	defaults := DefaultOptions()

	if opts.FlashThreshold <= 0 {
		opts.FlashThreshold = defaults.FlashThreshold
	}

	if !(opts.ClusterGap > 0) || math.IsInf(opts.ClusterGap, 0) {
		opts.ClusterGap = defaults.ClusterGap
	}

	return &Tracker{opts: opts}
}

// Reset clears every window, cluster and counter.
func (t *Tracker) Reset() {
	*t = Tracker{opts: t.opts}
}

// Update feeds one frame. Timestamps are in seconds and expected to be non-decreasing.
func (t *Tracker) Update(timestamp float64, isFlash bool, frame int) types.FlashUpdate {
	if t.open != nil && timestamp >= t.open.startTime+WindowSpan {
		t.closeWindow(frame - 1)
	}

	t.lastSeen = types.FlashEvent{Timestamp: timestamp, Frame: frame}
	t.hasSeen = true

	if isFlash {
		event := types.FlashEvent{Timestamp: timestamp, Frame: frame}

		t.addToCluster(event)

		if t.open == nil {
			t.open = &window{startTime: timestamp, startFrame: frame}
		}

		t.open.flashes = append(t.open.flashes, event)
	}

	return t.state()
}

// Finish evaluates the open window against the last observed frame and closes the open cluster.
func (t *Tracker) Finish() types.FlashUpdate {
	if t.open != nil && t.hasSeen {
		t.closeWindow(t.lastSeen.Frame)
	}

	if t.cluster != nil {
		t.clusters = append(t.clusters, *t.cluster)
		t.cluster = nil
	}

	return t.state()
}

// Windows returns the violation windows emitted so far.
func (t *Tracker) Windows() []types.ViolationWindow {
	return append([]types.ViolationWindow(nil), t.windows...)
}

// Clusters returns closed clusters followed by the open one, if any.
func (t *Tracker) Clusters() []types.FlashCluster {
	out := append([]types.FlashCluster(nil), t.clusters...)
	if t.cluster != nil {
		out = append(out, *t.cluster)
	}

	return out
}

func (t *Tracker) addToCluster(event types.FlashEvent) {
	if !t.hasFlash || event.Timestamp-t.lastTime > t.opts.ClusterGap {
		if t.cluster != nil {
			t.clusters = append(t.clusters, *t.cluster)
		}

		t.cluster = &types.FlashCluster{
			ID:         t.nextCluster,
			StartTime:  event.Timestamp,
			StartFrame: event.Frame,
		}
		t.nextCluster++
	}

	t.cluster.EndTime = event.Timestamp
	t.cluster.EndFrame = event.Frame
	t.cluster.Count++
	t.cluster.Flashes = append(t.cluster.Flashes, event)

	t.hasFlash = true
	t.lastTime = event.Timestamp
}

// closeWindow ends the open window at endFrame, inclusive, and records it when it is a violation.
func (t *Tracker) closeWindow(endFrame int) {
	w := t.open
	t.open = nil

	if len(w.flashes) <= t.opts.FlashThreshold {
		return
	}

	frameCount := endFrame - w.startFrame + 1
	if frameCount < 1 {
		// Frame indices went backwards; count the flashes' own frames.
		endFrame = w.flashes[len(w.flashes)-1].Frame
		frameCount = max(endFrame-w.startFrame+1, 1)
	}

	violation := types.ViolationWindow{
		StartTime:  w.startTime,
		EndTime:    w.startTime + WindowSpan,
		StartFrame: w.startFrame,
		EndFrame:   endFrame,
		FrameCount: frameCount,
		FlashCount: len(w.flashes),
	}

	overlaps := func(cluster *types.FlashCluster) bool {
		return cluster.StartTime <= violation.EndTime && cluster.EndTime >= violation.StartTime
	}

	for i := range t.clusters {
		if overlaps(&t.clusters[i]) {
			violation.Clusters = append(violation.Clusters, t.clusters[i].ID)
		}
	}

	if t.cluster != nil && overlaps(t.cluster) {
		violation.Clusters = append(violation.Clusters, t.cluster.ID)
	}

	t.windows = append(t.windows, violation)
	t.violationFrames += frameCount
}

func (t *Tracker) state() types.FlashUpdate {
	update := types.FlashUpdate{
		ViolationFrames:  t.violationFrames,
		ViolationWindows: len(t.windows),
		Clusters:         len(t.clusters),
	}

	if t.cluster != nil {
		update.Clusters++
	}

	if t.open != nil {
		update.InWindow = true
		update.WindowFlashes = len(t.open.flashes)
	}

	return update
}
