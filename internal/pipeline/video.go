// Package pipeline decodes video files into frame records and runs them through a session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/farcloser/photic"
	"github.com/farcloser/photic/internal/frames"
	"github.com/farcloser/photic/internal/integration/ffmpeg"
	"github.com/farcloser/photic/internal/integration/ffprobe"
	"github.com/farcloser/photic/internal/types"
)

// DefaultWidth is the width frames are scaled down to before analysis.
const DefaultWidth = 160

var errInvalidGeometry = errors.New("invalid video geometry")

// FrameSpec derives the extraction parameters for a probed stream. A zero rate uses the stream
// frame rate. Frames are scaled to width, never up, keeping the aspect ratio with even dimensions.
func FrameSpec(stream *ffprobe.Stream, streamIndex int, rate float64, width int) (ffmpeg.FrameSpec, error) {
	if rate == 0 {
		var err error

		rate, err = stream.FrameRate()
		if err != nil {
			return ffmpeg.FrameSpec{}, err
		}
	}

	if !(rate > 0) || math.IsInf(rate, 0) {
		return ffmpeg.FrameSpec{}, fmt.Errorf("%w: frame rate %v", errInvalidGeometry, rate)
	}

	if stream.Width <= 0 || stream.Height <= 0 || width <= 0 {
		return ffmpeg.FrameSpec{}, fmt.Errorf("%w: %dx%d scaled to width %d",
			errInvalidGeometry, stream.Width, stream.Height, width)
	}

	width = min(width, stream.Width)
	height := int(math.Round(float64(width)*float64(stream.Height)/float64(stream.Width)/2)) * 2
	width -= width % 2

	return ffmpeg.FrameSpec{
		StreamIndex: streamIndex,
		Rate:        rate,
		Width:       max(width, 2),
		Height:      max(height, 2),
	}, nil
}

// Configure sets cfg for frames produced by Video: timestamps in seconds at the extraction rate.
// Intervals derived from the rate are recomputed by the session.
func Configure(cfg *photic.Config, spec ffmpeg.FrameSpec) {
	cfg.TimeUnit = photic.Seconds
	cfg.SampleRate = spec.Rate
	cfg.AnalysisInterval = 0
	cfg.ClusterGap = 0
}

// Video streams decoded frames through a new session without holding the video in memory.
func Video(
	ctx context.Context,
	filePath string,
	spec ffmpeg.FrameSpec,
	cfg photic.Config,
	observe func(*photic.FrameResult),
) (*photic.Report, error) {
	Configure(&cfg, spec)

	session, err := photic.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	reducer := frames.NewReducer(spec.Width, spec.Height, frames.DefaultFlashDelta, frames.DefaultFlashCoverage)

	sink, err := frames.NewSink(reducer, spec.Rate, func(frame types.Frame) error {
		result := session.Process(frame)
		if observe != nil {
			observe(result)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err = ffmpeg.ExtractFrames(ctx, filePath, sink, spec); err != nil {
		return nil, fmt.Errorf("extracting frames: %w", err)
	}

	if dropped := sink.Close(); dropped > 0 {
		slog.Debug("pipeline.Video", "file path", filePath, "dropped bytes", dropped, "stage", "truncated frame")
	}

	slog.Debug("pipeline.Video", "file path", filePath, "frames", sink.Frames(), "stage", "done")

	return session.Finish(), nil
}
