package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/photic/internal/integration/binary"
)

// FrameSpec describes the raw frames to extract.
type FrameSpec struct {
	StreamIndex int     // video stream, 0-based
	Rate        float64 // frames per second
	Width       int
	Height      int
}

// ExtractFrames decodes a video stream to raw rgb24 frames written to output, back to back.
// The file is read by path: most containers cannot be demuxed from a pipe.
func ExtractFrames(ctx context.Context, filePath string, output io.Writer, spec FrameSpec) error {
	slog.Debug("ffmpeg.ExtractFrames", "file path", filePath, "stream index", spec.StreamIndex, "stage", "start")

	if !(spec.Rate > 0) || spec.Width <= 0 || spec.Height <= 0 {
		return fmt.Errorf("%w: invalid frame spec %+v", fault.ErrCommandFailure, spec)
	}

	ffmpegPath, err := binary.Require(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // filePath is intentionally user-provided input
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-v", "quiet",
		"-i", filePath,
		"-map", "0:v:"+strconv.Itoa(spec.StreamIndex),
		"-vf", filterGraph(spec.Rate, spec.Width, spec.Height),
		"-f", "rawvideo",
		"-pix_fmt", pixelFormat,
		"-",
	)

	cmd.Stdout = output

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("ffmpeg.ExtractFrames", "stream index", spec.StreamIndex, "stage", "timeout")

			return fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		slog.Debug("ffmpeg.ExtractFrames", "stream index", spec.StreamIndex, "stage", "error")

		return fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	slog.Debug("ffmpeg.ExtractFrames", "stream index", spec.StreamIndex, "stage", "done")

	return nil
}
