//nolint:tagliatelle
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/photic/internal/integration/binary"
)

const (
	name = "ffprobe"
	// Network mounts and spinning disks can be slow to answer the first read.
	timeout = 60 * time.Second
)

var errFrameRate = errors.New("invalid frame rate")

// Result contains the marshalled output of ffprobe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream contains the stream fields relevant to frame extraction.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`               // h264
	CodecType    string `json:"codec_type"`               // video
	Width        int    `json:"width,omitempty"`          // 1920
	Height       int    `json:"height,omitempty"`         // 1080
	PixFmt       string `json:"pix_fmt,omitempty"`        // yuv420p
	RFrameRate   string `json:"r_frame_rate,omitempty"`   // 30000/1001, the lowest rate all timestamps fit in
	AvgFrameRate string `json:"avg_frame_rate,omitempty"` // 30000/1001, "0/0" when unknown
	Duration     string `json:"duration,omitempty"`       // 12.345678
	NbFrames     string `json:"nb_frames,omitempty"`      // not reported by every container
	TimeBase     string `json:"time_base"`                // 1/30000
}

// FrameRate returns the average frame rate, falling back to r_frame_rate.
func (s *Stream) FrameRate() (float64, error) {
	for _, raw := range []string{s.AvgFrameRate, s.RFrameRate} {
		if rate, err := parseRate(raw); err == nil {
			return rate, nil
		}
	}

	return 0, fmt.Errorf("%w: %q, %q", errFrameRate, s.AvgFrameRate, s.RFrameRate)
}

// Seconds returns the stream duration, or 0 when unknown.
func (s *Stream) Seconds() float64 {
	duration, err := strconv.ParseFloat(s.Duration, 64)
	if err != nil || duration < 0 {
		return 0
	}

	return duration
}

// Format represents container-level information.
type Format struct {
	Filename   string `json:"filename"`             // Full path to the file
	NbStreams  int    `json:"nb_streams"`           // Total number of streams (audio + video + subtitle + data)
	FormatName string `json:"format_name"`          // Short container name(s), e.g. "mov,mp4,m4a,3gp,3g2,mj2"
	Duration   string `json:"duration,omitempty"`   // Total duration in seconds as float string
	ProbeScore int    `json:"probe_score"`          // Confidence in format detection (0-100)
	Size       string `json:"size,omitempty"`       // File size in bytes as string
	BitRate    string `json:"bit_rate,omitempty"`   // Overall bitrate in bits/sec
	StartTime  string `json:"start_time,omitempty"` // Usually "0.000000"
}

// VideoStream returns the n-th video stream, 0-based.
func (r *Result) VideoStream(n int) (*Stream, error) {
	count := 0

	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			if count == n {
				return &r.Streams[i], nil
			}

			count++
		}
	}

	return nil, fmt.Errorf("video stream index %d not found (file has %d video streams)", n, count)
}

// Probe runs ffprobe on the given file path and returns parsed metadata.
// It requires ffprobe to be available in the system PATH.
func Probe(ctx context.Context, filePath string) (*Result, error) {
	slog.Debug("ffprobe.Probe", "file path", filePath)

	ffprobePath, err := binary.Require(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // filePath is intentionally user-provided input for probing media files
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	return Parse(output)
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return &result, nil
}

// parseRate parses "num/den" or a plain number.
func parseRate(raw string) (float64, error) {
	num, den, found := strings.Cut(raw, "/")

	numerator, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errFrameRate, raw)
	}

	denominator := 1.0
	if found {
		if denominator, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("%w: %q", errFrameRate, raw)
		}
	}

	if !(numerator > 0) || !(denominator > 0) {
		return 0, fmt.Errorf("%w: %q", errFrameRate, raw)
	}

	return numerator / denominator, nil
}
