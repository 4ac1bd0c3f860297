package photic

import (
	"errors"
	"io"
	"log/slog"

	"github.com/farcloser/photic/internal/frames"
)

// Analyze runs a new session over a stream of newline-delimited JSON frames.
func Analyze(r io.Reader, cfg Config) (*Report, error) {
	return Stream(r, cfg, nil)
}

// Stream is Analyze with a callback receiving every frame result.
// A timestamp going backwards is a seek.
func Stream(r io.Reader, cfg Config, observe func(*FrameResult)) (*Report, error) {
	session, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	decoder := frames.NewDecoder(r)

	var (
		last    float64
		started bool
	)

	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		if started && frame.Timestamp < last {
			slog.Debug("photic.Stream", "line", decoder.Line(), "from", last, "to", frame.Timestamp, "stage", "seek")
			session.Seek()
		}

		last = frame.Timestamp
		started = true

		result := session.Process(frame)
		if observe != nil {
			observe(result)
		}
	}

	return session.Finish(), nil
}
