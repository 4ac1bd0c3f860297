package frames

import (
	"errors"

	"github.com/farcloser/photic/internal/types"
)

var errInvalidRate = errors.New("frame rate must be positive")

// Sink is an io.Writer that accepts a raw rgb24 stream, cuts it into frames, reduces each one and
// hands the timestamped record (in seconds) to emit. Trailing bytes of an incomplete frame are
// dropped on Close.
type Sink struct {
	reducer *Reducer
	rate    float64
	emit    func(types.Frame) error
	pending []byte
	frames  int
}

// NewSink returns a sink for frames reduced by reducer at the given frame rate.
func NewSink(reducer *Reducer, rate float64, emit func(types.Frame) error) (*Sink, error) {
	if !(rate > 0) {
		return nil, errInvalidRate
	}

	return &Sink{
		reducer: reducer,
		rate:    rate,
		emit:    emit,
		pending: make([]byte, 0, reducer.FrameSize()),
	}, nil
}

func (s *Sink) Write(data []byte) (int, error) {
	size := s.reducer.FrameSize()
	written := 0

	for len(data) > 0 {
		take := min(size-len(s.pending), len(data))
		s.pending = append(s.pending, data[:take]...)
		data = data[take:]
		written += take

		if len(s.pending) < size {
			break
		}

		frame, err := s.reducer.Reduce(s.pending)
		if err != nil {
			return written, err
		}

		frame.Timestamp = float64(s.frames) / s.rate
		s.frames++
		s.pending = s.pending[:0]

		if err = s.emit(frame); err != nil {
			return written, err
		}
	}

	return written, nil
}

// Frames is the number of complete frames emitted.
func (s *Sink) Frames() int {
	return s.frames
}

// Close discards any incomplete trailing frame and reports how many bytes were dropped.
func (s *Sink) Close() int {
	dropped := len(s.pending)
	s.pending = s.pending[:0]

	return dropped
}
