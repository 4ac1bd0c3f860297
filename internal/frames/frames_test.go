package frames_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/farcloser/primordium/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloser/photic/internal/frames"
	"github.com/farcloser/photic/internal/types"
)

func TestDecoder(t *testing.T) {
	input := `{"timestamp": 0, "brightness": 0.1, "color": {"r": 10, "g": 20, "b": 30}}

{"timestamp": 33.3, "brightness": 0.9, "flash": true, "coverage": 0.5}
`

	decoder := frames.NewDecoder(strings.NewReader(input))

	first, err := decoder.Next()
	require.NoError(t, err)
	assert.Equal(t, types.Frame{Brightness: 0.1, Color: types.RGB{R: 10, G: 20, B: 30}}, first)

	second, err := decoder.Next()
	require.NoError(t, err)
	assert.True(t, second.Flash)
	assert.InDelta(t, 33.3, second.Timestamp, 0)
	assert.InDelta(t, 0.5, second.Coverage, 0)
	assert.Equal(t, 3, decoder.Line())

	_, err = decoder.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderInvalidJSON(t *testing.T) {
	decoder := frames.NewDecoder(strings.NewReader("{\"timestamp\": 0}\nnot json\n"))

	_, err := decoder.Next()
	require.NoError(t, err)

	_, err = decoder.Next()
	require.ErrorIs(t, err, fault.ErrInvalidJSON)
	assert.Contains(t, err.Error(), "line 2")
}

func TestEncoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	frame := types.Frame{Timestamp: 1.5, Brightness: 0.25, Color: types.RGB{R: 255}, Flash: true}
	require.NoError(t, frames.NewEncoder(&buf).Encode(frame))

	decoded, err := frames.NewDecoder(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func solid(width, height int, red, green, blue byte) []byte {
	pixels := make([]byte, width*height*3)
	for i := 0; i < len(pixels); i += 3 {
		pixels[i], pixels[i+1], pixels[i+2] = red, green, blue
	}

	return pixels
}

func TestReducer(t *testing.T) {
	reducer := frames.NewReducer(4, 2, 0, 0)
	require.Equal(t, 24, reducer.FrameSize())

	black, err := reducer.Reduce(solid(4, 2, 0, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, black.Brightness)
	assert.False(t, black.Flash)

	white, err := reducer.Reduce(solid(4, 2, 255, 255, 255))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, white.Brightness, 1e-9)
	assert.Equal(t, types.RGB{R: 255, G: 255, B: 255}, white.Color)
	assert.InDelta(t, 1.0, white.Coverage, 0)
	assert.True(t, white.Flash)

	steady, err := reducer.Reduce(solid(4, 2, 255, 255, 255))
	require.NoError(t, err)
	assert.Zero(t, steady.Coverage)
	assert.False(t, steady.Flash)

	// Half the screen turns black: coverage 0.5, brightness drops by 0.5.
	half := solid(4, 2, 255, 255, 255)
	copy(half[12:], solid(2, 2, 0, 0, 0))

	halved, err := reducer.Reduce(half)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, halved.Brightness, 1e-9)
	assert.InDelta(t, 0.5, halved.Coverage, 0)
	assert.True(t, halved.Flash)

	reducer.Reset()

	again, err := reducer.Reduce(solid(4, 2, 0, 0, 0))
	require.NoError(t, err)
	assert.False(t, again.Flash)

	_, err = reducer.Reduce(make([]byte, 5))
	assert.Error(t, err)
}

func TestSinkSplitsWrites(t *testing.T) {
	reducer := frames.NewReducer(2, 1, 0, 0)

	var got []types.Frame

	sink, err := frames.NewSink(reducer, 25, func(frame types.Frame) error {
		got = append(got, frame)

		return nil
	})
	require.NoError(t, err)

	// Three frames (black, white, black) plus two stray bytes, delivered in odd-sized chunks.
	stream := append(bytes.Repeat([]byte{0}, 6), bytes.Repeat([]byte{255}, 6)...)
	stream = append(stream, bytes.Repeat([]byte{0}, 8)...)

	for len(stream) > 0 {
		n := min(4, len(stream))
		written, writeErr := sink.Write(stream[:n])
		require.NoError(t, writeErr)
		require.Equal(t, n, written)

		stream = stream[n:]
	}

	require.Len(t, got, 3)
	assert.Equal(t, 3, sink.Frames())
	assert.Equal(t, 2, sink.Close())

	assert.InDelta(t, 0.0, got[0].Timestamp, 0)
	assert.InDelta(t, 0.04, got[1].Timestamp, 1e-12)
	assert.InDelta(t, 0.08, got[2].Timestamp, 1e-12)
	assert.True(t, got[1].Flash)
	assert.True(t, got[2].Flash)
}

func TestSinkPropagatesEmitError(t *testing.T) {
	stop := io.ErrShortWrite

	sink, err := frames.NewSink(frames.NewReducer(1, 1, 0, 0), 30, func(types.Frame) error {
		return stop
	})
	require.NoError(t, err)

	_, err = sink.Write([]byte{1, 2, 3})
	require.ErrorIs(t, err, stop)

	_, err = frames.NewSink(frames.NewReducer(1, 1, 0, 0), 0, nil)
	require.Error(t, err)
}
