// Package frames reads per-frame feature records, either as newline-delimited JSON
// or by reducing raw rgb24 video frames.
package frames

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/photic/internal/types"
)

const maxLineSize = 1 << 20

// Decoder reads one JSON frame record per line. Blank lines are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &Decoder{scanner: scanner}
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
func (d *Decoder) Next() (types.Frame, error) {
	for d.scanner.Scan() {
		d.line++

		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame types.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			return types.Frame{}, fmt.Errorf("%w: line %d: %w", fault.ErrInvalidJSON, d.line, err)
		}

		return frame, nil
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return types.Frame{}, fmt.Errorf("%w: line %d: %w", fault.ErrInvalidJSON, d.line+1, err)
		}

		return types.Frame{}, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return types.Frame{}, io.EOF
}

// Line is the number of the line the last frame was read from.
func (d *Decoder) Line() int {
	return d.line
}

// Encoder writes frames as newline-delimited JSON.
type Encoder struct {
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

func (e *Encoder) Encode(frame types.Frame) error {
	return e.enc.Encode(frame)
}
