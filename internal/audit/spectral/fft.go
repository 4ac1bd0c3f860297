package spectral

import (
	"fmt"
	"math"
	"math/bits"
)

// maxFFTSize bounds zero-padding; larger transforms are treated as malformed input.
const maxFFTSize = 1 << 16

// Radix2 is an in-place iterative Cooley-Tukey FFT for a fixed power-of-two size.
// Bit-reversal indices and twiddle factors are computed once.
type Radix2 struct {
	size     int
	reversed []int
	cos      []float64
	sin      []float64
}

// NewRadix2 prepares a transform of the given size, which must be a power of two.
func NewRadix2(size int) *Radix2 {
	if !isPowerOfTwo(size) {
		panic(fmt.Sprintf("spectral: FFT size %d is not a power of two", size))
	}

	stages := bits.TrailingZeros(uint(size)) //nolint:gosec // size is positive
	reversed := make([]int, size)

	for i := range size {
		reversed[i] = int(bits.Reverse(uint(i)) >> (bits.UintSize - stages)) //nolint:gosec // i < size
	}

	half := size / 2
	cosTable := make([]float64, half)
	sinTable := make([]float64, half)

	for k := range half {
		angle := -2 * math.Pi * float64(k) / float64(size)
		cosTable[k] = math.Cos(angle)
		sinTable[k] = math.Sin(angle)
	}

	return &Radix2{
		size:     size,
		reversed: reversed,
		cos:      cosTable,
		sin:      sinTable,
	}
}

// Size returns the transform length.
func (f *Radix2) Size() int {
	return f.size
}

// Transform computes the forward DFT of (re, im) in place.
func (f *Radix2) Transform(re, im []float64) {
	if len(re) != f.size || len(im) != f.size {
		panic(fmt.Sprintf("spectral: FFT input length %d/%d does not match size %d", len(re), len(im), f.size))
	}

	for i, j := range f.reversed {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for span := 2; span <= f.size; span <<= 1 {
		half := span / 2
		step := f.size / span

		for start := 0; start < f.size; start += span {
			for k := range half {
				wr := f.cos[k*step]
				wi := f.sin[k*step]

				a := start + k
				b := a + half

				tr := wr*re[b] - wi*im[b]
				ti := wr*im[b] + wi*re[b]

				re[b] = re[a] - tr
				im[b] = im[a] - ti
				re[a] += tr
				im[a] += ti
			}
		}
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// nextPowerOfTwo returns the smallest power of two >= n, or 0 when it would exceed maxFFTSize.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}

	size := 1 << bits.Len(uint(n-1)) //nolint:gosec // n is positive
	if size > maxFFTSize {
		return 0
	}

	return size
}
