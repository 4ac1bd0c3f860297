// Package contrast measures perceptual color changes between consecutive frames.
package contrast

import (
	"math"

	"github.com/farcloser/photic/internal/types"
)

// D65 reference white.
const (
	whiteX = 0.95047
	whiteY = 1.00000
	whiteZ = 1.08883
)

// ToLab converts an sRGB color (channels in [0,255]) to CIE L*a*b*.
// Out-of-range and non-finite channels are clamped to [0,255].
func ToLab(color types.RGB) types.LabColor {
	r := linearize(color.R)
	g := linearize(color.G)
	b := linearize(color.B)

	x := (0.4124564*r + 0.3575761*g + 0.1804375*b) / whiteX
	y := (0.2126729*r + 0.7151522*g + 0.0721750*b) / whiteY
	z := (0.0193339*r + 0.1191920*g + 0.9503041*b) / whiteZ

	fx, fy, fz := labF(x), labF(y), labF(z)

	return types.LabColor{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// DeltaE76 is the Euclidean distance between two Lab colors.
func DeltaE76(a, b types.LabColor) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B

	return math.Sqrt(dl*dl + da*da + db*db)
}

// linearize maps an 8-bit sRGB channel to linear light in [0,1].
func linearize(channel float64) float64 {
	if math.IsNaN(channel) {
		channel = 0
	}

	c := min(max(channel, 0), 255) / 255
	if c <= 0.04045 {
		return c / 12.92
	}

	return math.Pow((c+0.055)/1.055, 2.4)
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0

	if t > delta*delta*delta {
		return math.Cbrt(t)
	}

	return t/(3*delta*delta) + 4.0/29.0
}
