package chromatic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farcloser/photic/internal/audit/chromatic"
	"github.com/farcloser/photic/internal/types"
)

var (
	red   = types.RGB{R: 255}
	green = types.RGB{G: 255}
	blue  = types.RGB{B: 255}
	gray  = types.RGB{R: 128, G: 128, B: 128}
)

func TestMeasure(t *testing.T) {
	pure := chromatic.Measure(red)
	assert.InDelta(t, 1.0, pure.RedIntensity, 0)
	assert.InDelta(t, 1.0, pure.RedGreen, 0)
	assert.InDelta(t, -0.5, pure.BlueYellow, 0)

	neutral := chromatic.Measure(gray)
	assert.Zero(t, neutral.RedIntensity)
	assert.Zero(t, neutral.RedGreen)
	assert.Zero(t, neutral.BlueYellow)

	assert.InDelta(t, 1.0, chromatic.Measure(blue).BlueYellow, 0)
	assert.Zero(t, chromatic.Measure(types.RGB{R: 200, G: 220}).RedIntensity)
}

func TestTrackerTransitions(t *testing.T) {
	tracker := chromatic.NewTracker()

	first := tracker.Update(red)
	assert.False(t, first.HasPrevious)
	assert.Zero(t, first.RedDelta)
	assert.Zero(t, first.Contrast)

	second := tracker.Update(green)
	assert.True(t, second.HasPrevious)
	assert.InDelta(t, 1.0, second.RedDelta, 0)
	// Red-green swings from +1 to -1.
	assert.InDelta(t, 1.0, second.Contrast, 1e-12)

	third := tracker.Update(green)
	assert.Zero(t, third.RedDelta)
	assert.Zero(t, third.Contrast)

	tracker.Reset()
	assert.False(t, tracker.Update(blue).HasPrevious)
}
