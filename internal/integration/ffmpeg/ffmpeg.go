package ffmpeg

import (
	"strconv"
	"time"
)

const (
	name = "ffmpeg"
	// Decoding a feature-length video at analysis resolution takes minutes, not seconds.
	timeout = 2 * time.Hour

	pixelFormat = "rgb24"
)

// filterGraph resamples to rate frames per second and scales to width x height.
func filterGraph(rate float64, width, height int) string {
	return "fps=" + strconv.FormatFloat(rate, 'f', -1, 64) +
		",scale=" + strconv.Itoa(width) + ":" + strconv.Itoa(height) + ":flags=area"
}
