package flash

import (
	"math"
	"slices"
)

// Counter tracks the number of flashes inside a rolling window ending at the latest flash,
// and the maximum seen so far. Timestamps must be non-decreasing.
type Counter struct {
	span  float64
	times []float64
	start int
	peak  int
}

// NewCounter returns a counter over windows of span seconds (WindowSpan when span is not positive).
func NewCounter(span float64) *Counter {
	if !(span > 0) || math.IsInf(span, 0) {
		span = WindowSpan
	}

	return &Counter{span: span}
}

// Add records a flash and returns the number of flashes in (timestamp-span, timestamp].
// A non-finite timestamp is not recorded and the current count is returned.
func (c *Counter) Add(timestamp float64) int {
	if math.IsNaN(timestamp) || math.IsInf(timestamp, 0) {
		return c.Len()
	}

	c.times = append(c.times, timestamp)

	for c.times[c.start] <= timestamp-c.span {
		c.start++
	}

	if c.start > 256 && c.start*2 > len(c.times) {
		c.times = append([]float64(nil), c.times[c.start:]...)
		c.start = 0
	}

	count := len(c.times) - c.start
	c.peak = max(c.peak, count)

	return count
}

// Current is the flash count of the window ending at now.
func (c *Counter) Current(now float64) int {
	count := 0

	for _, ts := range c.times[c.start:] {
		if ts > now-c.span && ts <= now {
			count++
		}
	}

	return count
}

// Max is the largest window count seen.
func (c *Counter) Max() int {
	return c.peak
}

// Len is the flash count of the window ending at the latest flash.
func (c *Counter) Len() int {
	return len(c.times) - c.start
}

func (c *Counter) Reset() {
	c.times = nil
	c.start = 0
	c.peak = 0
}

// MaxFlashesPerWindow is the largest number of timestamps found in any window of span seconds.
// Non-finite timestamps are ignored.
func MaxFlashesPerWindow(timestamps []float64, span float64) int {
	sorted := make([]float64, 0, len(timestamps))

	for _, ts := range timestamps {
		if !math.IsNaN(ts) && !math.IsInf(ts, 0) {
			sorted = append(sorted, ts)
		}
	}

	slices.Sort(sorted)

	counter := NewCounter(span)
	for _, ts := range sorted {
		counter.Add(ts)
	}

	return counter.Max()
}
