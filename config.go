package photic

import (
	"errors"
	"fmt"
	"math"

	"github.com/farcloser/photic/internal/audit/flash"
	"github.com/farcloser/photic/internal/types"
)

// ErrInvalidConfig is returned by NewSession when the configuration is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// TimeUnit declares the unit of frame timestamps.
type TimeUnit = types.TimeUnit

const (
	UnitUnknown  = types.UnitUnknown
	Seconds      = types.Seconds
	Milliseconds = types.Milliseconds
)

// ParseTimeUnit converts "s" or "ms" to a TimeUnit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch s {
	case "s", "sec", "seconds":
		return Seconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	default:
		return UnitUnknown, fmt.Errorf("%w: unknown time unit %q (valid: s, ms)", ErrInvalidConfig, s)
	}
}

const (
	maxFlashIntensity = 2.0
	maxClusterGap     = 2.0
	maxFFTLength      = 1 << 16
)

// Config configures a session. Zero values take the defaults, except TimeUnit which must be declared.
type Config struct {
	TimeUnit TimeUnit // unit of Frame.Timestamp, required

	Checks Check // which issues to report (default: ChecksAll)

	// Spectral analysis.
	SampleRate   float64 // frames per second (default 30)
	BufferLength int     // brightness history (default 128)
	FFTLength    int     // samples per transform (default 64)

	// Flash detection.
	FlashIntensity   float64 // brightness change counted as a flash transition, (0,2] (default 0.1)
	FlashesPerSecond int     // flashes per second above which a window is a violation (default 3)
	ClusterGap       float64 // seconds, (0,2] (default: derived from AnalysisInterval)
	AnalysisInterval float64 // seconds between analyzed frames (default 1/SampleRate)

	// Flicker detection. A spectral peak is flicker only when it is both periodic and visible.
	FlickerAmplitude float64 // dominant brightness amplitude, (0,1] (default 0.02)

	// Contrast sensitivity.
	ContrastThreshold float64 // JND in Delta E (default 2.3)
	HalfLifeMs        float64 // time-weighting half-life (default 500)
	ContrastWindowMs  float64 // sliding window (default 1000)

	// Severity bands per check (zero value = use defaults).
	FlashRate     Bands // violation windows
	RedFlash      Bands // peak red transition
	Flicker       Bands // peak in-band flicker confidence, dB
	Pattern       Bands // peak pattern score
	ColorContrast Bands // peak windowed p95 Delta E
	PSI           Bands // peak photosensitivity index
}

// DefaultConfig returns ProfileStandard. TimeUnit is left unset.
func DefaultConfig() Config {
	return DefaultStandardConfig()
}

// DefaultStandardConfig returns general-audience thresholds (WCAG three flashes).
func DefaultStandardConfig() Config {
	return Config{
		Checks:            ChecksAll,
		SampleRate:        30,
		BufferLength:      128,
		FFTLength:         64,
		FlashIntensity:    0.1,
		FlashesPerSecond:  3,
		FlickerAmplitude:  0.02,
		ContrastThreshold: 2.3,
		HalfLifeMs:        500,
		ContrastWindowMs:  1000,

		FlashRate:     Bands{Mild: 1, Moderate: 3, Severe: 10},
		RedFlash:      Bands{Mild: 0.3, Moderate: 0.6, Severe: 0.8},
		Flicker:       Bands{Mild: 3, Moderate: 6, Severe: 10},
		Pattern:       Bands{Mild: 0.5, Moderate: 0.65, Severe: 0.8},
		ColorContrast: Bands{Mild: 2.3, Moderate: 10, Severe: 25},
		PSI:           Bands{Mild: 0.5, Moderate: 0.65, Severe: 0.8},
	}
}

// DefaultStrictConfig lowers every threshold, for audiences known to be photosensitive.
func DefaultStrictConfig() Config {
	cfg := DefaultStandardConfig()
	cfg.FlashIntensity = 0.08
	cfg.FlashesPerSecond = 2
	cfg.FlickerAmplitude = 0.01
	cfg.ContrastThreshold = 1.5
	cfg.RedFlash = Bands{Mild: 0.2, Moderate: 0.4, Severe: 0.6}
	cfg.Flicker = Bands{Mild: 2, Moderate: 4, Severe: 8}
	cfg.Pattern = Bands{Mild: 0.35, Moderate: 0.5, Severe: 0.65}
	cfg.PSI = Bands{Mild: 0.35, Moderate: 0.5, Severe: 0.65}

	return cfg
}

// DefaultBroadcastConfig follows ITU-R BT.1702 style rules for 25 fps broadcast material.
func DefaultBroadcastConfig() Config {
	cfg := DefaultStandardConfig()
	cfg.SampleRate = 25
	cfg.AnalysisInterval = 1.0 / 25
	cfg.FlashRate = Bands{Mild: 1, Moderate: 2, Severe: 5}

	return cfg
}

// Profile selects a threshold preset.
type Profile int

const (
	ProfileStandard  Profile = iota // General audience (default).
	ProfileStrict                   // Lower thresholds everywhere.
	ProfileBroadcast                // 25 fps broadcast rules.
)

func (p Profile) String() string {
	switch p {
	case ProfileStandard:
		return "standard"
	case ProfileStrict:
		return "strict"
	case ProfileBroadcast:
		return "broadcast"
	}

	return "unknown"
}

// ParseProfile converts a string to a Profile value.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "standard", "":
		return ProfileStandard, nil
	case "strict":
		return ProfileStrict, nil
	case "broadcast":
		return ProfileBroadcast, nil
	default:
		return 0, fmt.Errorf("unknown profile %q (valid: standard, strict, broadcast)", s)
	}
}

// ConfigForProfile returns the default Config for the given profile.
func ConfigForProfile(profile Profile) Config {
	switch profile {
	case ProfileStrict:
		return DefaultStrictConfig()
	case ProfileBroadcast:
		return DefaultBroadcastConfig()
	default:
		return DefaultStandardConfig()
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	zeroBands := Bands{}

	if cfg.Checks == 0 {
		cfg.Checks = defaults.Checks
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaults.SampleRate
	}

	if cfg.BufferLength == 0 {
		cfg.BufferLength = defaults.BufferLength
	}

	if cfg.FFTLength == 0 {
		cfg.FFTLength = min(defaults.FFTLength, cfg.BufferLength)
	}

	if cfg.FlashIntensity == 0 {
		cfg.FlashIntensity = defaults.FlashIntensity
	}

	if cfg.FlashesPerSecond == 0 {
		cfg.FlashesPerSecond = defaults.FlashesPerSecond
	}

	if cfg.AnalysisInterval == 0 && cfg.SampleRate > 0 {
		cfg.AnalysisInterval = 1 / cfg.SampleRate
	}

	if cfg.ClusterGap == 0 {
		cfg.ClusterGap = flash.RecommendedClusterGap(cfg.AnalysisInterval)
	}

	if cfg.FlickerAmplitude == 0 {
		cfg.FlickerAmplitude = defaults.FlickerAmplitude
	}

	if cfg.ContrastThreshold == 0 {
		cfg.ContrastThreshold = defaults.ContrastThreshold
	}

	if cfg.HalfLifeMs == 0 {
		cfg.HalfLifeMs = defaults.HalfLifeMs
	}

	if cfg.ContrastWindowMs == 0 {
		cfg.ContrastWindowMs = defaults.ContrastWindowMs
	}

	if cfg.FlashRate == zeroBands {
		cfg.FlashRate = defaults.FlashRate
	}

	if cfg.RedFlash == zeroBands {
		cfg.RedFlash = defaults.RedFlash
	}

	if cfg.Flicker == zeroBands {
		cfg.Flicker = defaults.Flicker
	}

	if cfg.Pattern == zeroBands {
		cfg.Pattern = defaults.Pattern
	}

	if cfg.ColorContrast == zeroBands {
		cfg.ColorContrast = defaults.ColorContrast
	}

	if cfg.PSI == zeroBands {
		cfg.PSI = defaults.PSI
	}
}

// validate checks a configuration after defaults have been applied.
func validate(cfg Config) error {
	positive := func(v float64) bool {
		return v > 0 && !math.IsInf(v, 0)
	}

	switch {
	case cfg.TimeUnit != Seconds && cfg.TimeUnit != Milliseconds:
		return fmt.Errorf("%w: time unit must be declared (s or ms)", ErrInvalidConfig)
	case !positive(cfg.SampleRate):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, cfg.SampleRate)
	case cfg.BufferLength <= 0:
		return fmt.Errorf("%w: buffer length %d", ErrInvalidConfig, cfg.BufferLength)
	case cfg.FFTLength <= 0 || cfg.FFTLength > cfg.BufferLength || cfg.FFTLength > maxFFTLength:
		return fmt.Errorf("%w: fft length %d (buffer length %d)", ErrInvalidConfig, cfg.FFTLength, cfg.BufferLength)
	case !positive(cfg.FlashIntensity) || cfg.FlashIntensity > maxFlashIntensity:
		return fmt.Errorf("%w: flash intensity %v outside (0,%v]", ErrInvalidConfig, cfg.FlashIntensity, maxFlashIntensity)
	case cfg.FlashesPerSecond <= 0:
		return fmt.Errorf("%w: flashes per second %d", ErrInvalidConfig, cfg.FlashesPerSecond)
	case !positive(cfg.AnalysisInterval):
		return fmt.Errorf("%w: analysis interval %v", ErrInvalidConfig, cfg.AnalysisInterval)
	case !positive(cfg.ClusterGap) || cfg.ClusterGap > maxClusterGap:
		return fmt.Errorf("%w: cluster gap %v outside (0,%v]", ErrInvalidConfig, cfg.ClusterGap, maxClusterGap)
	case !positive(cfg.FlickerAmplitude) || cfg.FlickerAmplitude > 1:
		return fmt.Errorf("%w: flicker amplitude %v outside (0,1]", ErrInvalidConfig, cfg.FlickerAmplitude)
	case !positive(cfg.ContrastThreshold):
		return fmt.Errorf("%w: contrast threshold %v", ErrInvalidConfig, cfg.ContrastThreshold)
	case !positive(cfg.HalfLifeMs):
		return fmt.Errorf("%w: half-life %v", ErrInvalidConfig, cfg.HalfLifeMs)
	case !positive(cfg.ContrastWindowMs):
		return fmt.Errorf("%w: contrast window %v", ErrInvalidConfig, cfg.ContrastWindowMs)
	}

	return nil
}
