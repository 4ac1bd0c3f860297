package photic

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/photic/internal/audit/chromatic"
	"github.com/farcloser/photic/internal/audit/contrast"
	"github.com/farcloser/photic/internal/audit/flash"
	"github.com/farcloser/photic/internal/audit/percentile"
	"github.com/farcloser/photic/internal/audit/psi"
	"github.com/farcloser/photic/internal/audit/risk"
	"github.com/farcloser/photic/internal/audit/spectral"
	"github.com/farcloser/photic/internal/ringbuffer"
	"github.com/farcloser/photic/internal/types"
)

const (
	// Spectral peaks below this confidence are broadband changes, not flicker.
	minFlickerConfidenceDb = 3.0

	intensityHistory = 16
	patternHistory   = 32

	// Session-wide Delta E values are rounded to this step before being counted.
	deltaEStep = 0.01
)

type spectralAnalyzer interface {
	Analyze(brightness float64, params spectral.Params) *types.SpectralResult
	Reset()
}

type contrastSeries interface {
	Push(timestampMs float64, color types.LabColor) types.TemporalContrast
	Reset()
}

type colorTracker interface {
	Update(color types.RGB) types.ChromaticResult
	Reset()
}

type flashTracker interface {
	Update(timestamp float64, isFlash bool, frame int) types.FlashUpdate
	Finish() types.FlashUpdate
	Windows() []types.ViolationWindow
	Clusters() []types.FlashCluster
	Reset()
}

type riskAssessor interface {
	Assess(in risk.Inputs) types.RiskAssessment
	Highest() types.RiskLevel
	Reset()
}

var (
	_ spectralAnalyzer = (*spectral.Engine)(nil)
	_ contrastSeries   = (*contrast.Series)(nil)
	_ colorTracker     = (*chromatic.Tracker)(nil)
	_ flashTracker     = (*flash.Tracker)(nil)
	_ riskAssessor     = (*risk.Engine)(nil)
)

// peaks are the session maxima reported by Finish.
type peaks struct {
	psi              float64
	flashesPerSecond int
	redDelta         float64
	pattern          float64
	spectral         *types.SpectralResult
	contrast         *types.ContrastResult
	trend            float64
}

// Session is one analysis session: a video, from load to unload.
// It processes frames synchronously, one call per frame, and is not safe for concurrent use.
// Separate sessions share nothing.
type Session struct {
	cfg    Config
	params spectral.Params
	id     string

	spectral  spectralAnalyzer
	contrast  contrastSeries
	chromatic colorTracker
	flashes   flashTracker
	risk      riskAssessor

	counter     *flash.Counter
	intensities *ringbuffer.Buffer[float64]
	patterns    *ringbuffer.Buffer[float64]

	// Since the last seek.
	deltas             *percentile.Tree
	history            int
	previousBrightness float64
	previousLab        types.LabColor
	hasPrevious        bool
	lastFlash          float64
	flashingSince      float64
	hasFlash           bool

	// Since the last reset.
	index           int
	firstTimestamp  float64
	lastTimestamp   float64
	hasTimestamp    bool
	windows         []types.ViolationWindow
	clusters        []types.FlashCluster
	violationFrames int
	peaks           peaks
}

// NewSession validates cfg and returns a session ready for its first frame.
func NewSession(cfg Config) (*Session, error) {
	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	seriesOpts := contrast.DefaultSeriesOptions()
	seriesOpts.Analysis.Threshold = cfg.ContrastThreshold
	seriesOpts.Analysis.HalfLifeMs = cfg.HalfLifeMs
	seriesOpts.WindowMs = cfg.ContrastWindowMs
	seriesOpts.SamplingIntervalMs = cfg.AnalysisInterval * 1000

	session := &Session{
		cfg: cfg,
		params: spectral.Params{
			BufferLength: cfg.BufferLength,
			FFTLength:    cfg.FFTLength,
			SampleRate:   cfg.SampleRate,
			HasTimestamp: true,
		},
		id:        uuid.NewString(),
		spectral:  spectral.NewEngine(),
		contrast:  contrast.NewSeries(seriesOpts),
		chromatic: chromatic.NewTracker(),
		flashes: flash.NewTracker(flash.Options{
			FlashThreshold: cfg.FlashesPerSecond,
			ClusterGap:     cfg.ClusterGap,
		}),
		risk:        risk.NewEngine(),
		counter:     flash.NewCounter(flash.WindowSpan),
		intensities: ringbuffer.New[float64](intensityHistory),
		patterns:    ringbuffer.New[float64](patternHistory),
		deltas:      percentile.New(),
	}

	slog.Debug("session.New", "session", session.id, "time unit", cfg.TimeUnit, "sample rate", cfg.SampleRate)

	return session, nil
}

// ID identifies the session. It changes on Reset.
func (s *Session) ID() string {
	return s.id
}

// Config returns the effective configuration, defaults applied.
func (s *Session) Config() Config {
	return s.cfg
}

// Process analyzes one frame. Timestamps are expected to be non-decreasing; callers
// call Seek when playback jumps.
func (s *Session) Process(frame Frame) *FrameResult {
	timestamp := s.timestamp(frame.Timestamp)
	brightness := clampUnit(frame.Brightness)
	coverage := clampUnit(frame.Coverage)
	pattern := clampUnit(frame.Pattern)

	index := s.index
	s.index++
	s.history++

	params := s.params
	params.Timestamp = timestamp
	spectrum := s.spectral.Analyze(brightness, params)

	lab := contrast.ToLab(frame.Color)
	temporal := s.contrast.Push(timestamp*1000, lab)
	chroma := s.chromatic.Update(frame.Color)

	var intensity float64

	if s.hasPrevious {
		intensity = math.Abs(brightness - s.previousBrightness)

		delta := contrast.DeltaE76(s.previousLab, lab)
		s.deltas.Insert(math.Round(delta/deltaEStep)*deltaEStep, 1)
	}

	isFlash := frame.Flash || (s.hasPrevious && intensity >= s.cfg.FlashIntensity)
	update := s.flashes.Update(timestamp, isFlash, index)

	if isFlash {
		s.counter.Add(timestamp)
		s.intensities.Push(intensity)

		if !s.hasFlash || timestamp-s.lastFlash > s.cfg.ClusterGap {
			s.flashingSince = timestamp
		}

		s.lastFlash = timestamp
		s.hasFlash = true
	}

	s.patterns.Push(pattern)

	current := s.counter.Current(timestamp)

	// Intensity, coverage and duration only describe flashing within the last second.
	var flashIntensity, flashCoverage, duration float64

	if current > 0 {
		recent := s.intensities.Values()
		flashIntensity = floats.Sum(recent) / float64(len(recent))
		flashCoverage = coverage
		duration = s.lastFlash - s.flashingSince
	}

	score := psi.Score(psi.Inputs{
		FlashesPerSecond: float64(current),
		Intensity:        flashIntensity,
		Coverage:         flashCoverage,
		DurationSeconds:  duration,
	})

	var flickerHz float64
	if spectrum.ConfidenceDb >= minFlickerConfidenceDb && spectrum.DominantAmplitude >= s.cfg.FlickerAmplitude {
		flickerHz = spectrum.DominantFrequency
	}

	assessment := s.risk.Assess(risk.Inputs{
		FlashHistory:     s.history,
		PatternHistory:   s.patterns.Len(),
		HasRed:           true,
		HasPreviousRed:   chroma.HasPrevious,
		FlashesPerSecond: float64(s.counter.Max()),
		Intensity:        flashIntensity,
		Coverage:         flashCoverage,
		PSI:              score,
		RedIntensity:     chroma.RedIntensity,
		RedDelta:         chroma.RedDelta,
		Chroma:           chroma.Contrast,
		Pattern:          pattern,
		FlickerHz:        flickerHz,
	})

	s.previousBrightness = brightness
	s.previousLab = lab
	s.hasPrevious = true

	s.track(spectrum, flickerHz, temporal, chroma, pattern, score, current)

	return &FrameResult{
		Index:            index,
		Timestamp:        timestamp,
		Flash:            isFlash,
		Spectral:         spectrum,
		Contrast:         temporal,
		Chromatic:        chroma,
		Flashes:          update,
		FlashesPerSecond: current,
		PSI:              score,
		Risk:             assessment,
	}
}

// Seek drops every analysis window after a playback jump: brightness and color history,
// phase history, the Delta E distribution behind MedianDeltaE and P95DeltaE, and the open
// flash window and cluster. Violations found so far are kept for the report, and the
// session risk level does not go down.
func (s *Session) Seek() {
	slog.Debug("session.Seek", "session", s.id, "frame", s.index)

	s.archive()
	s.clearWindows()
}

// Reset starts a new session: new identifier, empty history, risk back to low.
func (s *Session) Reset() {
	previous := s.id

	s.flashes.Reset()
	s.clearWindows()
	s.risk.Reset()

	s.id = uuid.NewString()
	s.index = 0
	s.firstTimestamp = 0
	s.lastTimestamp = 0
	s.hasTimestamp = false
	s.windows = nil
	s.clusters = nil
	s.violationFrames = 0
	s.peaks = peaks{}

	slog.Debug("session.Reset", "previous", previous, "session", s.id)
}

// Finish closes the open flash window and cluster and summarizes the session.
// Frames processed afterwards start new windows.
func (s *Session) Finish() *Report {
	s.archive()

	report := &Report{
		SessionID:            s.id,
		Frames:               s.index,
		Duration:             s.lastTimestamp - s.firstTimestamp,
		Risk:                 s.risk.Highest(),
		PeakPSI:              s.peaks.psi,
		PeakFlashesPerSecond: s.peaks.flashesPerSecond,
		PeakRedDelta:         s.peaks.redDelta,
		PeakPattern:          s.peaks.pattern,
		ViolationFrames:      s.violationFrames,
		Windows:              append([]types.ViolationWindow(nil), s.windows...),
		Clusters:             append([]types.FlashCluster(nil), s.clusters...),
		Spectral:             s.peaks.spectral,
		Contrast:             s.peaks.contrast,
		TrendDeltaE:          s.peaks.trend,
	}

	if s.peaks.spectral != nil {
		report.PeakFlickerHz = s.peaks.spectral.DominantFrequency
	}

	report.MedianDeltaE, _ = s.deltas.Quantile(50)
	report.P95DeltaE, _ = s.deltas.Quantile(95)

	interpretResults(report, s.cfg)

	slog.Debug("session.Finish", "session", s.id, "frames", report.Frames, "risk", report.Risk)

	return report
}

// archive moves the tracker's windows and clusters into the session history,
// renumbering clusters so identifiers stay unique across seeks.
func (s *Session) archive() {
	s.flashes.Finish()

	offset := len(s.clusters)

	for _, cluster := range s.flashes.Clusters() {
		cluster.ID += offset
		s.clusters = append(s.clusters, cluster)
	}

	for _, window := range s.flashes.Windows() {
		ids := make([]int, len(window.Clusters))
		for i, id := range window.Clusters {
			ids[i] = id + offset
		}

		window.Clusters = ids
		s.windows = append(s.windows, window)
		s.violationFrames += window.FrameCount
	}

	s.flashes.Reset()
}

func (s *Session) clearWindows() {
	s.spectral.Reset()
	s.contrast.Reset()
	s.chromatic.Reset()
	s.counter.Reset()
	s.intensities.Reset()
	s.patterns.Reset()
	s.deltas = percentile.New()

	s.history = 0
	s.previousBrightness = 0
	s.previousLab = types.LabColor{}
	s.hasPrevious = false
	s.lastFlash = 0
	s.flashingSince = 0
	s.hasFlash = false
}

// timestamp converts to seconds. A non-finite timestamp is replaced by the expected one.
func (s *Session) timestamp(raw float64) float64 {
	seconds := s.cfg.TimeUnit.ToSeconds(raw)

	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
		if s.hasTimestamp {
			seconds = s.lastTimestamp + s.cfg.AnalysisInterval
		}
	}

	if !s.hasTimestamp {
		s.firstTimestamp = seconds
		s.lastTimestamp = seconds
		s.hasTimestamp = true
	}

	s.firstTimestamp = min(s.firstTimestamp, seconds)
	s.lastTimestamp = max(s.lastTimestamp, seconds)

	return seconds
}

func (s *Session) track(
	spectrum *types.SpectralResult,
	flickerHz float64,
	temporal types.TemporalContrast,
	chroma types.ChromaticResult,
	pattern, score float64,
	current int,
) {
	s.peaks.psi = max(s.peaks.psi, score)
	s.peaks.flashesPerSecond = max(s.peaks.flashesPerSecond, current)
	s.peaks.redDelta = max(s.peaks.redDelta, chroma.RedDelta)
	s.peaks.pattern = max(s.peaks.pattern, pattern)
	s.peaks.trend = temporal.TrendDeltaE

	if risk.InFlickerBand(flickerHz) &&
		(s.peaks.spectral == nil || spectrum.ConfidenceDb > s.peaks.spectral.ConfidenceDb) {
		s.peaks.spectral = spectrum
	}

	if !temporal.Window.InsufficientData &&
		(s.peaks.contrast == nil || temporal.Window.P95DeltaE > s.peaks.contrast.P95DeltaE) {
		window := temporal.Window
		s.peaks.contrast = &window
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return min(max(v, 0), 1)
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%d frames, risk %s)", s.id, s.index, s.risk.Highest())
}
