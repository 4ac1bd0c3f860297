//nolint:wrapcheck
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/farcloser/photic"
	"github.com/farcloser/photic/internal/integration/ffprobe"
	"github.com/farcloser/photic/internal/output"
	"github.com/farcloser/photic/internal/pipeline"
)

const outputFile = "photic-report.jsonl"

var (
	errNotDirectory  = errors.New("not a directory")
	errNoVideoFiles  = errors.New("no video or frame record files found")
	errNoTimeUnit    = errors.New("frame records need --time-unit")
	errReportArgs    = errors.New("expected exactly one argument: folder path")
	errUnknownSource = errors.New("unsupported file type")
)

//nolint:gochecknoglobals
var videoExtensions = []string{".mp4", ".mkv", ".mov", ".webm", ".avi", ".m4v"}

//nolint:gochecknoglobals
var recordExtensions = []string{".ndjson", ".jsonl"}

type reportOptions struct {
	redact   bool
	profile  photic.Profile
	timeUnit photic.TimeUnit
	workers  int
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Scan a video collection and write a photic JSONL report",
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "redact-path",
				Usage: "Strip file paths from the report",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"P"},
				Usage:   "Threshold profile: standard, strict, broadcast",
				Value:   "standard",
			},
			&cli.StringFlag{
				Name:    "time-unit",
				Aliases: []string{"u"},
				Usage:   "Unit of timestamps in .ndjson frame record files: s, ms",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent workers",
				Value:   runtime.NumCPU(),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errReportArgs
			}

			profile, err := photic.ParseProfile(cmd.String("profile"))
			if err != nil {
				return err
			}

			opts := reportOptions{
				redact:  cmd.Bool("redact-path"),
				profile: profile,
				workers: max(cmd.Int("workers"), 1),
			}

			if raw := cmd.String("time-unit"); raw != "" {
				if opts.timeUnit, err = photic.ParseTimeUnit(raw); err != nil {
					return err
				}
			}

			return runReport(ctx, cmd.Args().First(), opts)
		},
	}
}

func runReport(ctx context.Context, folder string, opts reportOptions) error {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%q: %w", folder, errNotDirectory)
	}

	files, err := collectFiles(folder)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%q: %w", folder, errNoVideoFiles)
	}

	fmt.Fprintf(os.Stderr, "Found %d files to analyze (%d workers)\n", len(files), opts.workers)

	// Process files concurrently. Failures are recorded per file and never stop the group.
	startTime := time.Now()
	results := make([]Record, len(files))

	var progress atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.workers)

	for idx, filePath := range files {
		group.Go(func() error {
			results[idx] = processFile(groupCtx, filePath, opts)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(files), filePath)

			return nil
		})
	}

	_ = group.Wait()

	// Write results in file order.
	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	failed := 0

	var totalProbe, totalAnalyze time.Duration

	for idx := range results {
		record := &results[idx]

		if record.Error != "" {
			failed++
		}

		if record.Timing != nil {
			totalProbe += millisToDuration(record.Timing.ProbeMs)
			totalAnalyze += millisToDuration(record.Timing.AnalyzeMs)
		}

		if opts.redact {
			record.File = ""
			record.Probe = redactProbe(record.Probe)
		}

		if err := enc.Encode(record); err != nil {
			slog.Error("writing record", "file", files[idx], "error", err)
		}
	}

	out.Close()

	if err := compressFile(outputFile); err != nil {
		slog.Error("compressing report", "error", err)
	}

	elapsed := time.Since(startTime)
	minutes := int(elapsed.Minutes())
	seconds := int(elapsed.Seconds()) % 60

	fmt.Fprintf(os.Stderr, "\nDone: %d files in %dm %ds (%d failed)\n", len(files), minutes, seconds, failed)
	fmt.Fprintf(os.Stderr, "Report written to %s (and %s.gz)\n", outputFile, outputFile)

	analyzed := len(files) - failed
	fmt.Fprintf(os.Stderr, "\n--- Timing ---\n")
	fmt.Fprintf(os.Stderr, "  Wall clock:  %s\n", elapsed.Truncate(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  ffprobe:     %s (cumulative)\n", totalProbe.Truncate(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  analysis:    %s (cumulative, including decode)\n", totalAnalyze.Truncate(time.Millisecond))

	if analyzed > 0 {
		fmt.Fprintf(os.Stderr, "  avg/file:    %s (probe: %s, analyze: %s)\n",
			(totalProbe+totalAnalyze)/time.Duration(analyzed),
			totalProbe/time.Duration(analyzed),
			totalAnalyze/time.Duration(analyzed),
		)
	}

	fmt.Fprintln(os.Stderr)

	return runDigest(outputFile, "")
}

func processFile(ctx context.Context, filePath string, opts reportOptions) Record {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch {
	case slices.Contains(recordExtensions, ext):
		return processRecords(filePath, opts)
	case slices.Contains(videoExtensions, ext):
		return processVideo(ctx, filePath, opts)
	default:
		return Record{File: filePath, Error: errUnknownSource.Error()}
	}
}

func processRecords(filePath string, opts reportOptions) Record {
	if opts.timeUnit == photic.UnitUnknown {
		return Record{File: filePath, Error: errNoTimeUnit.Error()}
	}

	fileStart := time.Now()

	file, err := os.Open(filePath) //nolint:gosec // CLI tool opens user-specified files
	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("open failed: %v", err)}
	}
	defer file.Close()

	cfg := photic.ConfigForProfile(opts.profile)
	cfg.TimeUnit = opts.timeUnit

	report, err := photic.Analyze(file, cfg)

	elapsed := durationMs(time.Since(fileStart))
	timing := &RecordTiming{AnalyzeMs: elapsed, TotalMs: elapsed}

	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("analysis failed: %v", err), Timing: timing}
	}

	return Record{File: filePath, Analysis: output.ReportToMap(report), Timing: timing}
}

func processVideo(ctx context.Context, filePath string, opts reportOptions) Record {
	fileStart := time.Now()
	timing := &RecordTiming{}

	// Probe.
	probeResult, err := ffprobe.Probe(ctx, filePath)

	timing.ProbeMs = durationMs(time.Since(fileStart))

	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("probe failed: %v", err), Timing: timing}
	}

	stream, err := probeResult.VideoStream(0)
	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("no video stream: %v", err), Timing: timing}
	}

	spec, err := pipeline.FrameSpec(stream, 0, 0, pipeline.DefaultWidth)
	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("format error: %v", err), Timing: timing}
	}

	// Decode and analyze.
	analyzeStart := time.Now()

	report, err := pipeline.Video(ctx, filePath, spec, photic.ConfigForProfile(opts.profile), nil)

	timing.AnalyzeMs = durationMs(time.Since(analyzeStart))
	timing.TotalMs = durationMs(time.Since(fileStart))

	if err != nil {
		return Record{File: filePath, Error: fmt.Sprintf("analysis failed: %v", err), Timing: timing}
	}

	record := Record{
		File:     filePath,
		Analysis: output.ReportToMap(report),
		Timing:   timing,
	}

	probeJSON, err := json.Marshal(probeResult)
	if err == nil {
		record.Probe = probeJSON
	} else {
		record.ProbeError = "probe serialization failed"
	}

	return record
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func millisToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func collectFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		// Skip our own output.
		if d.Name() == outputFile {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if slices.Contains(videoExtensions, ext) || slices.Contains(recordExtensions, ext) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}

func compressFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading our own output file
	if err != nil {
		return err
	}

	gzFile, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer gzFile.Close()

	gzWriter := gzip.NewWriter(gzFile)

	if _, err := gzWriter.Write(data); err != nil {
		return err
	}

	return gzWriter.Close()
}

func redactProbe(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return raw
	}

	// Strip format.filename.
	if format, ok := probe["format"].(map[string]any); ok {
		delete(format, "filename")
	}

	redacted, err := json.Marshal(probe)
	if err != nil {
		return raw
	}

	return redacted
}
