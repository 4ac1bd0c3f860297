//nolint:wrapcheck // too dumb
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/photic"
	"github.com/farcloser/photic/internal/output"
)

var errInvalidArgCount = errors.New("expected exactly one argument: file path or \"-\" for stdin")

const checksUsage = "Comma-separated checks or presets: all, flash, flash-rate, red-flash, flicker, pattern, color-contrast, psi"

// sharedFlags are the flags common to analyze and process.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "checks",
			Aliases: []string{"C"},
			Usage:   checksUsage,
			Value:   "all",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"P"},
			Usage:   "Threshold profile: standard, strict, broadcast",
			Value:   "standard",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: console, json, markdown",
			Value:   "console",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"D"},
			Usage:   "Include all raw analyzer data in output",
		},
		&cli.StringFlag{
			Name:  "frames",
			Usage: "Write per-frame results as JSON lines to this file",
		},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze newline-delimited JSON frame records for photosensitivity risk",
		ArgsUsage: "<file | ->",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "time-unit",
				Aliases:  []string{"u"},
				Usage:    "Unit of frame timestamps: s, ms",
				Required: true,
			},
			&cli.FloatFlag{
				Name:    "sample-rate",
				Aliases: []string{"r"},
				Usage:   "Frame rate in frames per second (defaults to the profile rate)",
			},
		}, sharedFlags()...),
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
			}

			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			cfg.TimeUnit, err = photic.ParseTimeUnit(cmd.String("time-unit"))
			if err != nil {
				return err
			}

			if rate := cmd.Float("sample-rate"); rate != 0 {
				withRate(&cfg, rate)
			}

			inputPath := cmd.Args().First()

			input, closeInput, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer closeInput()

			observe, closeFrames, err := frameWriter(cmd.String("frames"))
			if err != nil {
				return err
			}
			defer closeFrames()

			report, err := photic.Stream(input, cfg, observe)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			return outputReport(inputPath, report, cmd.String("format"), cmd.Bool("debug"))
		},
	}
}

// buildConfig resolves the profile and check selection. TimeUnit is left to the caller.
func buildConfig(cmd *cli.Command) (photic.Config, error) {
	checks, err := parseChecks(cmd.String("checks"))
	if err != nil {
		return photic.Config{}, err
	}

	profile, err := photic.ParseProfile(cmd.String("profile"))
	if err != nil {
		return photic.Config{}, err
	}

	cfg := photic.ConfigForProfile(profile)
	cfg.Checks = checks

	return cfg, nil
}

// withRate overrides the frame rate and lets the session derive the dependent intervals.
func withRate(cfg *photic.Config, rate float64) {
	cfg.SampleRate = rate
	cfg.AnalysisInterval = 0
	cfg.ClusterGap = 0
}

//nolint:gochecknoglobals
var checkNames = map[string]photic.Check{
	"flash-rate":     photic.CheckFlashRate,
	"red-flash":      photic.CheckRedFlash,
	"flicker":        photic.CheckFlicker,
	"pattern":        photic.CheckPattern,
	"color-contrast": photic.CheckColorContrast,
	"psi":            photic.CheckPSI,
	// Presets.
	"all":   photic.ChecksAll,
	"flash": photic.ChecksFlash,
}

func parseChecks(raw string) (photic.Check, error) {
	var result photic.Check

	for name := range strings.SplitSeq(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		check, ok := checkNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown check %q", name)
		}

		result |= check
	}

	if result == 0 {
		return photic.ChecksAll, nil
	}

	return result, nil
}

// openInput opens a file, or stdin for "-". Frames are streamed: nothing is buffered.
func openInput(source string) (io.Reader, func(), error) {
	if source == "-" {
		return os.Stdin, func() {}, nil
	}

	file, err := os.Open(source) //nolint:gosec // CLI tool opens user-specified files
	if err != nil {
		return nil, func() {}, fmt.Errorf("cannot access %s: %w", source, err)
	}

	return file, func() { _ = file.Close() }, nil
}

// frameWriter returns an observer writing one JSON line per frame result, or nil when path is empty.
// The first write error is kept and reported on close.
func frameWriter(path string) (func(*photic.FrameResult), func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	file, err := os.Create(path) //nolint:gosec // CLI tool writes user-specified files
	if err != nil {
		return nil, func() {}, fmt.Errorf("creating frames output: %w", err)
	}

	encoder := json.NewEncoder(file)

	var writeErr error

	observe := func(result *photic.FrameResult) {
		if writeErr == nil {
			writeErr = encoder.Encode(output.FrameToMap(result))
		}
	}

	closeFn := func() {
		if writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: writing frames to %s: %v\n", path, writeErr)
		}

		_ = file.Close()
	}

	return observe, closeFn, nil
}
