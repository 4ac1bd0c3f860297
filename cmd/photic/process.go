//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/photic/internal/integration/ffprobe"
	"github.com/farcloser/photic/internal/pipeline"
)

var errProcessArgs = errors.New("expected exactly one argument: file path")

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Decode a video file and analyze it for photosensitivity risk",
		ArgsUsage: "<file>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Video stream index (0-based)",
				Value: 0,
			},
			&cli.FloatFlag{
				Name:    "rate",
				Aliases: []string{"r"},
				Usage:   "Analysis frame rate (defaults to the stream frame rate)",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Width frames are scaled down to before analysis; height keeps the aspect ratio",
				Value: pipeline.DefaultWidth,
			},
		}, sharedFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errProcessArgs, cmd.NArg())
			}

			filePath := cmd.Args().First()

			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			// Probe the file for video properties.
			probeResult, err := ffprobe.Probe(ctx, filePath)
			if err != nil {
				return fmt.Errorf("probing file: %w", err)
			}

			stream, err := probeResult.VideoStream(cmd.Int("stream"))
			if err != nil {
				return err
			}

			spec, err := pipeline.FrameSpec(stream, cmd.Int("stream"), cmd.Float("rate"), cmd.Int("width"))
			if err != nil {
				return err
			}

			observe, closeFrames, err := frameWriter(cmd.String("frames"))
			if err != nil {
				return err
			}
			defer closeFrames()

			report, err := pipeline.Video(ctx, filePath, spec, cfg, observe)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			return outputReport(filePath, report, cmd.String("format"), cmd.Bool("debug"))
		},
	}
}
