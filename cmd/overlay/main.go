// Package main runs the detection overlay against a video source.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig     = "config"
	flagSource     = "source"
	flagSourceKind = "source-kind"
	flagFPS        = "fps"
	flagLoop       = "loop"
	flagModel      = "model"
	flagORTLib     = "ort-lib"
	flagBackend    = "backend"
	flagThreshold  = "threshold"
	flagInterval   = "tick-interval"
	flagListen     = "listen"
	flagProfile    = "profile"
	flagStopOnEnd  = "stop-on-end"
	flagDebug      = "debug"
	flagJSONLogs   = "json-logs"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "overlay",
		Usage: "draw live object detections over a video",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagSource,
				Aliases: []string{"s"},
				Usage:   "video file, frame directory, still image, device index or stream URL",
			},
			&cli.StringFlag{
				Name:  flagSourceKind,
				Value: "auto",
				Usage: "source kind: auto, file, capture, sequence or image",
			},
			&cli.Float64Flag{
				Name:  flagFPS,
				Value: 30,
				Usage: "playback rate of frame directories",
			},
			&cli.BoolFlag{
				Name:  flagLoop,
				Usage: "restart files and frame directories when they end",
			},
			&cli.StringFlag{
				Name:    flagModel,
				Aliases: []string{"m"},
				Usage:   "ONNX model `FILE`",
			},
			&cli.StringFlag{
				Name:  flagORTLib,
				Usage: "path to the onnxruntime shared library",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Usage: "execution provider: cpu, cuda, coreml or openvino",
			},
			&cli.Float64Flag{
				Name:  flagThreshold,
				Usage: "minimum detection score",
			},
			&cli.DurationFlag{
				Name:  flagInterval,
				Usage: "time between detection cycles",
			},
			&cli.StringFlag{
				Name:  flagListen,
				Usage: "serve status and the overlay image on `ADDR`",
			},
			&cli.BoolFlag{
				Name:  flagProfile,
				Usage: "log periodic runtime and stage timing reports",
			},
			&cli.BoolFlag{
				Name:  flagStopOnEnd,
				Usage: "exit when the video ends",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagJSONLogs,
				Usage: "log as JSON",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "defaults",
				Usage:     "write the default configuration",
				ArgsUsage: "FILE",
				Action:    writeDefaults,
			},
		},
	}
}
