package main

import (
	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/config"
)

var (
	configPath string
	fileConfig config.Config

	modelPath   string
	ctxSize     int64
	gpuLayers   int64
	backendName string
	maxKV       int64

	logLevel  string
	logFormat string
	debug     bool
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file (.yaml, .toml or .json)",
			Sources:     cli.EnvVars("GPUF_CONFIG"),
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .gmf file",
			Destination: &modelPath,
		},
		&cli.Int64Flag{
			Name:        "ctx-size",
			Aliases:     []string{"ctx", "c"},
			Usage:       "context size in tokens",
			Value:       config.DefaultContextSize,
			Destination: &ctxSize,
		},
		&cli.Int64Flag{
			Name:        "gpu-layers",
			Aliases:     []string{"ngl"},
			Usage:       "layers to offload to an accelerator (clamped to the model)",
			Destination: &gpuLayers,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (auto, cpu, accel)",
			Value:       "auto",
			Sources:     cli.EnvVars("GPUF_BACKEND"),
			Destination: &backendName,
		},
		&cli.Int64Flag{
			Name:        "max-kv-bytes",
			Usage:       "refuse context sizes whose KV cache exceeds this many bytes (0 = default)",
			Destination: &maxKV,
		},
	}
}

type samplingFlagValues struct {
	mode          string
	seed          int64
	temp          float64
	topK          int64
	topP          float64
	minP          float64
	repeatPenalty float64
	repeatLastN   int64
}

func samplingFlags(v *samplingFlagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sampling",
			Usage:       "token selection (greedy, sample)",
			Value:       "greedy",
			Destination: &v.mode,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (-1 = random)",
			Value:       -1,
			Destination: &v.seed,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature",
			Value:       0.8,
			Destination: &v.temp,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Usage:       "top-k sampling parameter (0 = disabled)",
			Destination: &v.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "top-p sampling parameter",
			Value:       1.0,
			Destination: &v.topP,
		},
		&cli.Float64Flag{
			Name:        "min-p",
			Usage:       "min-p sampling parameter (0 = disabled)",
			Destination: &v.minP,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       1.0,
			Destination: &v.repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Usage:       "last n tokens to penalize",
			Value:       64,
			Destination: &v.repeatLastN,
		},
	}
}
