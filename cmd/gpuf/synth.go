package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/model"
	"github.com/gpunexus/gpuf/pkg/gmf"
)

func synthCmd() *cli.Command {
	var (
		output string
		dtype  string
		dim    int64
		hidden int64
		layers int64
		heads  int64
		maxCtx int64
		seed   int64
		name   string
	)
	def := model.DefaultSynthOptions()
	return &cli.Command{
		Name:  "synth",
		Usage: "Write a small randomly initialised model for testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output .gmf path", Required: true, Destination: &output},
			&cli.StringFlag{Name: "dtype", Usage: "weight dtype (f32, f16)", Value: "f32", Destination: &dtype},
			&cli.StringFlag{Name: "name", Usage: "model name", Value: def.Name, Destination: &name},
			&cli.Int64Flag{Name: "dim", Value: int64(def.Dim), Destination: &dim},
			&cli.Int64Flag{Name: "hidden-dim", Value: int64(def.HiddenDim), Destination: &hidden},
			&cli.Int64Flag{Name: "layers", Value: int64(def.Layers), Destination: &layers},
			&cli.Int64Flag{Name: "heads", Value: int64(def.Heads), Destination: &heads},
			&cli.Int64Flag{Name: "max-context", Value: int64(def.MaxContext), Destination: &maxCtx},
			&cli.Int64Flag{Name: "seed", Value: def.Seed, Destination: &seed},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts := def
			opts.Name = name
			opts.Dim = int(dim)
			opts.HiddenDim = int(hidden)
			opts.Layers = int(layers)
			opts.Heads = int(heads)
			opts.MaxContext = int(maxCtx)
			opts.Seed = seed
			switch dtype {
			case "f32":
				opts.DType = gmf.DTypeF32
			case "f16":
				opts.DType = gmf.DTypeF16
			default:
				return cli.Exit(fmt.Sprintf("error: unsupported dtype %q", dtype), 1)
			}

			info, err := model.Synthesize(output, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: synthesize: %v", err), 1)
			}
			fmt.Printf("wrote %s: %s, %d layers, dim %d, vocab %d\n",
				output, info.Arch, info.Layers, info.Dim, info.VocabSize)
			return nil
		},
	}
}
