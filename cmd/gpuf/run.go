package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/config"
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/logger"
)

const runDescription = `Tokens are streamed to stdout as they are generated, so a run that fails
midway leaves partial text on the terminal. With --quiet nothing is printed
unless the whole generation succeeds.`

func runCmd() *cli.Command {
	var (
		prompt    string
		maxTokens int64
		quiet     bool
		sampling  samplingFlagValues
	)

	flags := commonModelFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text (\"-\" reads stdin)",
			Destination: &prompt,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "maximum tokens to generate",
			Value:       config.DefaultMaxTokens,
			Destination: &maxTokens,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "print only the generated text, without stats; output is held until generation succeeds",
			Destination: &quiet,
		},
	)
	flags = append(flags, samplingFlags(&sampling)...)

	return &cli.Command{
		Name:        "run",
		Usage:       "Load a model and generate a continuation of a prompt",
		Description: runDescription,
		Flags:       flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := fileConfig
			applyModelConfig(c, cfg)
			if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
				maxTokens = int64(*cfg.MaxTokens)
			}
			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}
			if maxTokens < 0 {
				return cli.Exit("error: --max-tokens must not be negative", 1)
			}
			if prompt == "-" {
				b, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read prompt: %v", err), 1)
				}
				prompt = strings.TrimRight(string(b), "\n")
			}

			opts, err := sessionOptions()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts.Sampling, err = samplerConfig(c, cfg, sampling)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: sampling: %v", err), 1)
			}

			rt := engine.NewRuntime(engine.Options{Backend: backendName, Logger: log})
			if err := rt.Init(); err != nil {
				return cli.Exit(fmt.Sprintf("error: init: %v", err), 1)
			}
			sess, err := rt.OpenSession(modelPath, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), exitCode(err))
			}
			defer func() { _ = sess.Close() }()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			res, err := generate(ctx, sess, engine.GenerationRequest{
				Prompt:    prompt,
				MaxTokens: uint(maxTokens),
			}, os.Stdout, !quiet)
			fmt.Println()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), exitCode(err))
			}
			if !quiet {
				fmt.Fprintf(os.Stderr, "%d prompt tokens, %d generated (%s), %.2f tok/s\n",
					res.PromptTokens, res.Stats.TokensGenerated, res.FinishReason, res.Stats.TPS)
			}
			return nil
		},
	}
}

// generate writes the continuation to w. When streaming, pieces are written
// as they arrive; otherwise the text is written only after a successful run.
func generate(ctx context.Context, sess *engine.Session, req engine.GenerationRequest, w io.Writer, streaming bool) (engine.GenerationResult, error) {
	if !streaming {
		res, err := sess.Generate(ctx, req)
		if err != nil {
			return res, err
		}
		_, err = io.WriteString(w, res.Text)
		return res, err
	}
	out := bufio.NewWriter(w)
	req.Stream = func(piece string) {
		_, _ = out.WriteString(piece)
		_ = out.Flush()
	}
	res, err := sess.Generate(ctx, req)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	return res, err
}

// exitCode maps an engine error to a process exit status. The boundary
// status codes are negative, so they are reported by magnitude.
func exitCode(err error) int {
	code := int(-engine.StatusOf(err))
	if code <= 0 {
		return 1
	}
	return code
}
