package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/model"
	"github.com/gpunexus/gpuf/internal/modelstore"
	"github.com/gpunexus/gpuf/pkg/gmf"
)

type inspectReport struct {
	Path    string            `json:"path"`
	Mapped  bool              `json:"mapped"`
	Info    gmf.ModelInfo     `json:"info"`
	Valid   bool              `json:"valid"`
	Problem string            `json:"problem,omitempty"`
	KVBytes int64             `json:"kv_bytes_at_max_context,omitempty"`
	Vocab   vocabSummary      `json:"vocab"`
	Tensors []gmf.TensorEntry `json:"tensors,omitempty"`
}

type vocabSummary struct {
	Size   int    `json:"size"`
	BOS    string `json:"bos,omitempty"`
	EOS    string `json:"eos,omitempty"`
	UNK    string `json:"unk,omitempty"`
	AddBOS bool   `json:"add_bos"`
}

func inspectCmd() *cli.Command {
	var (
		path        string
		asJSON      bool
		showTensors bool
		filter      string
	)
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .gmf model container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to .gmf file",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensors", Destination: &showTensors},
			&cli.StringFlag{Name: "filter", Usage: "only list tensors whose name contains this", Destination: &filter},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			f, err := modelstore.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open %s: %v", path, err), 1)
			}
			defer func() { _ = f.Close() }()

			rep := buildReport(path, f, showTensors, filter)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(rep)
			return nil
		},
	}
}

func buildReport(path string, f *modelstore.File, tensors bool, filter string) inspectReport {
	info := f.Info()
	v := f.Vocab()
	rep := inspectReport{
		Path:   path,
		Mapped: f.Mapped(),
		Info:   info,
		Vocab: vocabSummary{
			Size:   len(v.Tokens),
			BOS:    tokenAt(v.Tokens, v.BOS),
			EOS:    tokenAt(v.Tokens, v.EOS),
			UNK:    tokenAt(v.Tokens, v.UNK),
			AddBOS: v.AddBOS,
		},
	}
	if cfg, err := model.ConfigFromInfo(info); err != nil {
		rep.Problem = err.Error()
	} else {
		rep.Valid = true
		rep.KVBytes = model.KVBytes(cfg, cfg.MaxContext)
	}
	if tensors {
		for _, e := range f.Tensors() {
			if filter == "" || strings.Contains(e.Name, filter) {
				rep.Tensors = append(rep.Tensors, e)
			}
		}
	}
	return rep
}

func tokenAt(tokens []string, id int) string {
	if id < 0 || id >= len(tokens) {
		return ""
	}
	return tokens[id]
}

func printReport(rep inspectReport) {
	fmt.Printf("file:        %s (mapped: %v)\n", rep.Path, rep.Mapped)
	fmt.Printf("arch:        %s\n", rep.Info.Arch)
	if rep.Info.Name != "" {
		fmt.Printf("name:        %s\n", rep.Info.Name)
	}
	fmt.Printf("dims:        dim=%d hidden=%d layers=%d heads=%d\n",
		rep.Info.Dim, rep.Info.HiddenDim, rep.Info.Layers, rep.Info.Heads)
	fmt.Printf("max context: %d\n", rep.Info.MaxContext)
	fmt.Printf("vocab:       %d tokens (bos=%q eos=%q unk=%q add_bos=%v)\n",
		rep.Vocab.Size, rep.Vocab.BOS, rep.Vocab.EOS, rep.Vocab.UNK, rep.Vocab.AddBOS)
	if rep.Valid {
		fmt.Printf("kv cache:    %d bytes at max context\n", rep.KVBytes)
	} else {
		fmt.Printf("invalid:     %s\n", rep.Problem)
	}
	if len(rep.Tensors) == 0 {
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nNAME\tDTYPE\tSHAPE\tBYTES")
	for _, e := range rep.Tensors {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", e.Name, e.DType, e.Shape, e.Size)
	}
	_ = tw.Flush()
}
