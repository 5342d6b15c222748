package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/version"
)

func versionCmd() *cli.Command {
	var verbose bool
	return &cli.Command{
		Name:  "version",
		Usage: "Print version and build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "include backends and CPU features", Destination: &verbose},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			fmt.Println(version.String())
			if info.BuildTime != "" {
				fmt.Printf("built:    %s\n", info.BuildTime)
			}
			if !verbose {
				return nil
			}
			fmt.Printf("go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Printf("backends: %s\n", backend.Available())
			if feats := backend.CPUFeatures(); len(feats) > 0 {
				fmt.Printf("cpu:      %s\n", strings.Join(feats, " "))
			}
			return nil
		},
	}
}
