package main

import (
	"fmt"
	"math"

	"github.com/urfave/cli/v3"

	"github.com/gpunexus/gpuf/internal/config"
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/logits"
)

// applyModelConfig applies config file defaults to the model flags that
// were not set on the command line.
func applyModelConfig(c *cli.Command, cfg config.Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.ContextSize != nil && !c.IsSet("ctx-size") {
		ctxSize = int64(*cfg.ContextSize)
	}
	if cfg.GPULayers != nil && !c.IsSet("gpu-layers") {
		gpuLayers = int64(*cfg.GPULayers)
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.MaxKVBytes != nil && !c.IsSet("max-kv-bytes") {
		maxKV = *cfg.MaxKVBytes
	}
}

// sessionOptions validates the model flags.
func sessionOptions() (engine.SessionOptions, error) {
	if ctxSize < 0 || ctxSize > math.MaxUint32 {
		return engine.SessionOptions{}, fmt.Errorf("ctx-size %d out of range", ctxSize)
	}
	if gpuLayers < 0 || gpuLayers > math.MaxUint32 {
		return engine.SessionOptions{}, fmt.Errorf("gpu-layers %d out of range", gpuLayers)
	}
	return engine.SessionOptions{
		ContextSize: uint32(ctxSize),
		GPULayers:   uint32(gpuLayers),
		MaxKVBytes:  maxKV,
	}, nil
}

// samplerConfig starts from the config file's sampling block and overlays
// the flags that were set explicitly.
func samplerConfig(c *cli.Command, cfg config.Config, v samplingFlagValues) (logits.SamplerConfig, error) {
	sc, err := cfg.Sampling.SamplerConfig()
	if err != nil {
		return sc, err
	}
	if cfg.Sampling.Mode == "" || c.IsSet("sampling") {
		mode, err := logits.ParseMode(v.mode)
		if err != nil {
			return sc, err
		}
		sc.Mode = mode
	}
	if cfg.Sampling.Seed == nil || c.IsSet("seed") {
		sc.Seed = v.seed
	}
	if cfg.Sampling.Temperature == nil || c.IsSet("temp") {
		sc.Temperature = float32(v.temp)
	}
	if cfg.Sampling.TopK == nil || c.IsSet("top-k") {
		sc.TopK = int(v.topK)
	}
	if cfg.Sampling.TopP == nil || c.IsSet("top-p") {
		sc.TopP = float32(v.topP)
	}
	if cfg.Sampling.MinP == nil || c.IsSet("min-p") {
		sc.MinP = float32(v.minP)
	}
	if cfg.Sampling.RepeatPenalty == nil || c.IsSet("repeat-penalty") {
		sc.RepeatPenalty = float32(v.repeatPenalty)
	}
	if cfg.Sampling.RepeatLastN == nil || c.IsSet("repeat-last-n") {
		sc.RepeatLastN = int(v.repeatLastN)
	}
	return sc, nil
}
