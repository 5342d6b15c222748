package model

import (
	"errors"
	"fmt"

	"github.com/gpunexus/gpuf/pkg/gmf"
)

// Arch is the only architecture string this package loads.
const Arch = "gpuf-mini"

// ErrInvalidModel marks model files whose metadata or tensors cannot be used.
var ErrInvalidModel = errors.New("model: invalid model")

// Config is the validated shape of a decoder-only model.
type Config struct {
	VocabSize  int
	Dim        int
	HiddenDim  int
	Layers     int
	Heads      int
	HeadDim    int
	MaxContext int
	NormEps    float32
	RopeTheta  float64
}

// ConfigFromInfo validates mi and derives the runtime config.
func ConfigFromInfo(mi gmf.ModelInfo) (Config, error) {
	if mi.Arch != Arch {
		return Config{}, fmt.Errorf("%w: unsupported arch %q", ErrInvalidModel, mi.Arch)
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"vocab_size", mi.VocabSize},
		{"dim", mi.Dim},
		{"hidden_dim", mi.HiddenDim},
		{"layers", mi.Layers},
		{"heads", mi.Heads},
	} {
		if f.v <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidModel, f.name, f.v)
		}
	}
	if mi.Dim%mi.Heads != 0 {
		return Config{}, fmt.Errorf("%w: dim %d not divisible by heads %d", ErrInvalidModel, mi.Dim, mi.Heads)
	}
	headDim := mi.Dim / mi.Heads
	if headDim%2 != 0 {
		return Config{}, fmt.Errorf("%w: head dim %d must be even", ErrInvalidModel, headDim)
	}

	cfg := Config{
		VocabSize:  mi.VocabSize,
		Dim:        mi.Dim,
		HiddenDim:  mi.HiddenDim,
		Layers:     mi.Layers,
		Heads:      mi.Heads,
		HeadDim:    headDim,
		MaxContext: mi.MaxContext,
		NormEps:    mi.NormEps,
		RopeTheta:  float64(mi.RopeTheta),
	}
	if cfg.NormEps <= 0 {
		cfg.NormEps = 1e-5
	}
	if cfg.RopeTheta <= 0 {
		cfg.RopeTheta = 10000
	}
	return cfg, nil
}

// Tensor names used by the gpuf-mini layout.
const (
	TokenEmbedding = "token_embd"
	OutputNorm     = "output_norm"
	OutputProj     = "output"
)

func blockName(layer int, part string) string {
	return fmt.Sprintf("blk.%d.%s", layer, part)
}
