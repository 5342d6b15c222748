// Package logits turns a logits vector into the next token id.
package logits

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Mode selects how the next token is chosen.
type Mode string

const (
	// Greedy always picks the highest logit.
	Greedy Mode = "greedy"
	// Sample draws from the filtered, temperature scaled distribution.
	Sample Mode = "sample"
)

// ParseMode accepts "", "greedy" and "sample" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Greedy:
		return Greedy, nil
	case Sample:
		return Sample, nil
	}
	return "", fmt.Errorf("unknown sampling mode %q (expected greedy or sample)", s)
}

const (
	// DefaultTemperature applies in Sample mode when no temperature is set.
	DefaultTemperature = 0.8
	DefaultTopK        = 40
	DefaultRepeatLastN = 64
)

// SamplerConfig configures a Sampler. The zero value is greedy decoding.
// A negative Seed draws a fresh seed each time a sampler is built.
type SamplerConfig struct {
	Mode          Mode
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	MinP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

// withDefaults fills unset fields. Greedy configs keep their temperature
// at 1 since it never applies.
func (c SamplerConfig) withDefaults() SamplerConfig {
	if c.Mode == "" {
		c.Mode = Greedy
	}
	if c.Seed < 0 {
		c.Seed = time.Now().UnixNano() & math.MaxInt64
	}
	if c.Temperature <= 0 {
		c.Temperature = 1
		if c.Mode == Sample {
			c.Temperature = DefaultTemperature
		}
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.TopP <= 0 || c.TopP > 1 {
		c.TopP = 1
	}
	if c.RepeatPenalty <= 0 {
		c.RepeatPenalty = 1
	}
	if c.RepeatLastN <= 0 {
		c.RepeatLastN = DefaultRepeatLastN
	}
	return c
}

// Sampler is not safe for concurrent use; it reuses scratch buffers
// between calls.
type Sampler struct {
	cfg  SamplerConfig
	rng  *rand.Rand
	cand []candidate
	seen penaltySet
}

func NewSampler(cfg SamplerConfig) *Sampler {
	cfg = cfg.withDefaults()
	return &Sampler{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Greedy reports whether the sampler always returns the argmax of the
// logits it is given.
func (s *Sampler) Greedy() bool {
	return s.cfg.Mode != Sample && s.cfg.RepeatPenalty <= 1
}

// Config returns the effective configuration after defaults were applied.
func (s *Sampler) Config() SamplerConfig { return s.cfg }

// Sample picks the next token id. recent holds previously seen ids for the
// repetition penalty; ids in excludePenalty are never penalized. logits is
// modified in place by the penalty.
//
// In Sample mode the candidates go through top-k, softmax at the configured
// temperature, min-p and top-p before one is drawn. Ties resolve to the
// lowest id.
func (s *Sampler) Sample(logits []float32, recent []int, excludePenalty ...int) int {
	if s.cfg.RepeatPenalty > 1 && len(recent) > 0 {
		start := max(len(recent)-s.cfg.RepeatLastN, 0)
		s.seen.apply(logits, recent[start:], excludePenalty, s.cfg.RepeatPenalty)
	}

	if s.cfg.Mode != Sample || (s.cfg.TopK == 1 && s.cfg.TopP >= 1 && s.cfg.Temperature == 1) {
		return argmax(logits)
	}

	cand := s.shortlist(logits, min(s.cfg.TopK, len(logits)), 1/s.cfg.Temperature)
	if len(cand) == 0 {
		return 0
	}
	if !softmax(cand) {
		return cand[0].id
	}
	if s.cfg.MinP > 0 {
		cand = minP(cand, float64(s.cfg.MinP))
	}
	if s.cfg.TopP < 1 {
		cand = topP(cand, s.cfg.TopP)
	}
	return draw(cand, s.rng.Float64())
}

// argmax returns the index of the first maximum. It panics on an empty
// slice.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
