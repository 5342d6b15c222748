package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/gpunexus/gpuf/internal/kvcache"
	"github.com/gpunexus/gpuf/internal/tensor"
)

// ForwardToken runs one autoregressive step for the provided token id.
// It returns a logits slice owned by the model (overwritten on next call).
// A full context returns an error wrapping kvcache.ErrContextFull.
func (m *Instance) ForwardToken(tok int) ([]float32, error) {
	if m.cache == nil {
		return nil, errors.New("model: instance closed")
	}
	if tok < 0 || tok >= m.cfg.VocabSize {
		return nil, fmt.Errorf("token id out of range: %d", tok)
	}
	if m.pos >= m.cache.Size() {
		return nil, fmt.Errorf("%w: %d >= %d", kvcache.ErrContextFull, m.pos, m.cache.Size())
	}

	s := &m.scratch
	x := s.x
	copy(x, m.embed.Row(tok))

	for i := range m.layers {
		l := &m.layers[i]

		// Attention block: pre-norm, attention, residual.
		tensor.RMSNorm(s.xb, x, l.attnNorm, m.cfg.NormEps)
		if err := m.attention(i, l); err != nil {
			return nil, fmt.Errorf("layer %d attention: %w", i, err)
		}
		tensor.Add(x, s.xb2)

		// FFN block: pre-norm, SiLU MLP, residual.
		tensor.RMSNorm(s.xb, x, l.ffnNorm, m.cfg.NormEps)
		if err := l.dev.MatVec(s.hb, &l.up, s.xb); err != nil {
			return nil, fmt.Errorf("layer %d ffn_up: %w", i, err)
		}
		tensor.SiLU(s.hb2, s.hb)
		if err := l.dev.MatVec(s.xb2, &l.down, s.hb2); err != nil {
			return nil, fmt.Errorf("layer %d ffn_down: %w", i, err)
		}
		tensor.Add(x, s.xb2)
	}

	tensor.RMSNorm(s.xb, x, m.outNorm, m.cfg.NormEps)
	tensor.MatVec(s.logits, &m.output, s.xb)
	for _, v := range s.logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, errors.New("model: non-finite logits")
		}
	}

	m.pos++
	return s.logits, nil
}

// attention reads s.xb and leaves the projected output in s.xb2.
func (m *Instance) attention(li int, l *layer) error {
	s := &m.scratch
	for _, p := range []struct {
		dst []float32
		w   *tensor.Mat
	}{{s.q, &l.q}, {s.k, &l.k}, {s.v, &l.v}} {
		if err := l.dev.MatVec(p.dst, p.w, s.xb); err != nil {
			return err
		}
	}
	m.rope.Apply(s.q, m.cfg.Heads, m.pos)
	m.rope.Apply(s.k, m.cfg.Heads, m.pos)
	if err := m.cache.Store(li, m.pos, s.k, s.v); err != nil {
		return err
	}

	runAttnHeads(&attnContext{
		q:       s.q,
		cache:   m.cache,
		layer:   li,
		out:     s.att,
		pos:     m.pos,
		headDim: m.cfg.HeadDim,
		nHead:   m.cfg.Heads,
		scale:   float32(1.0 / math.Sqrt(float64(m.cfg.HeadDim))),
	}, s.scores[:m.pos+1])

	return l.dev.MatVec(s.xb2, &l.o, s.att)
}

type attnContext struct {
	q     []float32
	cache *kvcache.Cache
	layer int
	out   []float32

	pos     int
	headDim int
	nHead   int
	scale   float32
}

// runAttnHeads computes causal multi-head attention over positions 0..pos.
// scores must hold pos+1 values.
func runAttnHeads(ctx *attnContext, scores []float32) {
	for h := 0; h < ctx.nHead; h++ {
		base := h * ctx.headDim
		q := ctx.q[base : base+ctx.headDim]
		for t := 0; t <= ctx.pos; t++ {
			k := ctx.cache.Key(ctx.layer, t)[base : base+ctx.headDim]
			scores[t] = tensor.Dot(q, k) * ctx.scale
		}
		tensor.Softmax(scores)

		out := ctx.out[base : base+ctx.headDim]
		clear(out)
		for t := 0; t <= ctx.pos; t++ {
			v := ctx.cache.Value(ctx.layer, t)[base : base+ctx.headDim]
			w := scores[t]
			for d := range out {
				out[d] += w * v[d]
			}
		}
	}
}
