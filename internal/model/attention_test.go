package model

import (
	"math"
	"testing"

	"github.com/gpunexus/gpuf/internal/kvcache"
)

func fillTestData(x []float32, scale float32) {
	for i := range x {
		x[i] = float32(math.Sin(float64(i+1))) * scale
	}
}

func TestRunAttnHeadsMatchesReference(t *testing.T) {
	t.Parallel()

	const (
		nHead   = 4
		headDim = 8
		pos     = 5
	)
	dim := nHead * headDim
	cache, err := kvcache.New(1, pos+1, dim)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	k := make([]float32, dim)
	v := make([]float32, dim)
	for p := 0; p <= pos; p++ {
		fillTestData(k, 0.2*float32(p+1))
		fillTestData(v, 0.3/float32(p+1))
		if err := cache.Store(0, p, k, v); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	q := make([]float32, dim)
	fillTestData(q, 0.1)

	ctx := attnContext{
		q:       q,
		cache:   cache,
		out:     make([]float32, dim),
		pos:     pos,
		headDim: headDim,
		nHead:   nHead,
		scale:   float32(1.0 / math.Sqrt(float64(headDim))),
	}
	runAttnHeads(&ctx, make([]float32, pos+1))

	want := referenceAttention(&ctx)
	for i := range want {
		if d := math.Abs(float64(ctx.out[i] - want[i])); d > 1e-5 {
			t.Fatalf("out[%d] = %v, want %v", i, ctx.out[i], want[i])
		}
	}
}

func TestRunAttnHeadsSinglePositionCopiesValue(t *testing.T) {
	t.Parallel()

	cache, err := kvcache.New(1, 1, 4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	v := []float32{1, -2, 3, -4}
	if err := cache.Store(0, 0, []float32{0.5, 0.5, 0.5, 0.5}, v); err != nil {
		t.Fatalf("store: %v", err)
	}
	ctx := attnContext{q: []float32{1, 2, 3, 4}, cache: cache, out: make([]float32, 4), headDim: 2, nHead: 2, scale: 1}
	runAttnHeads(&ctx, make([]float32, 1))
	for i := range v {
		if ctx.out[i] != v[i] {
			t.Fatalf("out = %v, want %v", ctx.out, v)
		}
	}
}

func referenceAttention(ctx *attnContext) []float32 {
	out := make([]float32, len(ctx.out))
	for h := 0; h < ctx.nHead; h++ {
		base := h * ctx.headDim
		scores := make([]float64, ctx.pos+1)
		maxv := math.Inf(-1)
		for t := 0; t <= ctx.pos; t++ {
			var s float64
			k := ctx.cache.Key(ctx.layer, t)
			for d := 0; d < ctx.headDim; d++ {
				s += float64(ctx.q[base+d]) * float64(k[base+d])
			}
			s *= float64(ctx.scale)
			scores[t] = s
			maxv = math.Max(maxv, s)
		}
		var sum float64
		for t := range scores {
			scores[t] = math.Exp(scores[t] - maxv)
			sum += scores[t]
		}
		for t := range scores {
			v := ctx.cache.Value(ctx.layer, t)
			for d := 0; d < ctx.headDim; d++ {
				out[base+d] += float32(scores[t] / sum * float64(v[base+d]))
			}
		}
	}
	return out
}
