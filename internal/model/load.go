package model

import (
	"errors"
	"fmt"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/kvcache"
	"github.com/gpunexus/gpuf/internal/modelstore"
	"github.com/gpunexus/gpuf/internal/tensor"
)

// LoadOptions controls how weights are placed and how much context is held.
type LoadOptions struct {
	ContextSize int
	// Device runs the first Offload layers. Nil or a non-accelerated device
	// means everything stays on the CPU.
	Device  backend.Device
	Offload int
}

type layer struct {
	attnNorm   []float32
	q, k, v, o tensor.Mat
	ffnNorm    []float32
	up, down   tensor.Mat
	dev        backend.Device
}

type scratch struct {
	x, xb, xb2 []float32
	q, k, v    []float32
	att        []float32
	scores     []float32
	hb, hb2    []float32
	logits     []float32
}

// Instance is a loaded gpuf-mini decoder with its own KV cache.
type Instance struct {
	cfg Config

	embed   tensor.Mat
	layers  []layer
	outNorm []float32
	output  tensor.Mat

	cache   *kvcache.Cache
	pos     int
	rope    *tensor.RoPE
	offload int

	scratch scratch
}

// Load decodes every tensor from f and allocates a KV cache for
// opts.ContextSize positions. f may be closed once Load returns.
func Load(f *modelstore.File, opts LoadOptions) (*Instance, error) {
	if f == nil {
		return nil, errors.New("model: nil file")
	}
	cfg, err := ConfigFromInfo(f.Info())
	if err != nil {
		return nil, err
	}
	if opts.ContextSize <= 0 {
		return nil, fmt.Errorf("model: context size must be positive, got %d", opts.ContextSize)
	}

	m := &Instance{cfg: cfg, rope: tensor.NewRoPE(cfg.HeadDim, cfg.RopeTheta)}
	ld := loader{f: f}

	m.embed = ld.mat(TokenEmbedding, cfg.VocabSize, cfg.Dim)
	m.outNorm = ld.vec(OutputNorm, cfg.Dim)
	m.output = ld.mat(OutputProj, cfg.VocabSize, cfg.Dim)

	cpu := backend.NewCPU()
	offload := 0
	if opts.Device != nil && opts.Device.Accelerated() {
		offload = min(max(opts.Offload, 0), cfg.Layers)
	}
	m.offload = offload

	m.layers = make([]layer, cfg.Layers)
	for i := range m.layers {
		l := &m.layers[i]
		l.attnNorm = ld.vec(blockName(i, "attn_norm"), cfg.Dim)
		l.q = ld.mat(blockName(i, "attn_q"), cfg.Dim, cfg.Dim)
		l.k = ld.mat(blockName(i, "attn_k"), cfg.Dim, cfg.Dim)
		l.v = ld.mat(blockName(i, "attn_v"), cfg.Dim, cfg.Dim)
		l.o = ld.mat(blockName(i, "attn_o"), cfg.Dim, cfg.Dim)
		l.ffnNorm = ld.vec(blockName(i, "ffn_norm"), cfg.Dim)
		l.up = ld.mat(blockName(i, "ffn_up"), cfg.HiddenDim, cfg.Dim)
		l.down = ld.mat(blockName(i, "ffn_down"), cfg.Dim, cfg.HiddenDim)
		l.dev = cpu
		if i < offload {
			l.dev = opts.Device
		}
	}
	if ld.err != nil {
		return nil, ld.err
	}

	cache, err := kvcache.New(cfg.Layers, opts.ContextSize, cfg.Dim)
	if err != nil {
		return nil, err
	}
	m.cache = cache

	m.scratch = scratch{
		x:      make([]float32, cfg.Dim),
		xb:     make([]float32, cfg.Dim),
		xb2:    make([]float32, cfg.Dim),
		q:      make([]float32, cfg.Dim),
		k:      make([]float32, cfg.Dim),
		v:      make([]float32, cfg.Dim),
		att:    make([]float32, cfg.Dim),
		scores: make([]float32, opts.ContextSize),
		hb:     make([]float32, cfg.HiddenDim),
		hb2:    make([]float32, cfg.HiddenDim),
		logits: make([]float32, cfg.VocabSize),
	}
	return m, nil
}

// loader keeps the first error; later reads are no-ops.
type loader struct {
	f   *modelstore.File
	err error
}

func (ld *loader) read(name string, shape ...int) []float32 {
	if ld.err != nil {
		return nil
	}
	data, info, err := ld.f.ReadTensorF32(name)
	if err != nil {
		if errors.Is(err, modelstore.ErrTensorNotFound) {
			ld.err = fmt.Errorf("%w: %v", ErrInvalidModel, err)
		} else {
			ld.err = err
		}
		return nil
	}
	if !sameShape(info.Shape, shape) {
		ld.err = fmt.Errorf("%w: tensor %s has shape %v, want %v", ErrInvalidModel, name, info.Shape, shape)
		return nil
	}
	return data
}

func (ld *loader) vec(name string, n int) []float32 {
	return ld.read(name, n)
}

func (ld *loader) mat(name string, r, c int) tensor.Mat {
	data := ld.read(name, r, c)
	if data == nil {
		return tensor.Mat{}
	}
	m, err := tensor.NewMatFromData(r, c, data)
	if err != nil && ld.err == nil {
		ld.err = fmt.Errorf("%w: tensor %s: %v", ErrInvalidModel, name, err)
	}
	return m
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KVBytes is the cache size Load will allocate for cfg at contextSize.
func KVBytes(cfg Config, contextSize int) int64 {
	return kvcache.Bytes(cfg.Layers, contextSize, cfg.Dim)
}

func (m *Instance) Config() Config { return m.cfg }

// OffloadedLayers is the number of layers running on the accelerator.
func (m *Instance) OffloadedLayers() int { return m.offload }

// KVBytes returns the size of the allocated cache.
func (m *Instance) KVBytes() int64 {
	if m.cache == nil {
		return 0
	}
	return m.cache.Bytes()
}

func (m *Instance) Pos() int { return m.pos }

func (m *Instance) ContextSize() int {
	if m.cache == nil {
		return 0
	}
	return m.cache.Size()
}

func (m *Instance) Reset() {
	m.pos = 0
	if m.cache != nil {
		m.cache.Reset()
	}
}

// Close releases the cache. The instance cannot be used afterwards.
func (m *Instance) Close() {
	if m.cache != nil {
		m.cache.Free()
		m.cache = nil
	}
	m.layers = nil
}
