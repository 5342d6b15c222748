package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/gpunexus/gpuf/internal/tensor"
	"github.com/gpunexus/gpuf/internal/tokenizer"
	"github.com/gpunexus/gpuf/pkg/gmf"
)

// SynthOptions describes a randomly initialised gpuf-mini model. Zero
// fields take the defaults in DefaultSynthOptions.
type SynthOptions struct {
	Name       string
	Dim        int
	HiddenDim  int
	Layers     int
	Heads      int
	MaxContext int
	Seed       int64
	DType      gmf.DType
	// Words are extra whole-word vocabulary pieces on top of the byte tokens.
	Words []string
}

var defaultWords = []string{
	" the", " a", " and", " of", " to", " in", " is", " it", " that", " was",
	"Hello", " hello", " world", ",", ".", "!", "?", " ", "\n",
	"e", "t", "o", "n", "s", "r", "i", "l", "d", "h",
}

// DefaultSynthOptions are small enough to load in a unit test.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Name:       "synthetic",
		Dim:        32,
		HiddenDim:  64,
		Layers:     2,
		Heads:      4,
		MaxContext: 4096,
		Seed:       1,
		DType:      gmf.DTypeF32,
		Words:      defaultWords,
	}
}

// SynthVocab builds the vocabulary Synthesize writes: <unk>, <s>, </s>, the
// 256 byte tokens, then words.
func SynthVocab(words []string) gmf.Vocab {
	tokens := make([]string, 0, 3+256+len(words))
	tokens = append(tokens, "<unk>", "<s>", "</s>")
	for b := 0; b < 256; b++ {
		tokens = append(tokens, tokenizer.ByteToken(byte(b)))
	}
	tokens = append(tokens, words...)
	return gmf.Vocab{Tokens: tokens, UNK: 0, BOS: 1, EOS: 2, AddBOS: true}
}

// Synthesize writes a random model to path and returns its info. Output
// rows of control tokens are zero so greedy decoding rarely stops early.
func Synthesize(path string, opts SynthOptions) (gmf.ModelInfo, error) {
	opts = withSynthDefaults(opts)
	vocab := SynthVocab(opts.Words)
	info := gmf.ModelInfo{
		Arch:       Arch,
		Name:       opts.Name,
		VocabSize:  len(vocab.Tokens),
		Dim:        opts.Dim,
		HiddenDim:  opts.HiddenDim,
		Layers:     opts.Layers,
		Heads:      opts.Heads,
		MaxContext: opts.MaxContext,
		NormEps:    1e-5,
		RopeTheta:  10000,
	}
	if _, err := ConfigFromInfo(info); err != nil {
		return gmf.ModelInfo{}, err
	}

	var pack gmf.TensorPack
	seed := opts.Seed
	add := func(name string, r, c int, scale float32) error {
		seed++
		var m tensor.Mat
		var shape []uint64
		if c == 0 {
			m = tensor.NewMat(1, r)
			shape = []uint64{uint64(r)}
			for i := range m.Data {
				m.Data[i] = 1
			}
		} else {
			m = tensor.NewMat(r, c)
			shape = []uint64{uint64(r), uint64(c)}
			tensor.FillRand(&m, seed, scale)
		}
		if name == OutputProj {
			for _, id := range []int{vocab.UNK, vocab.BOS, vocab.EOS} {
				clear(m.Row(id))
			}
		}
		return pack.Add(name, opts.DType, shape, encodeF32(m.Data, opts.DType))
	}

	dimScale := float32(2 / math.Sqrt(float64(opts.Dim)))
	hidScale := float32(2 / math.Sqrt(float64(opts.HiddenDim)))
	steps := []synthTensor{
		{TokenEmbedding, info.VocabSize, opts.Dim, 1},
		{OutputNorm, opts.Dim, 0, 0},
		{OutputProj, info.VocabSize, opts.Dim, dimScale},
	}
	for i := 0; i < opts.Layers; i++ {
		steps = append(steps,
			synthTensor{blockName(i, "attn_norm"), opts.Dim, 0, 0},
			synthTensor{blockName(i, "attn_q"), opts.Dim, opts.Dim, dimScale},
			synthTensor{blockName(i, "attn_k"), opts.Dim, opts.Dim, dimScale},
			synthTensor{blockName(i, "attn_v"), opts.Dim, opts.Dim, dimScale},
			synthTensor{blockName(i, "attn_o"), opts.Dim, opts.Dim, dimScale},
			synthTensor{blockName(i, "ffn_norm"), opts.Dim, 0, 0},
			synthTensor{blockName(i, "ffn_up"), opts.HiddenDim, opts.Dim, dimScale},
			synthTensor{blockName(i, "ffn_down"), opts.Dim, opts.HiddenDim, hidScale},
		)
	}
	for _, s := range steps {
		if err := add(s.name, s.r, s.c, s.scale); err != nil {
			return gmf.ModelInfo{}, err
		}
	}

	infoJSON, err := gmf.EncodeModelInfo(info)
	if err != nil {
		return gmf.ModelInfo{}, err
	}
	vocabJSON, err := gmf.EncodeVocab(vocab)
	if err != nil {
		return gmf.ModelInfo{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return gmf.ModelInfo{}, err
	}
	defer func() { _ = f.Close() }()

	w, err := gmf.NewWriter(f)
	if err != nil {
		return gmf.ModelInfo{}, err
	}
	if err := w.WriteSection(gmf.SectionModelInfo, 1, infoJSON); err != nil {
		return gmf.ModelInfo{}, err
	}
	if err := w.WriteSection(gmf.SectionVocab, 1, vocabJSON); err != nil {
		return gmf.ModelInfo{}, err
	}
	if err := pack.WriteTo(w); err != nil {
		return gmf.ModelInfo{}, err
	}
	if err := w.Finalise(); err != nil {
		return gmf.ModelInfo{}, fmt.Errorf("finalise %s: %w", path, err)
	}
	return info, f.Close()
}

// synthTensor is a matrix (c > 0) or a norm vector of ones (c == 0).
type synthTensor struct {
	name  string
	r, c  int
	scale float32
}

func withSynthDefaults(o SynthOptions) SynthOptions {
	d := DefaultSynthOptions()
	if o.Name == "" {
		o.Name = d.Name
	}
	if o.Dim <= 0 {
		o.Dim = d.Dim
	}
	if o.HiddenDim <= 0 {
		o.HiddenDim = d.HiddenDim
	}
	if o.Layers <= 0 {
		o.Layers = d.Layers
	}
	if o.Heads <= 0 {
		o.Heads = d.Heads
	}
	if o.MaxContext <= 0 {
		o.MaxContext = d.MaxContext
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	if o.Words == nil {
		o.Words = d.Words
	}
	return o
}

func encodeF32(data []float32, dt gmf.DType) []byte {
	switch dt {
	case gmf.DTypeF16:
		out := make([]byte, len(data)*2)
		for i, v := range data {
			binary.LittleEndian.PutUint16(out[i*2:], f32ToF16(v))
		}
		return out
	default:
		out := make([]byte, len(data)*4)
		for i, v := range data {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
		return out
	}
}

// f32ToF16 rounds to nearest-even. Values beyond the half range saturate to
// infinity; values below it flush to (signed) zero.
func f32ToF16(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xff) - 127 + 15
	frac := b & 0x7fffff

	switch {
	case b&0x7fffffff == 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint32(14 - exp)
		half := frac >> shift
		rem := frac & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	}
	half := uint32(exp)<<10 | frac>>13
	rem := frac & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | uint16(half)
}
