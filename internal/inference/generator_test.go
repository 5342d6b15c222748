package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gpunexus/gpuf/internal/kvcache"
	"github.com/gpunexus/gpuf/internal/logits"
	"github.com/gpunexus/gpuf/internal/tokenizer"
)

const (
	tokA    = 3
	tokB    = 4
	tokC    = 5
	tokByte = 6
)

func testVocab(t *testing.T) *tokenizer.Vocab {
	t.Helper()
	tokens := []string{"<unk>", "<s>", "</s>", "a", "b", "c"}
	for b := 0; b < 256; b++ {
		tokens = append(tokens, tokenizer.ByteToken(byte(b)))
	}
	v, err := tokenizer.NewVocab(tokenizer.Config{
		AddBOS: true, BOSTokenID: 1, EOSTokenID: 2, UNKTokenID: 0, Tokens: tokens,
	})
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	return v
}

// scriptedModel predicts plan[p] after consuming the token at position p.
type scriptedModel struct {
	plan     map[int]int
	fallback int
	vocab    int
	ctx      int

	pos      int
	forwards int
	resets   int
	panicAt  int
	seen     []int
}

func newScripted(ctx int, plan map[int]int) *scriptedModel {
	return &scriptedModel{plan: plan, fallback: tokC, vocab: 6 + 256, ctx: ctx, panicAt: -1}
}

func (m *scriptedModel) ForwardToken(id int) ([]float32, error) {
	if m.pos == m.panicAt {
		panic("boom")
	}
	if m.pos >= m.ctx {
		return nil, fmt.Errorf("%w: %d", kvcache.ErrContextFull, m.pos)
	}
	m.forwards++
	m.seen = append(m.seen, id)
	next, ok := m.plan[m.pos]
	if !ok {
		next = m.fallback
	}
	m.pos++
	out := make([]float32, m.vocab)
	out[next] = 10
	return out, nil
}

func (m *scriptedModel) Reset() {
	m.resets++
	m.pos = 0
	m.seen = m.seen[:0]
}

func (m *scriptedModel) Pos() int         { return m.pos }
func (m *scriptedModel) ContextSize() int { return m.ctx }

type countingTokenizer struct {
	*tokenizer.Vocab
	encodes int
}

func (c *countingTokenizer) Encode(s string) ([]int, error) {
	c.encodes++
	return c.Vocab.Encode(s)
}

func newGenerator(t *testing.T, m *scriptedModel) (*Generator, *countingTokenizer) {
	t.Helper()
	tok := &countingTokenizer{Vocab: testVocab(t)}
	return &Generator{
		Model:      m,
		Sampler:    logits.NewSampler(logits.SamplerConfig{}),
		Tokenizer:  tok,
		StopTokens: BuildStopTokens(tok.Config()),
		StartToken: tok.Config().StartToken(),
	}, tok
}

func TestGenerateZeroTokensTouchesNothing(t *testing.T) {
	t.Parallel()

	m := newScripted(16, nil)
	g, tok := newGenerator(t, m)
	res, err := g.Generate(context.Background(), "abc", 0, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "" || len(res.Tokens) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if m.forwards != 0 || m.resets != 0 || tok.encodes != 0 {
		t.Fatalf("model or tokenizer touched: forwards=%d resets=%d encodes=%d", m.forwards, m.resets, tok.encodes)
	}
}

func TestGenerateStopsAtEOS(t *testing.T) {
	t.Parallel()

	m := newScripted(16, map[int]int{1: tokA, 2: tokB, 3: 2})
	g, _ := newGenerator(t, m)
	res, err := g.Generate(context.Background(), "c", 10, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "ab" {
		t.Fatalf("text = %q, want %q", res.Text, "ab")
	}
	if res.FinishReason != FinishStop {
		t.Fatalf("finish = %s, want stop", res.FinishReason)
	}
	if res.PromptTokens != 2 {
		t.Fatalf("prompt tokens = %d, want 2 (BOS + c)", res.PromptTokens)
	}
	if m.seen[0] != 1 {
		t.Fatalf("BOS not prepended: %v", m.seen)
	}
}

func TestGenerateLengthLimit(t *testing.T) {
	t.Parallel()

	m := newScripted(16, map[int]int{1: tokA, 2: tokB, 3: tokC})
	g, _ := newGenerator(t, m)
	res, err := g.Generate(context.Background(), "c", 2, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Tokens) != 2 || res.Text != "ab" {
		t.Fatalf("got %v %q", res.Tokens, res.Text)
	}
	if res.FinishReason != FinishLength {
		t.Fatalf("finish = %s, want length", res.FinishReason)
	}
	// Two prompt tokens plus one generated token; the last one is never fed.
	if m.forwards != 3 {
		t.Fatalf("forwards = %d, want 3", m.forwards)
	}
}

func TestGenerateEmptyPromptUsesStartToken(t *testing.T) {
	t.Parallel()

	m := newScripted(16, map[int]int{0: tokA})
	g, _ := newGenerator(t, m)
	g.Tokenizer = &countingTokenizer{Vocab: mustNoBOS(t)}
	res, err := g.Generate(context.Background(), "", 1, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(m.seen) != 1 || m.seen[0] != g.StartToken {
		t.Fatalf("seen = %v, want [%d]", m.seen, g.StartToken)
	}
	if res.Text != "a" {
		t.Fatalf("text = %q", res.Text)
	}
}

func mustNoBOS(t *testing.T) *tokenizer.Vocab {
	t.Helper()
	cfg := testVocab(t).Config()
	cfg.AddBOS = false
	v, err := tokenizer.NewVocab(cfg)
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	return v
}

func TestGeneratePromptTooLong(t *testing.T) {
	t.Parallel()

	m := newScripted(3, nil)
	g, _ := newGenerator(t, m)
	_, err := g.Generate(context.Background(), "abcabc", 1, nil)
	if !errors.Is(err, ErrPromptTooLong) {
		t.Fatalf("expected ErrPromptTooLong, got %v", err)
	}
	if m.forwards != 0 {
		t.Fatalf("model decoded %d tokens before rejecting", m.forwards)
	}
}

func TestGenerateContextOverflow(t *testing.T) {
	t.Parallel()

	m := newScripted(3, nil)
	g, _ := newGenerator(t, m)
	res, err := g.Generate(context.Background(), "ab", 5, nil)
	if !errors.Is(err, kvcache.ErrContextFull) || !errors.Is(err, ErrForward) {
		t.Fatalf("expected context full forward error, got %v", err)
	}
	if res.Text != "" || res.Tokens != nil {
		t.Fatalf("partial result returned: %+v", res)
	}
}

func TestGenerateConvertsForwardPanicToError(t *testing.T) {
	t.Parallel()

	m := newScripted(16, nil)
	m.panicAt = 2
	g, _ := newGenerator(t, m)
	_, err := g.Generate(context.Background(), "a", 4, nil)
	if !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward, got %v", err)
	}
	if !strings.Contains(err.Error(), "panic in ForwardToken") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateConvertsSamplerPanicToError(t *testing.T) {
	t.Parallel()

	g, _ := newGenerator(t, newScripted(16, nil))
	g.Sampler = nil
	_, err := g.Generate(context.Background(), "a", 1, nil)
	if err == nil || !strings.Contains(err.Error(), "panic in Sample") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	t.Parallel()

	g, _ := newGenerator(t, newScripted(16, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, "a", 3, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateStreamJoinsSplitRunes(t *testing.T) {
	t.Parallel()

	// "é" is 0xC3 0xA9, emitted as two byte tokens.
	m := newScripted(16, map[int]int{1: tokA, 2: tokByte + 0xC3, 3: tokByte + 0xA9, 4: tokB, 5: 2})
	g, _ := newGenerator(t, m)
	var pieces []string
	res, err := g.Generate(context.Background(), "c", 10, func(s string) { pieces = append(pieces, s) })
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "aéb" {
		t.Fatalf("text = %q", res.Text)
	}
	if got := strings.Join(pieces, ""); got != res.Text {
		t.Fatalf("stream = %q, text = %q", got, res.Text)
	}
	for _, p := range pieces {
		if strings.ContainsRune(p, '�') {
			t.Fatalf("stream emitted a broken rune: %q", pieces)
		}
	}
}

func TestGenerateSampledIsReproducible(t *testing.T) {
	t.Parallel()

	run := func() []int {
		m := newScripted(64, nil)
		g, _ := newGenerator(t, m)
		g.Sampler = logits.NewSampler(logits.SamplerConfig{Mode: logits.Sample, Seed: 11, Temperature: 50})
		res, err := g.Generate(context.Background(), "a", 8, nil)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		return res.Tokens
	}
	a, b := run(), run()
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Fatalf("same seed produced %v and %v", a, b)
	}
}
