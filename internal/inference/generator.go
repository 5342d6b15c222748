package inference

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gpunexus/gpuf/internal/logits"
	"github.com/gpunexus/gpuf/internal/model"
	"github.com/gpunexus/gpuf/internal/tokenizer"
)

// pieceAppender is implemented by tokenizers that can expose raw token bytes.
type pieceAppender interface {
	AppendPiece(dst []byte, id int) ([]byte, error)
}

// Generator runs the decode loop of a single request against one model.
// It is not safe for concurrent use.
type Generator struct {
	Model      model.Model
	Sampler    *logits.Sampler
	Tokenizer  tokenizer.Tokenizer
	StopTokens []int
	// StartToken seeds generation when the prompt encodes to nothing.
	StartToken int
}

// Generate encodes prompt and runs Run. maxTokens <= 0 returns an empty
// result without touching the tokenizer or the model.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int, stream StreamFunc) (Result, error) {
	if maxTokens <= 0 {
		return Result{FinishReason: FinishLength}, nil
	}
	ids, err := safeEncode(g.Tokenizer, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return g.Run(ctx, ids, maxTokens, stream)
}

// Run resets the model, prefills promptIDs and samples up to maxTokens new
// tokens. A stop token ends the run and is not part of the output. On error
// the returned Result is empty.
func (g *Generator) Run(ctx context.Context, promptIDs []int, maxTokens int, stream StreamFunc) (Result, error) {
	if maxTokens <= 0 {
		return Result{FinishReason: FinishLength}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(promptIDs) == 0 {
		promptIDs = []int{g.StartToken}
	}
	if n := g.Model.ContextSize(); len(promptIDs) > n {
		return Result{}, fmt.Errorf("%w: %d tokens, context %d", ErrPromptTooLong, len(promptIDs), n)
	}

	if err := safeReset(g.Model); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrForward, err)
	}

	start := time.Now()
	var logitsVec []float32
	var err error
	for i, id := range promptIDs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		logitsVec, err = safeForward(g.Model, id)
		if err != nil {
			return Result{}, fmt.Errorf("%w: prefill token %d: %w", ErrForward, i, err)
		}
	}
	var stats Stats
	stats.PrefillDuration = time.Since(start)

	appender, _ := g.Tokenizer.(pieceAppender)
	var ps pieceStream
	var piece []byte

	recent := slices.Clone(promptIDs)
	out := make([]int, 0, min(maxTokens, 256))
	finish := FinishLength
	genStart := time.Now()
	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		next, err := safeSample(g.Sampler, logitsVec, recent, g.StopTokens)
		if err != nil {
			return Result{}, fmt.Errorf("%w: step %d: %w", ErrForward, i, err)
		}
		if slices.Contains(g.StopTokens, next) {
			finish = FinishStop
			break
		}
		out = append(out, next)
		recent = append(recent, next)
		stats.TokensGenerated++

		if stream != nil {
			if appender != nil {
				if piece, err = appender.AppendPiece(piece[:0], next); err == nil {
					if s := ps.push(piece); s != "" {
						stream(s)
					}
				}
			} else if s, err := g.Tokenizer.Decode([]int{next}); err == nil && s != "" {
				stream(s)
			}
		}

		if i+1 == maxTokens {
			break
		}
		logitsVec, err = safeForward(g.Model, next)
		if err != nil {
			return Result{}, fmt.Errorf("%w: step %d: %w", ErrForward, i, err)
		}
	}
	if stream != nil {
		if s := ps.flush(); s != "" {
			stream(s)
		}
	}

	stats.Duration = time.Since(genStart)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}

	text, err := g.Tokenizer.Decode(out)
	if err != nil {
		return Result{}, fmt.Errorf("decode output: %w", err)
	}
	return Result{
		Text:         text,
		Tokens:       out,
		PromptTokens: len(promptIDs),
		FinishReason: finish,
		Stats:        stats,
	}, nil
}

func safeReset(m model.Model) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Reset: %v", rec)
		}
	}()
	m.Reset()
	return nil
}

func safeEncode(tok tokenizer.Tokenizer, prompt string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(prompt)
}

func safeForward(m model.Model, id int) (l []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in ForwardToken: %v", rec)
		}
	}()
	return m.ForwardToken(id)
}

func safeSample(s *logits.Sampler, l []float32, recent, exclude []int) (id int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	return s.Sample(l, recent, exclude...), nil
}
