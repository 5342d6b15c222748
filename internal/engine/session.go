package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/inference"
	"github.com/gpunexus/gpuf/internal/logger"
	"github.com/gpunexus/gpuf/internal/logits"
	"github.com/gpunexus/gpuf/internal/metrics"
	"github.com/gpunexus/gpuf/internal/model"
	"github.com/gpunexus/gpuf/internal/modelstore"
	"github.com/gpunexus/gpuf/internal/tokenizer"
)

// DefaultMaxKVBytes bounds the KV cache when SessionOptions.MaxKVBytes is 0.
const DefaultMaxKVBytes int64 = 2 << 30

type SessionOptions struct {
	ContextSize uint32
	// GPULayers is clamped to the model's layer count, and to zero when the
	// runtime has no accelerator.
	GPULayers  uint32
	Sampling   logits.SamplerConfig
	MaxKVBytes int64
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID              uuid.UUID    `json:"id"`
	ModelPath       string       `json:"model_path"`
	ModelName       string       `json:"model_name,omitempty"`
	ContextSize     uint32       `json:"context_size"`
	GPULayers       uint32       `json:"gpu_layers"`
	OffloadedLayers int          `json:"offloaded_layers"`
	Device          string       `json:"device"`
	Model           model.Config `json:"model"`
	KVBytes         int64        `json:"kv_bytes"`
	Mapped          bool         `json:"mapped"`
	OpenedAt        time.Time    `json:"opened_at"`
}

type GenerationRequest struct {
	Prompt    string
	MaxTokens uint
	// Sampling overrides the session default when set.
	Sampling *logits.SamplerConfig
	Stream   inference.StreamFunc
}

type GenerationResult struct {
	ID           uuid.UUID              `json:"id"`
	Text         string                 `json:"text"`
	Tokens       []int                  `json:"tokens"`
	PromptTokens int                    `json:"prompt_tokens"`
	FinishReason inference.FinishReason `json:"finish_reason"`
	Stats        inference.Stats        `json:"stats"`
}

// Session is one loaded model with its KV cache. Generate calls are
// serialized.
type Session struct {
	info     SessionInfo
	sampling logits.SamplerConfig
	log      logger.Logger

	mu     sync.Mutex
	closed bool
	file   *modelstore.File
	model  *model.Instance
	vocab  *tokenizer.Vocab
	stop   []int
}

// OpenSession loads the model at path. Either a fully usable session is
// returned or every resource acquired on the way is released.
func (r *Runtime) OpenSession(path string, opts SessionOptions) (sess *Session, err error) {
	const op = "llm_init"
	defer func() {
		if err != nil {
			metrics.SessionLoaded(StatusName(StatusOf(err)))
			metrics.Error(op, KindOf(err).String())
		} else {
			metrics.SessionLoaded(StatusName(StatusOK))
		}
	}()

	r.mu.Lock()
	initialized, dev := r.initialized, r.device
	r.mu.Unlock()
	if !initialized {
		return nil, newError(NotInitialized, op, ErrNotInitialized)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errorf(InvalidInput, op, "model path is empty")
	}
	if opts.ContextSize == 0 {
		return nil, errorf(InvalidInput, op, "context size must be at least 1")
	}
	if opts.ContextSize > math.MaxInt32 {
		return nil, errorf(InvalidInput, op, "context size %d is too large", opts.ContextSize)
	}
	maxKV := opts.MaxKVBytes
	if maxKV <= 0 {
		maxKV = DefaultMaxKVBytes
	}

	f, err := modelstore.Open(path)
	if err != nil {
		return nil, r.loadError(op, path, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	cfg, err := model.ConfigFromInfo(f.Info())
	if err != nil {
		return nil, r.loadError(op, path, err)
	}
	gv := f.Vocab()
	if len(gv.Tokens) != cfg.VocabSize {
		return nil, errorf(InvalidFormat, op, "%s: vocab has %d tokens, model expects %d", path, len(gv.Tokens), cfg.VocabSize)
	}
	vocab, err := tokenizer.NewVocab(tokenizer.Config{
		AddBOS:     gv.AddBOS,
		BOSTokenID: gv.BOS,
		EOSTokenID: gv.EOS,
		UNKTokenID: gv.UNK,
		Tokens:     gv.Tokens,
	})
	if err != nil {
		return nil, errorf(InvalidFormat, op, "%s: %v", path, err)
	}

	ctxSize := int(opts.ContextSize)
	log := r.log.With("model", path)
	if cfg.MaxContext > 0 && ctxSize > cfg.MaxContext {
		log.Warn("context size exceeds trained context", "context_size", ctxSize, "max_context", cfg.MaxContext)
	}

	kvBytes := model.KVBytes(cfg, ctxSize)
	if kvBytes < 0 || kvBytes > maxKV {
		return nil, errorf(ResourceExhaustion, op, "%s: kv cache for context %d needs %d bytes, limit is %d", path, ctxSize, kvBytes, maxKV)
	}

	offload := backend.OffloadLayers(dev, opts.GPULayers, cfg.Layers)
	if offload != int(opts.GPULayers) {
		log.Info("gpu layers clamped", "requested", opts.GPULayers, "offloaded", offload, "layers", cfg.Layers, "device", dev.Name())
	}

	m, err := model.Load(f, model.LoadOptions{ContextSize: ctxSize, Device: dev, Offload: offload})
	if err != nil {
		return nil, r.loadError(op, path, err)
	}

	id := uuid.New()
	sess = &Session{
		info: SessionInfo{
			ID:              id,
			ModelPath:       path,
			ModelName:       f.Info().Name,
			ContextSize:     opts.ContextSize,
			GPULayers:       opts.GPULayers,
			OffloadedLayers: m.OffloadedLayers(),
			Device:          dev.Name(),
			Model:           cfg,
			KVBytes:         m.KVBytes(),
			Mapped:          f.Mapped(),
			OpenedAt:        time.Now(),
		},
		sampling: opts.Sampling,
		log:      r.log.With("session", id.String()),
		file:     f,
		model:    m,
		vocab:    vocab,
		stop:     inference.BuildStopTokens(vocab.Config()),
	}
	ok = true

	metrics.SessionOpened(sess.info.KVBytes, sess.info.OffloadedLayers)
	sess.log.Info("session opened",
		"model", path,
		"context_size", ctxSize,
		"layers", cfg.Layers,
		"offloaded_layers", sess.info.OffloadedLayers,
		"kv_bytes", sess.info.KVBytes,
		"mapped", sess.info.Mapped,
	)
	return sess, nil
}

func (r *Runtime) loadError(op, path string, err error) error {
	kind := classify(err)
	if kind == KindUnknown {
		kind = InvalidFormat
	}
	if kind == FileNotFound {
		return errorf(kind, op, "model file not found: %s", path)
	}
	return newError(kind, op, fmt.Errorf("%s: %w", path, err))
}

func (s *Session) Info() SessionInfo {
	return s.info
}

func (s *Session) ID() uuid.UUID { return s.info.ID }

// Sampling returns the session's default sampler settings.
func (s *Session) Sampling() logits.SamplerConfig { return s.sampling }

// Generate produces up to req.MaxTokens tokens continuing req.Prompt. On
// any error the result is empty.
func (s *Session) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	const op = "llm_generate"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return GenerationResult{}, errorf(InvalidInput, op, "session closed")
	}
	if req.MaxTokens == 0 {
		return GenerationResult{ID: uuid.New(), FinishReason: inference.FinishLength}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sampling := s.sampling
	if req.Sampling != nil {
		sampling = *req.Sampling
	}
	gen := &inference.Generator{
		Model:      s.model,
		Sampler:    logits.NewSampler(sampling),
		Tokenizer:  s.vocab,
		StopTokens: s.stop,
		StartToken: s.vocab.Config().StartToken(),
	}

	n := int(min(uint64(req.MaxTokens), uint64(math.MaxInt32)))
	start := time.Now()
	res, err := gen.Generate(ctx, req.Prompt, n, req.Stream)
	if err != nil {
		kind := classify(err)
		if kind == KindUnknown {
			kind = Aborted
		}
		metrics.Error(op, kind.String())
		s.log.Warn("generation failed", "kind", kind.String(), "error", err)
		return GenerationResult{}, newError(kind, op, err)
	}
	took := time.Since(start)
	metrics.Generated(res.PromptTokens, res.Stats.TokensGenerated, took)
	s.log.Debug("generation finished",
		"prompt_tokens", res.PromptTokens,
		"tokens", res.Stats.TokensGenerated,
		"finish", string(res.FinishReason),
		"tps", res.Stats.TPS,
		"took", took,
	)

	return GenerationResult{
		ID:           uuid.New(),
		Text:         res.Text,
		Tokens:       res.Tokens,
		PromptTokens: res.PromptTokens,
		FinishReason: res.FinishReason,
		Stats:        res.Stats,
	}, nil
}

// Close releases the KV cache and the model mapping. It waits for an
// in-flight Generate and is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	s.model.Close()
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	s.model, s.file = nil, nil
	metrics.SessionClosed(s.info.KVBytes, s.info.OffloadedLayers)
	s.log.Info("session closed")
	return errors.Join(errs...)
}
