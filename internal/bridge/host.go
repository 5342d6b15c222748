// Package bridge is the status-code surface the JNI shim calls through the
// shared library. Each failure-capable call records its outcome in a
// process-wide last-error slot.
package bridge

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/gpunexus/gpuf/internal/config"
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/lasterr"
	"github.com/gpunexus/gpuf/internal/logger"
	"github.com/gpunexus/gpuf/internal/logits"
)

// HostOptions are settings applied to every session the host opens.
// ContextSize and GPULayers are only used by SetModel when no session is
// active.
type HostOptions struct {
	Backend     string
	ContextSize uint32
	GPULayers   uint32
	MaxKVBytes  int64
	Sampling    logits.SamplerConfig
	Logger      logger.Logger
}

// Host owns one runtime and at most one active session.
type Host struct {
	rt   *engine.Runtime
	opts HostOptions
	log  logger.Logger
	slot lasterr.Slot

	mu      sync.Mutex
	session *engine.Session
}

func NewHost(opts HostOptions) *Host {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Host{
		rt:   engine.NewRuntime(engine.Options{Backend: opts.Backend, Logger: opts.Logger}),
		opts: opts,
		log:  opts.Logger.With("component", "bridge"),
	}
}

// Init initializes the runtime. A second call returns StatusOK.
func (h *Host) Init() int32 {
	return h.record(h.rt.Init())
}

// LastError returns the pending error message or "".
func (h *Host) LastError() string {
	return h.slot.Get()
}

// Version never fails and does not touch the last-error slot.
func (h *Host) Version() string {
	return h.rt.Version()
}

// LLMInit loads the model at path. On failure the previous session stays
// active.
func (h *Host) LLMInit(path string, contextSize, gpuLayers uint32) int32 {
	_, err := h.Load(path, engine.SessionOptions{ContextSize: contextSize, GPULayers: gpuLayers})
	return engine.StatusOf(err)
}

// LLMGenerate returns the generated text, or "" on failure with the reason
// in LastError. "" is also a valid result (for example maxTokens == 0).
func (h *Host) LLMGenerate(prompt string, maxTokens uintptr) string {
	res, err := h.Generate(context.Background(), engine.GenerationRequest{
		Prompt:    prompt,
		MaxTokens: uint(maxTokens),
	})
	if err != nil {
		return ""
	}
	return res.Text
}

// Load opens a session and makes it the active one. Zero MaxKVBytes and
// a zero Sampling take the host defaults. The outcome is recorded in the
// last-error slot.
func (h *Host) Load(path string, opts engine.SessionOptions) (info engine.SessionInfo, err error) {
	defer func() { h.record(err) }()

	if opts.MaxKVBytes == 0 {
		opts.MaxKVBytes = h.opts.MaxKVBytes
	}
	if opts.Sampling == (logits.SamplerConfig{}) {
		opts.Sampling = h.opts.Sampling
	}
	sess, err := h.rt.OpenSession(path, opts)
	if err != nil {
		h.log.Warn("model load failed", "path", path, "error", err)
		return engine.SessionInfo{}, err
	}

	h.mu.Lock()
	prev := h.session
	h.session = sess
	h.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			h.log.Warn("closing previous session", "error", err)
		}
	}
	return sess.Info(), nil
}

// Generate runs on the active session and records the outcome in the
// last-error slot.
func (h *Host) Generate(ctx context.Context, req engine.GenerationRequest) (res engine.GenerationResult, err error) {
	const op = "llm_generate"
	defer func() { h.record(err) }()
	if !h.rt.Initialized() {
		return engine.GenerationResult{}, &engine.Error{Kind: engine.NotInitialized, Op: op, Err: engine.ErrNotInitialized}
	}
	sess := h.Session()
	if sess == nil {
		return engine.GenerationResult{}, &engine.Error{Kind: engine.NotInitialized, Op: op, Err: errors.New("no model loaded")}
	}
	return sess.Generate(ctx, req)
}

// Session returns the active session or nil.
func (h *Host) Session() *engine.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *Host) Runtime() *engine.Runtime { return h.rt }

// Close releases the active session. The runtime stays initialized.
func (h *Host) Close() error {
	h.mu.Lock()
	sess := h.session
	h.session = nil
	h.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}

// record updates the last-error slot from err and returns its status.
func (h *Host) record(err error) int32 {
	h.slot.SetError(err)
	return engine.StatusOf(err)
}

// Default returns the process-global host used by the shared library. Its
// settings come from the file named by GPUF_CONFIG (or the default config
// path) with GPUF_BACKEND, GPUF_LOG_LEVEL and GPUF_LOG_FORMAT on top.
var Default = sync.OnceValue(func() *Host {
	cfg, err := config.LoadOptional(os.Getenv("GPUF_CONFIG"))
	applyEnv(&cfg, os.Getenv)
	h := NewHost(hostOptions(cfg))
	if err != nil {
		h.log.Warn("config ignored", "error", err)
	}
	return h
})

func hostOptions(cfg config.Config) HostOptions {
	opts := HostOptions{
		Backend:     cfg.Backend,
		ContextSize: cfg.ContextSizeOr(config.DefaultContextSize),
		GPULayers:   cfg.GPULayersOr(0),
		MaxKVBytes:  cfg.MaxKVBytesOr(0),
		Logger:      logger.Discard(),
	}
	if sc, err := cfg.Sampling.SamplerConfig(); err == nil {
		opts.Sampling = sc
	}
	if cfg.LogLevel != "" {
		if log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err == nil {
			opts.Logger = log
		}
	}
	return opts
}

func applyEnv(cfg *config.Config, getenv func(string) string) {
	if v := getenv("GPUF_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := getenv("GPUF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("GPUF_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
