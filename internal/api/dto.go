package api

import (
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/logits"
)

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	// Code is the boundary status name, for example "FILE_NOT_FOUND".
	Code   string `json:"code,omitempty"`
	Status int32  `json:"status,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Built   string `json:"built,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
	Session     bool   `json:"session"`
	Device      string `json:"device,omitempty"`
}

type SessionRequest struct {
	Model       string    `json:"model"`
	ContextSize *uint32   `json:"context_size,omitempty"`
	GPULayers   *uint32   `json:"gpu_layers,omitempty"`
	Sampling    *Sampling `json:"sampling,omitempty"`
}

type GenerateRequest struct {
	Prompt    string    `json:"prompt"`
	MaxTokens *uint     `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
	Sampling  *Sampling `json:"sampling,omitempty"`
}

type Sampling struct {
	Mode          string   `json:"mode,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	MinP          *float32 `json:"min_p,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
}

// apply overlays the set fields on base.
func (s *Sampling) apply(base logits.SamplerConfig) (logits.SamplerConfig, error) {
	if s == nil {
		return base, nil
	}
	if s.Mode != "" {
		mode, err := logits.ParseMode(s.Mode)
		if err != nil {
			return base, newInvalidRequest(err.Error())
		}
		base.Mode = mode
	}
	if s.Seed != nil {
		base.Seed = *s.Seed
	}
	if s.Temperature != nil {
		base.Temperature = *s.Temperature
	}
	if s.TopK != nil {
		base.TopK = *s.TopK
	}
	if s.TopP != nil {
		base.TopP = *s.TopP
	}
	if s.MinP != nil {
		base.MinP = *s.MinP
	}
	if s.RepeatPenalty != nil {
		base.RepeatPenalty = *s.RepeatPenalty
	}
	if s.RepeatLastN != nil {
		base.RepeatLastN = *s.RepeatLastN
	}
	return base, nil
}

type LastErrorResponse struct {
	Pending bool   `json:"pending"`
	Message string `json:"message,omitempty"`
}

type streamEvent struct {
	Text   string                   `json:"text,omitempty"`
	Result *engine.GenerationResult `json:"result,omitempty"`
	Error  *ErrorBody               `json:"error,omitempty"`
}
