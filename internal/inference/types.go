package inference

import "time"

// StreamFunc receives generated text as it becomes valid UTF-8.
type StreamFunc func(piece string)

// FinishReason records why a generation stopped.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

type Result struct {
	Text         string
	Tokens       []int
	PromptTokens int
	FinishReason FinishReason
	Stats        Stats
}

type Stats struct {
	TokensGenerated int
	PrefillDuration time.Duration
	Duration        time.Duration
	TPS             float64
}
