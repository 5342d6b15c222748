package inference

import "errors"

var (
	// ErrPromptTooLong means the encoded prompt does not fit the context.
	ErrPromptTooLong = errors.New("prompt exceeds context window")
	// ErrForward wraps failures (including recovered panics) of a model step.
	ErrForward = errors.New("forward failed")
	// ErrEncode wraps tokenizer failures on the prompt.
	ErrEncode = errors.New("encode prompt")
)
