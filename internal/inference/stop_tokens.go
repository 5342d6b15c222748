package inference

import (
	"slices"
	"strings"

	"github.com/gpunexus/gpuf/internal/tokenizer"
)

// endMarkers are piece strings treated as end of sequence even when the
// vocabulary names a different EOS id.
var endMarkers = []string{"</s>", "<|endoftext|>", "<|end_of_text|>", "<|eot_id|>", "<|im_end|>"}

// BuildStopTokens returns the EOS id plus every vocabulary entry spelled
// like a common end marker.
func BuildStopTokens(cfg tokenizer.Config) []int {
	var stop []int
	if cfg.EOSTokenID >= 0 {
		stop = append(stop, cfg.EOSTokenID)
	}
	for id, tok := range cfg.Tokens {
		if id == cfg.BOSTokenID || slices.Contains(stop, id) {
			continue
		}
		if slices.Contains(endMarkers, strings.ToLower(strings.TrimSpace(tok))) {
			stop = append(stop, id)
		}
	}
	return stop
}
