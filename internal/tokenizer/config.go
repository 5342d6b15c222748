package tokenizer

// Config describes the special tokens of a vocabulary. Ids below zero mean
// the token is not defined.
type Config struct {
	AddBOS     bool
	BOSTokenID int
	EOSTokenID int
	UNKTokenID int
	Tokens     []string
}

// StartToken is the token a generation begins from when the prompt encodes
// to nothing: BOS when defined, otherwise id 0.
func (c Config) StartToken() int {
	if c.BOSTokenID >= 0 {
		return c.BOSTokenID
	}
	return 0
}
