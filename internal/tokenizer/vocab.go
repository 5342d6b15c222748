package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrUnknownByte = errors.New("tokenizer: byte not representable")

// Vocab is a greedy longest-match tokenizer over a fixed piece list with
// "<0xNN>" byte-fallback tokens.
type Vocab struct {
	cfg    Config
	pieces map[string]int
	bytes  [256]int
	maxLen int
}

// NewVocab indexes cfg.Tokens. Special and byte tokens never match literal
// text; byte tokens decode to their raw byte.
func NewVocab(cfg Config) (*Vocab, error) {
	if len(cfg.Tokens) == 0 {
		return nil, errors.New("tokenizer: empty vocabulary")
	}
	for _, id := range []int{cfg.BOSTokenID, cfg.EOSTokenID, cfg.UNKTokenID} {
		if id >= len(cfg.Tokens) {
			return nil, fmt.Errorf("tokenizer: special token id %d out of range (vocab %d)", id, len(cfg.Tokens))
		}
	}

	v := &Vocab{cfg: cfg, pieces: make(map[string]int, len(cfg.Tokens))}
	for i := range v.bytes {
		v.bytes[i] = -1
	}
	for id, tok := range cfg.Tokens {
		if v.isSpecial(id) {
			continue
		}
		if b, ok := parseByteToken(tok); ok {
			v.bytes[b] = id
			continue
		}
		if tok == "" {
			continue
		}
		if _, dup := v.pieces[tok]; !dup {
			v.pieces[tok] = id
		}
		v.maxLen = max(v.maxLen, len(tok))
	}
	return v, nil
}

func (v *Vocab) Config() Config { return v.cfg }

func (v *Vocab) Size() int { return len(v.cfg.Tokens) }

func (v *Vocab) isSpecial(id int) bool {
	return id == v.cfg.BOSTokenID || id == v.cfg.EOSTokenID || id == v.cfg.UNKTokenID
}

// Encode splits text into token ids, prepending BOS when configured.
func (v *Vocab) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text)/2+1)
	if v.cfg.AddBOS && v.cfg.BOSTokenID >= 0 {
		ids = append(ids, v.cfg.BOSTokenID)
	}
	for i := 0; i < len(text); {
		n := min(v.maxLen, len(text)-i)
		matched := false
		for ; n > 0; n-- {
			if id, ok := v.pieces[text[i:i+n]]; ok {
				ids = append(ids, id)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		switch b := text[i]; {
		case v.bytes[b] >= 0:
			ids = append(ids, v.bytes[b])
		case v.cfg.UNKTokenID >= 0:
			ids = append(ids, v.cfg.UNKTokenID)
		default:
			return nil, fmt.Errorf("%w: 0x%02X at offset %d", ErrUnknownByte, b, i)
		}
		i++
	}
	return ids, nil
}

// AppendPiece appends the raw bytes of token id to dst. Control tokens
// contribute nothing; unknown ids are an error.
func (v *Vocab) AppendPiece(dst []byte, id int) ([]byte, error) {
	if id < 0 || id >= len(v.cfg.Tokens) {
		return dst, fmt.Errorf("tokenizer: token id %d out of range", id)
	}
	if id == v.cfg.BOSTokenID || id == v.cfg.EOSTokenID {
		return dst, nil
	}
	if id == v.cfg.UNKTokenID {
		return utf8.AppendRune(dst, utf8.RuneError), nil
	}
	tok := v.cfg.Tokens[id]
	if b, ok := parseByteToken(tok); ok {
		return append(dst, b), nil
	}
	return append(dst, tok...), nil
}

// Decode joins the pieces of ids. Invalid UTF-8 is replaced as described by
// ValidString.
func (v *Vocab) Decode(ids []int) (string, error) {
	buf := make([]byte, 0, len(ids)*4)
	for _, id := range ids {
		var err error
		if buf, err = v.AppendPiece(buf, id); err != nil {
			return "", err
		}
	}
	return ValidString(buf), nil
}

// ValidString converts b to a string, replacing every byte that is not part
// of a valid UTF-8 sequence with its own U+FFFD. Each replacement depends
// only on the bytes around it, so converting b in pieces split at rune
// boundaries gives the same text as converting it whole.
func ValidString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]byte, 0, len(b)+8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, b[:size]...)
		}
		b = b[size:]
	}
	return string(out)
}

// ByteToken returns the canonical fallback token for b.
func ByteToken(b byte) string {
	return fmt.Sprintf("<0x%02X>", b)
}

func parseByteToken(tok string) (byte, bool) {
	if len(tok) != 6 || !strings.HasPrefix(tok, "<0x") || tok[5] != '>' {
		return 0, false
	}
	var b byte
	for _, c := range []byte(tok[3:5]) {
		b <<= 4
		switch {
		case c >= '0' && c <= '9':
			b |= c - '0'
		case c >= 'A' && c <= 'F':
			b |= c - 'A' + 10
		case c >= 'a' && c <= 'f':
			b |= c - 'a' + 10
		default:
			return 0, false
		}
	}
	return b, true
}
