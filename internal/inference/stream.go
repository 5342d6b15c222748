package inference

import (
	"unicode/utf8"

	"github.com/gpunexus/gpuf/internal/tokenizer"
)

// pieceStream joins raw token bytes and releases only complete UTF-8, so a
// character split across tokens is emitted once, whole.
type pieceStream struct {
	buf []byte
}

func (s *pieceStream) push(b []byte) string {
	s.buf = append(s.buf, b...)
	n := completePrefix(s.buf)
	out := tokenizer.ValidString(s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return out
}

func (s *pieceStream) flush() string {
	out := tokenizer.ValidString(s.buf)
	s.buf = s.buf[:0]
	return out
}

// completePrefix returns the length of b without a trailing incomplete rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
