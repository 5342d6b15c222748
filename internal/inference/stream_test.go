package inference

import (
	"testing"

	"github.com/gpunexus/gpuf/internal/tokenizer"
)

func TestPieceStreamMatchesWholeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{name: "invalid run split", chunks: [][]byte{{0xFF}, {0xFE}}},
		{name: "rune split", chunks: [][]byte{{'a', 0xC3}, {0xA9, 'b'}}},
		{name: "truncated tail", chunks: [][]byte{{'x', 0xF0, 0x9F}}},
		{name: "bad continuation", chunks: [][]byte{{0xE2}, {'A'}, {0x80, 0x80}}},
		{name: "mixed", chunks: [][]byte{{0xFF, 'h'}, {0xE6, 0x97}, {0xA5}, {0xFE, 0xFD}, {'!'}}},
	}
	for _, tt := range tests {
		var ps pieceStream
		var got string
		var whole []byte
		for _, c := range tt.chunks {
			got += ps.push(c)
			whole = append(whole, c...)
		}
		got += ps.flush()
		if want := tokenizer.ValidString(whole); got != want {
			t.Errorf("%s: stream %q, whole %q", tt.name, got, want)
		}
	}
}
