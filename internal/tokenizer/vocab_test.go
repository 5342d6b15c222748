package tokenizer

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func testConfig(withBytes bool) Config {
	tokens := []string{"<unk>", "<s>", "</s>", "Hello", " world", "He", "l", "o", " "}
	if withBytes {
		for b := 0; b < 256; b++ {
			tokens = append(tokens, ByteToken(byte(b)))
		}
	}
	return Config{AddBOS: true, BOSTokenID: 1, EOSTokenID: 2, UNKTokenID: 0, Tokens: tokens}
}

func TestEncodeLongestMatch(t *testing.T) {
	t.Parallel()

	v, err := NewVocab(testConfig(false))
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	ids, err := v.Encode("Hello world")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []int{1, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("got %v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := NewVocab(testConfig(true))
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	for _, text := range []string{"", "Hello", "Hello world", "héllo wörld", "日本語", "tab\tand\nnewline"} {
		ids, err := v.Encode(text)
		if err != nil {
			t.Fatalf("encode %q: %v", text, err)
		}
		got, err := v.Decode(ids)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if got != text {
			t.Fatalf("round trip: got %q want %q", got, text)
		}
	}
}

func TestSpecialTokensNeverMatchText(t *testing.T) {
	t.Parallel()

	cfg := testConfig(true)
	cfg.AddBOS = false
	v, err := NewVocab(cfg)
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	ids, err := v.Encode("</s>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, id := range ids {
		if id == cfg.EOSTokenID {
			t.Fatalf("literal text encoded to EOS: %v", ids)
		}
	}
}

func TestEncodeUnknownWithoutFallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig(false)
	v, err := NewVocab(cfg)
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	ids, err := v.Encode("z")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ids[len(ids)-1] != cfg.UNKTokenID {
		t.Fatalf("expected unk, got %v", ids)
	}

	cfg.UNKTokenID = -1
	v, err = NewVocab(cfg)
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	if _, err := v.Encode("z"); !errors.Is(err, ErrUnknownByte) {
		t.Fatalf("expected ErrUnknownByte, got %v", err)
	}
}

func TestDecodeAlwaysValidUTF8(t *testing.T) {
	t.Parallel()

	v, err := NewVocab(testConfig(true))
	if err != nil {
		t.Fatalf("new vocab: %v", err)
	}
	// 0xE6 starts a three byte sequence that never completes.
	ids, _ := v.Encode("a")
	ids = append(ids, 9+0xE6, 2)
	s, err := v.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !utf8.ValidString(s) {
		t.Fatalf("decode produced invalid utf-8: %q", s)
	}
	if _, err := v.Decode([]int{9999}); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestNewVocabValidatesSpecialIDs(t *testing.T) {
	t.Parallel()

	if _, err := NewVocab(Config{Tokens: []string{"a"}, BOSTokenID: 5, EOSTokenID: -1, UNKTokenID: -1}); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := NewVocab(Config{}); err == nil {
		t.Fatalf("expected empty vocab error")
	}
}

func TestValidStringReplacesEachInvalidByte(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want string
	}{
		{in: []byte("plain"), want: "plain"},
		{in: []byte{0xFF, 0xFE}, want: "��"},
		{in: []byte{'a', 0xE6, 0x97, 'b'}, want: "a��b"},
		{in: []byte("�"), want: "�"},
		{in: []byte{0xC3, 0xA9}, want: "é"},
	}
	for _, tt := range tests {
		if got := ValidString(tt.in); got != tt.want {
			t.Errorf("ValidString(%x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
