package inference

import (
	"reflect"
	"testing"

	"github.com/gpunexus/gpuf/internal/tokenizer"
)

func TestBuildStopTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  tokenizer.Config
		want []int
	}{
		{
			name: "eos-only",
			cfg:  tokenizer.Config{EOSTokenID: 1, BOSTokenID: 0, Tokens: []string{"<s>", "</s>", "a"}},
			want: []int{1},
		},
		{
			name: "adds-im-end",
			cfg:  tokenizer.Config{EOSTokenID: 1, BOSTokenID: -1, Tokens: []string{"a", "<|endoftext|>", "<|im_end|>"}},
			want: []int{1, 2},
		},
		{
			name: "marker-when-eos-absent",
			cfg:  tokenizer.Config{EOSTokenID: -1, BOSTokenID: -1, Tokens: []string{"a", "b", "</s>"}},
			want: []int{2},
		},
		{
			name: "none",
			cfg:  tokenizer.Config{EOSTokenID: -1, BOSTokenID: -1, Tokens: []string{"a"}},
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildStopTokens(tc.cfg); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestCompletePrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []byte
		want int
	}{
		{[]byte("abc"), 3},
		{[]byte{'a', 0xC3}, 1},
		{[]byte{'a', 0xC3, 0xA9}, 3},
		{[]byte{0xE6, 0x97}, 0},
		{[]byte{0xA9}, 1},
	}
	for _, tc := range cases {
		if got := completePrefix(tc.in); got != tc.want {
			t.Fatalf("completePrefix(%x) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
