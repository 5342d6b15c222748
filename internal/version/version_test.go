package version

import (
	"strings"
	"testing"
)

func TestStringStable(t *testing.T) {
	t.Parallel()

	a, b := String(), String()
	if a == "" || a != b {
		t.Fatalf("version not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "gpuf ") {
		t.Fatalf("unexpected version %q", a)
	}
	if Resolve().Version == "" {
		t.Fatalf("resolved version is empty")
	}
}

func TestShortCommit(t *testing.T) {
	t.Parallel()

	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("shortCommit = %q", got)
	}
}
