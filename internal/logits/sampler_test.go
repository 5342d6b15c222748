package logits

import "testing"

// TestSamplerDeterminism ensures that two samplers configured identically
// produce identical results when sampling the same logits vector.
func TestSamplerDeterminism(t *testing.T) {
	t.Parallel()

	cfg := SamplerConfig{Mode: Sample, Seed: 42, Temperature: 0.9, TopK: 4, TopP: 0.95}
	s1 := NewSampler(cfg)
	s2 := NewSampler(cfg)
	for i := 0; i < 32; i++ {
		a := s1.Sample([]float32{0, 1, 2, 3, 4, 5}, nil)
		b := s2.Sample([]float32{0, 1, 2, 3, 4, 5}, nil)
		if a != b {
			t.Fatalf("step %d: expected deterministic sample, got %d vs %d", i, a, b)
		}
	}
}

// TestSamplerGreedyDefault checks that the zero config is greedy.
func TestSamplerGreedyDefault(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Temperature: 5, TopK: 3})
	if !s.Greedy() {
		t.Fatalf("zero mode should be greedy")
	}
	if idx := s.Sample([]float32{-1, 5, 3, 7, 2}, nil); idx != 3 {
		t.Fatalf("expected greedy index 3, got %d", idx)
	}
	if s.Config().Mode != Greedy {
		t.Fatalf("effective mode = %q", s.Config().Mode)
	}
}

// TestSamplerTopKOne tests that sampling with TopK=1, Temperature=1 and
// TopP>=1 returns the index of the maximum logit.
func TestSamplerTopKOne(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Mode: Sample, Seed: 99, Temperature: 1.0, TopK: 1, TopP: 1.0})
	if idx := s.Sample([]float32{-1, 5, 3, 7, 2}, nil); idx != 3 {
		t.Fatalf("expected greedy index 3, got %d", idx)
	}
}

// TestSamplerTopP ensures that setting TopP less than 1 restricts sampling to
// a prefix of candidates. The first logit dominates, so only index 0 may be
// returned.
func TestSamplerTopP(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Mode: Sample, Seed: 7, Temperature: 1.0, TopK: 5, TopP: 0.5})
	for i := 0; i < 10; i++ {
		if idx := s.Sample([]float32{10, 0, 0, 0, 0}, nil); idx != 0 {
			t.Fatalf("top-p sampling returned unexpected index %d", idx)
		}
	}
}

func TestSamplerRepeatPenalty(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{RepeatPenalty: 4, RepeatLastN: 8})
	logits := []float32{1, 3, 2.5}
	if idx := s.Sample(logits, []int{1}); idx != 2 {
		t.Fatalf("penalised token still chosen: %d (%v)", idx, logits)
	}

	logits = []float32{1, 3, 2.5}
	if idx := s.Sample(logits, []int{1}, 1); idx != 1 {
		t.Fatalf("excluded token was penalised: %d (%v)", idx, logits)
	}
}

func TestSamplerNegativeSeed(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Mode: Sample, Seed: -1})
	if s.Config().Seed < 0 {
		t.Fatalf("negative seed not replaced: %d", s.Config().Seed)
	}
	if s.Config().Temperature != DefaultTemperature {
		t.Fatalf("temperature = %v, want %v", s.Config().Temperature, DefaultTemperature)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Greedy, false},
		{"greedy", Greedy, false},
		{" Sample ", Sample, false},
		{"beam", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMode(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSamplerMinP(t *testing.T) {
	t.Parallel()

	// Index 1 dominates; min-p 0.5 removes everything else.
	s := NewSampler(SamplerConfig{Mode: Sample, Seed: 3, Temperature: 1, TopK: 4, MinP: 0.5})
	for range 20 {
		if idx := s.Sample([]float32{0, 6, 1, 0.5}, nil); idx != 1 {
			t.Fatalf("min-p sampling returned %d", idx)
		}
	}
}

func TestShortlistOrder(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{})
	got := s.shortlist([]float32{2, 5, 5, 1, 4}, 3, 1)
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("shortlist len = %d", len(got))
	}
	for i, c := range got {
		if c.id != want[i] {
			t.Fatalf("shortlist[%d] = %d, want %d (%+v)", i, c.id, want[i], got)
		}
	}
}

func TestArgmaxTiesLowestIndex(t *testing.T) {
	t.Parallel()

	if got := argmax([]float32{1, 3, 3, 2}); got != 1 {
		t.Fatalf("argmax = %d, want 1", got)
	}
}
