package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gpunexus/gpuf/internal/logits"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	p := writeTempFile(t, t.TempDir(), "config.yaml", `
model: /models/mini.gmf
context_size: 4096
gpu_layers: 20
backend: cpu
max_tokens: 64
sampling:
  mode: sample
  seed: 7
  temperature: 0.7
  top_k: 20
result_ttl: 90s
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "/models/mini.gmf" || cfg.ContextSizeOr(1) != 4096 || cfg.GPULayersOr(0) != 20 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxTokensOr(1) != 64 || cfg.MaxKVBytesOr(5) != 5 {
		t.Fatalf("unexpected defaults applied")
	}
	sc, err := cfg.Sampling.SamplerConfig()
	if err != nil {
		t.Fatalf("sampler config: %v", err)
	}
	if sc.Mode != logits.Sample || sc.Seed != 7 || sc.TopK != 20 || sc.Temperature != float32(0.7) {
		t.Fatalf("unexpected sampler config: %+v", sc)
	}
	if d, _ := cfg.ResultTTLDuration(); d != 90*time.Second {
		t.Fatalf("ttl = %s", d)
	}
}

func TestLoadTOMLAndJSON(t *testing.T) {
	t.Parallel()

	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "model = \"/x.gmf\"\ncontext_size = 512\nlog_level = \"debug\"\n\n[sampling]\nmode = \"greedy\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Model != "/x.gmf" || cfg.ContextSizeOr(0) != 512 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected toml config: %+v", cfg)
	}

	p = writeTempFile(t, d, "cfg.json", `{"model":"/y.gmf","max_kv_bytes":1024}`)
	cfg, err = Load(p)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.Model != "/y.gmf" || cfg.MaxKVBytesOr(0) != 1024 {
		t.Fatalf("unexpected json config: %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Parallel()

	d := t.TempDir()
	tests := map[string]string{
		"zero.yaml":  "context_size: 0\n",
		"mode.yaml":  "sampling:\n  mode: beam\n",
		"ttl.yaml":   "result_ttl: soon\n",
		"bad.yaml":   "model: [unterminated\n",
		"config.ini": "model=x\n",
	}
	for name, content := range tests {
		if _, err := Load(writeTempFile(t, d, name, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("empty path: expected error")
	}
}

func TestLoadOptional(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadOptional(missing); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("explicit missing file: got %v", err)
	}
}
