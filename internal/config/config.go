// Package config reads the gpuf configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gpunexus/gpuf/internal/logits"
)

// Defaults applied when neither a flag nor the file sets a value.
const (
	DefaultContextSize   = 2048
	DefaultMaxTokens     = 128
	DefaultServerAddress = "127.0.0.1:8088"
	DefaultResultTTL     = 10 * time.Minute
)

// Config represents the gpuf configuration file (~/.config/gpuf/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Model       string  `yaml:"model" toml:"model" json:"model"`
	ContextSize *uint32 `yaml:"context_size" toml:"context_size" json:"context_size"`
	GPULayers   *uint32 `yaml:"gpu_layers" toml:"gpu_layers" json:"gpu_layers"`
	Backend     string  `yaml:"backend" toml:"backend" json:"backend"`
	MaxTokens   *uint   `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`
	MaxKVBytes  *int64  `yaml:"max_kv_bytes" toml:"max_kv_bytes" json:"max_kv_bytes"`

	Sampling Sampling `yaml:"sampling" toml:"sampling" json:"sampling"`

	LogLevel  string `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format" json:"log_format"`

	ServerAddress string `yaml:"server_address" toml:"server_address" json:"server_address"`
	// ResultTTL is a Go duration string such as "10m".
	ResultTTL string `yaml:"result_ttl" toml:"result_ttl" json:"result_ttl"`
}

// Sampling is the sampling block of the file.
type Sampling struct {
	Mode          string   `yaml:"mode" toml:"mode" json:"mode"`
	Seed          *int64   `yaml:"seed" toml:"seed" json:"seed"`
	Temperature   *float64 `yaml:"temperature" toml:"temperature" json:"temperature"`
	TopK          *int64   `yaml:"top_k" toml:"top_k" json:"top_k"`
	TopP          *float64 `yaml:"top_p" toml:"top_p" json:"top_p"`
	MinP          *float64 `yaml:"min_p" toml:"min_p" json:"min_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty" toml:"repeat_penalty" json:"repeat_penalty"`
	RepeatLastN   *int64   `yaml:"repeat_last_n" toml:"repeat_last_n" json:"repeat_last_n"`
}

// DefaultPath is $XDG_CONFIG_HOME/gpuf/config.yaml (or the platform
// equivalent). It is empty when no config directory can be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gpuf", "config.yaml")
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path, or DefaultPath when path is empty. A missing
// default file yields a zero Config; a missing explicit file is an error.
func LoadOptional(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return Config{}, nil
		}
	}
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// Validate checks values that can be rejected without touching the model.
func (c Config) Validate() error {
	if c.ContextSize != nil && *c.ContextSize == 0 {
		return errors.New("context_size must be at least 1")
	}
	if c.MaxKVBytes != nil && *c.MaxKVBytes < 0 {
		return errors.New("max_kv_bytes must not be negative")
	}
	if _, err := logits.ParseMode(c.Sampling.Mode); err != nil {
		return err
	}
	if _, err := c.ResultTTLDuration(); err != nil {
		return err
	}
	return nil
}

func (c Config) ContextSizeOr(def uint32) uint32 {
	if c.ContextSize != nil {
		return *c.ContextSize
	}
	return def
}

func (c Config) GPULayersOr(def uint32) uint32 {
	if c.GPULayers != nil {
		return *c.GPULayers
	}
	return def
}

func (c Config) MaxTokensOr(def uint) uint {
	if c.MaxTokens != nil {
		return *c.MaxTokens
	}
	return def
}

func (c Config) MaxKVBytesOr(def int64) int64 {
	if c.MaxKVBytes != nil {
		return *c.MaxKVBytes
	}
	return def
}

// ResultTTLDuration parses ResultTTL, falling back to DefaultResultTTL.
func (c Config) ResultTTLDuration() (time.Duration, error) {
	if strings.TrimSpace(c.ResultTTL) == "" {
		return DefaultResultTTL, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.ResultTTL))
	if err != nil {
		return 0, fmt.Errorf("result_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("result_ttl must be positive, got %s", d)
	}
	return d, nil
}

// SamplerConfig converts the sampling block. Unset fields stay zero so the
// sampler applies its own defaults.
func (s Sampling) SamplerConfig() (logits.SamplerConfig, error) {
	mode, err := logits.ParseMode(s.Mode)
	if err != nil {
		return logits.SamplerConfig{}, err
	}
	out := logits.SamplerConfig{Mode: mode}
	if s.Seed != nil {
		out.Seed = *s.Seed
	}
	if s.Temperature != nil {
		out.Temperature = float32(*s.Temperature)
	}
	if s.TopK != nil {
		out.TopK = int(*s.TopK)
	}
	if s.TopP != nil {
		out.TopP = float32(*s.TopP)
	}
	if s.MinP != nil {
		out.MinP = float32(*s.MinP)
	}
	if s.RepeatPenalty != nil {
		out.RepeatPenalty = float32(*s.RepeatPenalty)
	}
	if s.RepeatLastN != nil {
		out.RepeatLastN = int(*s.RepeatLastN)
	}
	return out, nil
}
