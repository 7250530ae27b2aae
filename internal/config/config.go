// Package config loads agent-context settings from defaults, a YAML file and
// AGENT_CONTEXT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/cram"
	"github.com/rcliao/agent-context/internal/delta"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g.
// AGENT_CONTEXT_KNOWLEDGE_BUDGET -> knowledge.budget.
const EnvPrefix = "AGENT_CONTEXT_"

// Config is the full application configuration.
type Config struct {
	DB        string          `koanf:"db"`
	Log       logging.Config  `koanf:"log"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Examples  ExamplesConfig  `koanf:"examples"`
	Delta     DeltaConfig     `koanf:"delta"`
	Cache     CacheConfig     `koanf:"cache"`
}

// KnowledgeConfig tunes the knowledge crammer and directory loader.
type KnowledgeConfig struct {
	Budget        int     `koanf:"budget"`
	Strategy      string  `koanf:"strategy"`
	WholeExponent float64 `koanf:"whole_exponent"`
	TrimExponent  float64 `koanf:"trim_exponent"`
	TrimBatch     float64 `koanf:"trim_batch"`
	MaxFileBytes  int64   `koanf:"max_file_bytes"`
}

// ExamplesConfig tunes the example and edit crammers.
type ExamplesConfig struct {
	Budget         int     `koanf:"budget"`
	Depth          int     `koanf:"depth"`
	FillTarget     float64 `koanf:"fill_target"`
	EditFillTarget float64 `koanf:"edit_fill_target"`
}

type DeltaConfig struct {
	Threshold float64 `koanf:"threshold"`
}

type CacheConfig struct {
	Capacity   int     `koanf:"capacity"`
	FreshShare float64 `koanf:"fresh_share"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DB:  filepath.Join(home, ".agent-context", "context.db"),
		Log: logging.DefaultConfig(),
		Knowledge: KnowledgeConfig{
			Budget:        32000,
			Strategy:      string(cram.StrategyTrim),
			WholeExponent: cram.DefaultWholeExponent,
			TrimExponent:  cram.DefaultTrimExponent,
			TrimBatch:     cram.DefaultTrimBatch,
			MaxFileBytes:  knowledge.DefaultMaxFileBytes,
		},
		Examples: ExamplesConfig{
			Budget:         8000,
			Depth:          cram.DefaultDepth,
			FillTarget:     cram.DefaultFillTarget,
			EditFillTarget: cram.DefaultEditFillTarget,
		},
		Delta: DeltaConfig{Threshold: delta.DefaultThreshold},
		Cache: CacheConfig{
			Capacity:   contextcache.DefaultCapacity,
			FreshShare: contextcache.DefaultFreshShare,
		},
	}
}

// DefaultPath is ~/.agent-context/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-context", "config.yaml")
}

// Load reads configuration from path (DefaultPath when empty). A missing file
// is not an error; environment overrides apply either way.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	content, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// envKey maps AGENT_CONTEXT_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch cram.Strategy(c.Knowledge.Strategy) {
	case cram.StrategyTrim, cram.StrategyWhole:
	default:
		errs = append(errs, fmt.Errorf("knowledge.strategy %q: want trim or whole", c.Knowledge.Strategy))
	}
	if c.Knowledge.WholeExponent <= 0 || c.Knowledge.TrimExponent <= 0 {
		errs = append(errs, errors.New("knowledge exponents must be positive"))
	}
	if !fraction(c.Knowledge.TrimBatch) {
		errs = append(errs, fmt.Errorf("knowledge.trim_batch %v: want (0, 1]", c.Knowledge.TrimBatch))
	}
	if c.Knowledge.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("knowledge.max_file_bytes must be positive"))
	}
	if c.Examples.Depth <= 0 {
		errs = append(errs, errors.New("examples.depth must be positive"))
	}
	if !fraction(c.Examples.FillTarget) || !fraction(c.Examples.EditFillTarget) {
		errs = append(errs, errors.New("examples fill targets must be in (0, 1]"))
	}
	if c.Delta.Threshold < 0 {
		errs = append(errs, errors.New("delta.threshold must not be negative"))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity must be positive"))
	}
	if c.Cache.FreshShare <= 0 {
		errs = append(errs, errors.New("cache.fresh_share must be positive"))
	}
	return errors.Join(errs...)
}

func fraction(f float64) bool { return f > 0 && f <= 1 }
