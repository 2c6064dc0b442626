package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SPOTTER_CONFIG is set
//  3. env (prefix SPOTTER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SPOTTER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SPOTTER_ADDR, SPOTTER_K_FACTOR, ...
	// Keys map to the koanf tags on the struct with underscores preserved.
	envProvider := env.Provider("SPOTTER_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "spotter_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DefaultBaselineMS <= 0:
		return fmt.Errorf("%w: default_baseline_ms must be positive", ErrInvalidConfig)
	case c.BaselineImageLimit <= 0 || c.BaselineGlobalLimit <= 0:
		return fmt.Errorf("%w: baseline sample limits must be positive", ErrInvalidConfig)
	case c.BaselineMinSamples <= 0:
		return fmt.Errorf("%w: baseline_min_samples must be positive", ErrInvalidConfig)
	case c.KFactor <= 0 || c.FailureKFactor <= 0:
		return fmt.Errorf("%w: elo k factors must be positive", ErrInvalidConfig)
	case c.MissCooldownMS < 0:
		return fmt.Errorf("%w: miss_cooldown_ms must not be negative", ErrInvalidConfig)
	case c.MaxMisses <= 0:
		return fmt.Errorf("%w: max_misses must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
