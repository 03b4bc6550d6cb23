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
//  2. file (YAML) if FEIS_CONFIG is set
//  3. env (prefix FEIS_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FEIS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FEIS_ADDR, FEIS_QUEUE_SIZE, ...
	// Map env keys like FEIS_QUEUE_SIZE -> queue_size (flat keys).
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("FEIS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "feis_")
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
	_ = ctx
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RecallFraction <= 0 || c.RecallFraction > 1:
		return fmt.Errorf("%w: recall_fraction must be in (0, 1]", ErrInvalidConfig)
	case c.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfig)
	case c.DropPanelSize < 0:
		return fmt.Errorf("%w: drop_panel_size must not be negative", ErrInvalidConfig)
	}
	for level, rule := range c.AdvancementRules {
		if rule.WinsRequired < 1 {
			return fmt.Errorf("%w: rule for %s needs wins_required >= 1", ErrInvalidConfig, level)
		}
		if rule.NextLevel == "" {
			return fmt.Errorf("%w: rule for %s needs next_level", ErrInvalidConfig, level)
		}
	}
	return nil
}
