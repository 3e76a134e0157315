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
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if GAMBIT_CONFIG is set
//  3. env (prefix GAMBIT_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("GAMBIT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: GAMBIT_ADDR, GAMBIT_QUEUE_SIZE, ...
	// Map env keys like GAMBIT_QUEUE_SIZE -> queue_size (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("GAMBIT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gambit_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the process cannot safely start with.
// Missing credentials are fatal here, before any stream is opened.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.LedgerPath == "" {
		return fmt.Errorf("%w: ledger_path must not be empty", ErrInvalidConfig)
	}
	if len(cfg.Bots) == 0 {
		return fmt.Errorf("%w: at least one bot must be configured", ErrInvalidConfig)
	}
	for i := range cfg.Bots {
		b := &cfg.Bots[i]
		if b.BotID == "" {
			return fmt.Errorf("%w: bots[%d].bot_id must not be empty", ErrInvalidConfig, i)
		}
		if b.AuthToken == "" {
			b.AuthToken = cfg.AuthToken
		}
		if b.AuthToken == "" {
			return fmt.Errorf("%w: no auth token for bot %q", ErrMissingCredential, b.BotID)
		}
		applyBotDefaults(b)
		if b.MinInitialTimeSecs > b.MaxInitialTimeSecs {
			return fmt.Errorf("%w: bots[%d] initial time bounds inverted", ErrInvalidConfig, i)
		}
		if b.MinIncrementSecs > b.MaxIncrementSecs {
			return fmt.Errorf("%w: bots[%d] increment bounds inverted", ErrInvalidConfig, i)
		}
	}
	return nil
}
