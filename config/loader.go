package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional YAML file,
// and environment variables.  Precedence, low to high:
//  1. defaults (New())
//  2. the YAML file at path, if path is non-empty
//  3. env vars with prefix SURVGRID_ (SURVGRID_WORKERS -> workers)
func Load(path string) (*Config, error) {

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	envProvider := env.Provider("SURVGRID_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "survgrid_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads using the file named by SURVGRID_CONFIG, if set.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("SURVGRID_CONFIG"))
}

// Validate checks the parts of the configuration that the pipeline
// cannot default its way around.
func (c *Config) Validate() error {

	if len(c.Predictors) == 0 {
		return fmt.Errorf("%w: no predictors", ErrInvalidConfig)
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: no endpoints", ErrInvalidConfig)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("%w: no adjustment models", ErrInvalidConfig)
	}
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: adjustment model without a name", ErrInvalidConfig)
		}
	}
	if c.Level <= 0 || c.Level >= 1 {
		return fmt.Errorf("%w: level %v outside (0,1)", ErrInvalidConfig, c.Level)
	}
	if c.PThreshold <= 0 || c.PThreshold >= 1 {
		return fmt.Errorf("%w: p_threshold %v outside (0,1)", ErrInvalidConfig, c.PThreshold)
	}
	if c.Quantiles == 1 || c.Quantiles < 0 {
		return fmt.Errorf("%w: quantiles must be 0 or at least 2", ErrInvalidConfig)
	}

	return nil
}
