package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/power2u/flexheat/core/dispatch"
	"github.com/power2u/flexheat/core/greybox"
	"github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/scheduler"
	"github.com/power2u/flexheat/infra/mqtt"
)

type Config struct {
	MPC         mpc.Config       `json:"mpc"`
	Dynamic     greybox.Config   `json:"dynamic"`
	Flexibility dispatch.Config  `json:"flexibility"`
	Scheduler   scheduler.Config `json:"scheduler"`
	Input       InputConfig      `json:"input"`
	Store       StoreConfig      `json:"store"`
	Metrics     metrics.Config   `json:"metrics"`
	MQTT        mqtt.Config      `json:"mqtt"`
	Sentry      SentryConfig     `json:"sentry"`
	Logging     LoggingConfig    `json:"logging"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		MPC:         mpc.DefaultConfig(),
		Flexibility: dispatch.DefaultConfig(),
		Scheduler:   scheduler.DefaultConfig(),
	}
}

// SetDefaults fills the sections that cannot be prefilled.
func (c *Config) SetDefaults() {
	def := greybox.DefaultConfig()
	if c.Dynamic.InTempDiffLag == nil {
		c.Dynamic.InTempDiffLag = def.InTempDiffLag
	}
	if c.Dynamic.OutTempDiffLag == nil {
		c.Dynamic.OutTempDiffLag = def.OutTempDiffLag
	}
	if c.Dynamic.SolarDiffLag == nil {
		c.Dynamic.SolarDiffLag = def.SolarDiffLag
	}
	c.Store.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"mpc", c.MPC},
		{"dynamic", c.Dynamic},
		{"flexibility", c.Flexibility},
		{"scheduler", c.Scheduler},
		{"store", c.Store},
		{"logging", c.Logging},
	}
	for _, ch := range checks {
		if err := ch.v.Validate(); err != nil {
			return fmt.Errorf("config %s: %w", ch.name, err)
		}
	}
	return nil
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_MPC__HORIZON=24 sets mpc.horizon) and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
