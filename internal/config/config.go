// Package config holds the static process configuration and the
// live-tunable settings profile. Static config is loaded once at startup;
// the settings profile round-trips to disk and is mutable at runtime
// through the HTTP API.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the static process configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Reasoner  ReasonerConfig  `yaml:"reasoner"`
	Memory    MemoryConfig    `yaml:"memory"`
	Journal   JournalConfig   `yaml:"journal"`
	Generator GeneratorConfig `yaml:"generator"`
	Settings  string          `yaml:"settings_path"`
}

// HTTPConfig configures the dashboard/control server.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// GatewayConfig configures the market gateway and the account poller.
type GatewayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	HistoryBars  int           `yaml:"history_bars"`
	Seed         int64         `yaml:"seed"`
}

// ReasonerConfig configures the reasoning backend client. URL and model
// can be overridden by REASONER_URL / REASONER_MODEL environment variables
// loaded from .env in cmd.
type ReasonerConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// MemoryConfig configures the playbook store.
type MemoryConfig struct {
	MaxRecords int `yaml:"max_records"`
}

// JournalConfig configures the optional postgres decision journal. An
// empty DSN (and no POSTGRES_DSN in the environment) disables it.
type JournalConfig struct {
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

// GeneratorConfig mirrors the quant generator rule weights; see the signal
// package for semantics.
type GeneratorConfig struct {
	TrendWeight     int `yaml:"trend_weight"`
	VWAPWeight      int `yaml:"vwap_weight"`
	RSIWeight       int `yaml:"rsi_weight"`
	MACDWeight      int `yaml:"macd_weight"`
	BollingerWeight int `yaml:"bollinger_weight"`
	PatternWeight   int `yaml:"pattern_weight"`
	MinScore        int `yaml:"min_score"`
	FullScore       int `yaml:"full_score"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Gateway: GatewayConfig{
			PollInterval: 2 * time.Second,
			HistoryBars:  250,
			Seed:         1,
		},
		Reasoner: ReasonerConfig{
			URL:   "http://127.0.0.1:11434",
			Model: "llama3.1:8b",
		},
		Memory: MemoryConfig{MaxRecords: 512},
		Journal: JournalConfig{
			Timeout: 5 * time.Second,
		},
		Generator: GeneratorConfig{
			TrendWeight:     2,
			VWAPWeight:      1,
			RSIWeight:       1,
			MACDWeight:      1,
			BollingerWeight: 1,
			PatternWeight:   1,
			MinScore:        2,
			FullScore:       5,
		},
		Settings: "config/settings.yaml",
	}
}

// Load reads a config file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	// Environment wins over file for deployment-specific endpoints.
	if v := os.Getenv("REASONER_URL"); v != "" {
		cfg.Reasoner.URL = v
	}
	if v := os.Getenv("REASONER_MODEL"); v != "" {
		cfg.Reasoner.Model = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Journal.DSN = v
	}

	return cfg, nil
}

// Validate returns every configuration problem found, empty when clean.
func (c *Config) Validate() []string {
	var errs []string
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http port %d outside (0, 65535]", c.HTTP.Port))
	}
	if c.Gateway.PollInterval <= 0 {
		errs = append(errs, "gateway poll interval must be positive")
	}
	if c.Gateway.HistoryBars < 50 {
		errs = append(errs, fmt.Sprintf("gateway history bars %d below minimum 50", c.Gateway.HistoryBars))
	}
	if c.Reasoner.Model == "" {
		errs = append(errs, "reasoner model must be set")
	}
	if c.Generator.MinScore <= 0 {
		errs = append(errs, "generator min score must be positive")
	}
	return errs
}
