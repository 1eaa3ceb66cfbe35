package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickMS     int    `yaml:"tick_ms"`     // 100 (by default), real-time driver wake interval and simulator step
	InboxLimit int    `yaml:"inbox_limit"` // 0 = unbounded
	SimSeconds int    `yaml:"sim_seconds"` // 10 (by default), virtual time budget of `sairun sim`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	CSVPath    string `yaml:"csv_path"` // empty = no CSV event log
}

// If the config file is not found, we use default values
func DefaultConfig() Config {
	return Config{
		TickMS:     100,
		InboxLimit: 0,
		SimSeconds: 10,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load reads YAML and overrides defaults; empty path or missing file = defaults only
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 100
	}
	if cfg.InboxLimit < 0 {
		cfg.InboxLimit = 0
	}
	if cfg.SimSeconds <= 0 {
		cfg.SimSeconds = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	return cfg, nil
}
