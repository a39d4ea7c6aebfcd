package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds the tool configuration read from an optional yaml file.
type Config struct {
	Log struct {
		// Level is a zap level name: debug, info, warn, error.
		Level string `yaml:"level"`
		// Development switches to zap's development output.
		Development bool `yaml:"development"`
	} `yaml:"log"`
}

// loadConfig returns the configuration from path, or the defaults when no
// path is given.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Log.Level = "info"
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Logger builds the zap logger described by the configuration.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	zcfg := zap.NewProductionConfig()
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
