package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the runner's settings, layered defaults <- TOML file <-
// flags.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime"`
	REPL    REPLConfig    `toml:"repl"`
	Logging LoggingConfig `toml:"logging"`
}

// RuntimeConfig locates the interpreter build.
type RuntimeConfig struct {
	Wasm string `toml:"wasm"` // path to yasl.wasm
}

// REPLConfig holds interactive-mode settings.
type REPLConfig struct {
	Prompt       string `toml:"prompt"`
	HistoryLimit int    `toml:"history_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Debug bool `toml:"debug"`
}

func defaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{Wasm: "yasl.wasm"},
		REPL: REPLConfig{
			Prompt:       "yasl> ",
			HistoryLimit: 500,
		},
	}
}

// loadConfig returns defaults overlaid with the TOML file at path, when
// one is given.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.REPL.HistoryLimit <= 0 {
		cfg.REPL.HistoryLimit = defaultConfig().REPL.HistoryLimit
	}
	return cfg, nil
}
