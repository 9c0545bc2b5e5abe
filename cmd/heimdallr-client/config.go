package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/heimdallr-client/internal/config"
)

type fileConfig struct {
	PollTimeout        string `toml:"poll_timeout"`
	PollInterval       string `toml:"poll_interval"`
	LockWait           string `toml:"lock_wait"`
	LockInterval       string `toml:"lock_interval"`
	RPCTimeout         string `toml:"rpc_timeout"`
	MaxEndpointRetries int    `toml:"max_endpoint_retries"`
	LogLevel           string `toml:"log_level"`
	MetricsTextfile    string `toml:"metrics_textfile"`
}

// loadClientConfig reads settings.json and applies the optional client.toml
// overlay on top of the defaults.
func loadClientConfig(paths config.Paths) (config.Client, error) {
	cfg := config.DefaultClient(paths)

	settings, err := config.LoadSettings(paths.SettingsPath())
	if err != nil {
		return config.Client{}, err
	}
	cfg.Settings = settings

	if err := applyOverlay(paths.ClientPath(), &cfg); err != nil {
		return config.Client{}, err
	}
	if err := config.ValidateClient(cfg); err != nil {
		return config.Client{}, fmt.Errorf("%w: %v", config.ErrSettingsInvalid, err)
	}
	return cfg, nil
}

func applyOverlay(path string, cfg *config.Client) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", config.ErrSettingsInvalid, path, err)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_timeout", raw.PollTimeout, &cfg.PollTimeout},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"lock_wait", raw.LockWait, &cfg.LockWait},
		{"lock_interval", raw.LockInterval, &cfg.LockInterval},
		{"rpc_timeout", raw.RPCTimeout, &cfg.RPCTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", config.ErrSettingsInvalid, d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_endpoint_retries") {
		cfg.MaxEndpointRetries = raw.MaxEndpointRetries
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}

	return nil
}
