package config

import (
	"fmt"
	"strings"
	"time"
)

// Client is everything one invocation needs, built once at startup.
type Client struct {
	Paths    Paths
	Settings Settings

	PollTimeout        time.Duration
	PollInterval       time.Duration
	LockWait           time.Duration
	LockInterval       time.Duration
	RPCTimeout         time.Duration
	MaxEndpointRetries int
	LogLevel           string
	// MetricsTextfile is written in Prometheus text format at exit when set.
	MetricsTextfile string
}

func DefaultClient(paths Paths) Client {
	return Client{
		Paths:              paths,
		PollTimeout:        32 * time.Second,
		PollInterval:       500 * time.Millisecond,
		LockWait:           10 * time.Second,
		LockInterval:       500 * time.Millisecond,
		RPCTimeout:         10 * time.Second,
		MaxEndpointRetries: 3,
		LogLevel:           "debug",
	}
}

func ValidateClient(cfg Client) error {
	if strings.TrimSpace(cfg.Paths.ConfigDir) == "" {
		return fmt.Errorf("client config missing config dir")
	}
	if cfg.PollTimeout <= 0 || cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_timeout and poll_interval must be positive")
	}
	if cfg.PollInterval > cfg.PollTimeout {
		return fmt.Errorf("poll_interval %s exceeds poll_timeout %s", cfg.PollInterval, cfg.PollTimeout)
	}
	if cfg.LockWait <= 0 || cfg.LockInterval <= 0 {
		return fmt.Errorf("lock_wait and lock_interval must be positive")
	}
	if cfg.RPCTimeout <= 0 {
		return fmt.Errorf("rpc_timeout must be positive")
	}
	if cfg.MaxEndpointRetries < 1 {
		return fmt.Errorf("max_endpoint_retries must be at least 1")
	}
	return nil
}
