package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvHome    = "HEIMDALLR_HOME"
	EnvUserDir = "IDAUSR"

	SettingsFile = "settings.json"
	ClientFile   = "client.toml"
	LogFile      = "client.log"
)

var ErrNoHome = errors.New("config: cannot determine home directory")

// Paths are the two directories the client reads from.
type Paths struct {
	// ConfigDir holds settings, the lock files, the log and rpc_endpoints.
	ConfigDir string
	// UserDir is the host's per-user directory with its recency index.
	UserDir string
}

// ResolvePaths derives the directories for goos from the environment.
func ResolvePaths(goos string, getenv func(string) string) (Paths, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var p Paths
	if v := strings.TrimSpace(getenv(EnvHome)); v != "" {
		p.ConfigDir = v
	}
	if v := strings.TrimSpace(getenv(EnvUserDir)); v != "" {
		p.UserDir = v
	}
	if p.ConfigDir != "" && p.UserDir != "" {
		return p, nil
	}

	if goos == "windows" {
		appData := strings.TrimSpace(getenv("APPDATA"))
		if appData == "" {
			return Paths{}, fmt.Errorf("%w: APPDATA is not set", ErrNoHome)
		}
		p.ConfigDir = firstNonEmpty(p.ConfigDir, filepath.Join(appData, "heimdallr"))
		p.UserDir = firstNonEmpty(p.UserDir, filepath.Join(appData, "Hex-Rays", "IDA Pro"))
		return p, nil
	}
	home := strings.TrimSpace(getenv("HOME"))
	if home == "" {
		return Paths{}, fmt.Errorf("%w: HOME is not set", ErrNoHome)
	}
	p.ConfigDir = firstNonEmpty(p.ConfigDir, filepath.Join(home, ".config", "heimdallr"))
	p.UserDir = firstNonEmpty(p.UserDir, filepath.Join(home, ".idapro"))
	return p, nil
}

// Ensure creates the config directory when it is missing.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", p.ConfigDir, err)
	}
	return nil
}

func (p Paths) SettingsPath() string { return filepath.Join(p.ConfigDir, SettingsFile) }
func (p Paths) ClientPath() string   { return filepath.Join(p.ConfigDir, ClientFile) }
func (p Paths) LogPath() string      { return filepath.Join(p.ConfigDir, LogFile) }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
