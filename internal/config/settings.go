package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrSettingsMissing = errors.New("config: settings not found")
	ErrSettingsInvalid = errors.New("config: settings malformed")
)

// Settings is the installer-written settings.json.
type Settings struct {
	// IDBPaths are the search roots for databases.
	IDBPaths    []string `json:"idb_path"`
	IDALocation string   `json:"ida_location"`
	// HashCommand, when set, computes an artifact's content hash; the
	// candidate path is appended as the final argument.
	HashCommand []string `json:"hash_command,omitempty"`
}

var requiredSettings = []string{"idb_path", "ida_location"}

func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("%w: %s", ErrSettingsMissing, path)
		}
		return Settings{}, fmt.Errorf("%w: read %s: %v", ErrSettingsMissing, path, err)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (Settings, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrSettingsInvalid, err)
	}
	for _, key := range requiredSettings {
		if _, ok := keys[key]; !ok {
			return Settings{}, fmt.Errorf("%w: missing key %q", ErrSettingsInvalid, key)
		}
	}

	var s Settings
	if err := json.Unmarshal(keys["ida_location"], &s.IDALocation); err != nil {
		return Settings{}, fmt.Errorf("%w: ida_location: %v", ErrSettingsInvalid, err)
	}
	// Older installers wrote a single search root as a string.
	var single string
	if err := json.Unmarshal(keys["idb_path"], &single); err == nil {
		s.IDBPaths = []string{single}
	} else if err := json.Unmarshal(keys["idb_path"], &s.IDBPaths); err != nil {
		return Settings{}, fmt.Errorf("%w: idb_path: %v", ErrSettingsInvalid, err)
	}
	if raw, ok := keys["hash_command"]; ok {
		if err := json.Unmarshal(raw, &s.HashCommand); err != nil {
			return Settings{}, fmt.Errorf("%w: hash_command: %v", ErrSettingsInvalid, err)
		}
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.IDALocation) == "" {
		return fmt.Errorf("%w: ida_location is empty", ErrSettingsInvalid)
	}
	return nil
}
