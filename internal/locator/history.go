package locator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	IndexFile       = "history.2.json"
	LegacyIndexFile = "history.json"
)

var (
	ErrIndexMissing   = errors.New("locator: recency index not found")
	ErrIndexMalformed = errors.New("locator: recency index malformed")
)

// Index is the current recency index shape: recently opened databases plus
// the input hash recorded for each of them by the host plugin.
type Index struct {
	Files     []string
	HashTable map[string]string
}

// LoadIndex reads the current shape. Both keys must be present.
func LoadIndex(userDir string) (Index, error) {
	path := filepath.Join(userDir, IndexFile)
	data, err := readIndexFile(path)
	if err != nil {
		return Index{}, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Index{}, fmt.Errorf("%w: %s: %v", ErrIndexMalformed, path, err)
	}
	filesRaw, ok := raw["files"]
	if !ok {
		return Index{}, fmt.Errorf("%w: %s: missing files", ErrIndexMalformed, path)
	}
	tableRaw, ok := raw["hash_table"]
	if !ok {
		return Index{}, fmt.Errorf("%w: %s: missing hash_table", ErrIndexMalformed, path)
	}
	var idx Index
	if err := json.Unmarshal(filesRaw, &idx.Files); err != nil {
		return Index{}, fmt.Errorf("%w: %s: files: %v", ErrIndexMalformed, path, err)
	}
	if err := json.Unmarshal(tableRaw, &idx.HashTable); err != nil {
		return Index{}, fmt.Errorf("%w: %s: hash_table: %v", ErrIndexMalformed, path, err)
	}
	return idx, nil
}

// LoadLegacyIndex reads the legacy shape: an ordered list of paths.
func LoadLegacyIndex(userDir string) ([]string, error) {
	path := filepath.Join(userDir, LegacyIndexFile)
	data, err := readIndexFile(path)
	if err != nil {
		return nil, err
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexMalformed, path, err)
	}
	return files, nil
}

func readIndexFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("locator: read %s: %w", path, err)
	}
	return data, nil
}
