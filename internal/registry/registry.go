package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/danmuck/heimdallr-client/internal/fsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound          = errors.New("registry: endpoint not found")
	ErrPollTimeout       = errors.New("registry: endpoint poll timed out")
	ErrInvalidDescriptor = errors.New("registry: invalid descriptor")
)

// DirName is the registry directory under the heimdallr config dir.
const DirName = "rpc_endpoints"

// Descriptor is the record a host process writes for its live endpoint.
//
//	{"pid": 48762, "address": "127.0.0.1:63227", "file_name": "test.i64", "file_hash": "b058de79..."}
type Descriptor struct {
	PID      int    `json:"pid"`
	Address  string `json:"address"`
	FileName string `json:"file_name"`
	FileHash string `json:"file_hash"`
}

// Validate checks the fields a client needs to reach the endpoint.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.FileHash) == "" {
		return fmt.Errorf("%w: missing file_hash", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidDescriptor)
	}
	if _, _, err := net.SplitHostPort(d.Address); err != nil {
		return fmt.Errorf("%w: address %q: %v", ErrInvalidDescriptor, d.Address, err)
	}
	return nil
}

func (d Descriptor) empty() bool {
	return d == Descriptor{}
}

// Endpoint is a descriptor plus the backing file used to evict it.
type Endpoint struct {
	Descriptor
	Path string
}

// Registry reads and prunes endpoint descriptors in one directory.
type Registry struct {
	dir string
}

// New returns a registry rooted at dir. The directory need not exist.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

func (r *Registry) Dir() string {
	return r.dir
}

// Find returns the first descriptor in file name order matching ref.
func (r *Registry) Find(ctx context.Context, ref artifact.Reference) (Endpoint, error) {
	paths, err := r.paths()
	if err != nil {
		return Endpoint{}, err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Endpoint{}, err
		}
		desc, ok := r.read(path)
		if !ok {
			continue
		}
		if !ref.Compat() && desc.FileName != ref.Name {
			continue
		}
		if !ref.MatchHash(desc.FileHash) {
			continue
		}
		if err := desc.Validate(); err != nil {
			log.Error().Str("path", path).Err(err).Msg("registry.find malformed endpoint")
			continue
		}
		log.Info().Str("file", desc.FileName).Str("path", path).Msg("registry.find matched endpoint")
		return Endpoint{Descriptor: desc, Path: path}, nil
	}
	log.Info().Str("ref", ref.String()).Msg("registry.find no endpoint")
	return Endpoint{}, ErrNotFound
}

// List returns every valid descriptor in file name order.
func (r *Registry) List(ctx context.Context) ([]Endpoint, error) {
	paths, err := r.paths()
	if err != nil {
		return nil, err
	}
	out := make([]Endpoint, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		desc, ok := r.read(path)
		if !ok {
			continue
		}
		if err := desc.Validate(); err != nil {
			log.Warn().Str("path", path).Err(err).Msg("registry.list skipping descriptor")
			continue
		}
		out = append(out, Endpoint{Descriptor: desc, Path: path})
	}
	return out, nil
}

// Evict deletes the descriptor backing ep.
func (r *Registry) Evict(ep Endpoint) error {
	if strings.TrimSpace(ep.Path) == "" {
		return fmt.Errorf("%w: endpoint has no backing file", ErrInvalidDescriptor)
	}
	if err := os.Remove(ep.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("registry: evict %s: %w", ep.Path, err)
	}
	log.Warn().Str("address", ep.Address).Str("path", ep.Path).Msg("registry.evict removed endpoint")
	return nil
}

// Publish writes desc under a fresh opaque name. Host-side integrations use it
// to register an endpoint.
func (r *Registry) Publish(desc Descriptor) (Endpoint, error) {
	if err := desc.Validate(); err != nil {
		return Endpoint{}, err
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return Endpoint{}, err
	}
	path := filepath.Join(r.dir, uuid.NewString()+".json")
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return Endpoint{}, fmt.Errorf("registry: publish: %w", err)
	}
	return Endpoint{Descriptor: desc, Path: path}, nil
}

// paths lists candidate descriptor files sorted by name. A missing registry
// directory means no live endpoints.
func (r *Registry) paths() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("dir", r.dir).Msg("registry directory not found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", r.dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		// in-flight atomic writes
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, filepath.Join(r.dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (r *Registry) read(path string) (Descriptor, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("registry unreadable descriptor")
		return Descriptor{}, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Descriptor{}, false
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("registry malformed descriptor")
		return Descriptor{}, false
	}
	if desc.empty() {
		return Descriptor{}, false
	}
	return desc, true
}
