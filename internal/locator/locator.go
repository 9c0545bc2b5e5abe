package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("locator: artifact not found")

type Options struct {
	// UserDir holds the host's recency index files.
	UserDir     string
	SearchRoots []string
	Hasher      Hasher
}

// Locator finds an artifact on disk by name and content hash.
type Locator struct {
	userDir string
	roots   []string
	hasher  Hasher
}

func New(opts Options) *Locator {
	hasher := opts.Hasher
	if hasher == nil {
		hasher = FileMD5{}
	}
	roots := make([]string, 0, len(opts.SearchRoots))
	for _, root := range opts.SearchRoots {
		if root = strings.TrimSpace(root); root != "" {
			roots = append(roots, root)
		}
	}
	return &Locator{userDir: opts.UserDir, roots: roots, hasher: hasher}
}

// Locate searches the recency index, then the search roots. Every path it
// returns is either bound to ref's hash by the current index or verified by
// hashing the file.
func (l *Locator) Locate(ctx context.Context, ref artifact.Reference) (string, error) {
	path, err := l.searchHistory(ctx, ref)
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	path, err = l.searchRoots(ctx, ref)
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func (l *Locator) searchHistory(ctx context.Context, ref artifact.Reference) (string, error) {
	var candidates []string

	idx, err := LoadIndex(l.userDir)
	switch {
	case err == nil:
		log.Info().Int("files", len(idx.Files)).Msg("locator.history loaded index")
		if path := matchHashTable(idx.HashTable, ref); path != "" {
			log.Info().Str("path", path).Msg("locator.history hash table match")
			return path, nil
		}
		candidates = append(candidates, idx.Files...)
	case errors.Is(err, ErrIndexMissing):
		log.Warn().Err(err).Msg("locator.history index missing")
	default:
		log.Warn().Err(err).Msg("locator.history index unusable, trying legacy")
	}

	legacy, err := LoadLegacyIndex(l.userDir)
	switch {
	case err == nil:
		log.Info().Int("files", len(legacy)).Msg("locator.history loaded legacy index")
		candidates = append(candidates, legacy...)
	case errors.Is(err, ErrIndexMissing):
		log.Debug().Err(err).Msg("locator.history legacy index missing")
	default:
		log.Warn().Err(err).Msg("locator.history legacy index unusable")
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}

		path := item
		if !ref.Compat() && !artifact.HasExtension(path) {
			path = artifact.AdoptExtension(path, ref.Name)
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if !ref.MatchName(filepath.Base(path)) {
			continue
		}
		if !l.verify(ctx, path, ref) {
			continue
		}
		log.Info().Str("path", path).Msg("locator.history verified match")
		return path, nil
	}
	log.Info().Str("ref", ref.String()).Msg("locator.history no match")
	return "", nil
}

// matchHashTable scans in path order so equal hashes resolve deterministically.
func matchHashTable(table map[string]string, ref artifact.Reference) string {
	paths := make([]string, 0, len(table))
	for path := range table {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if !ref.MatchHash(table[path]) {
			continue
		}
		if !ref.MatchName(filepath.Base(path)) {
			continue
		}
		return path
	}
	return ""
}

func (l *Locator) searchRoots(ctx context.Context, ref artifact.Reference) (string, error) {
	if len(l.roots) == 0 {
		log.Error().Msg("locator.roots no search roots configured")
		return "", nil
	}
	matcher, err := nameMatcher(ref)
	if err != nil {
		return "", err
	}
	log.Info().Int("roots", len(l.roots)).Str("ref", ref.String()).Msg("locator.roots searching")

	for _, root := range l.roots {
		if _, err := os.Stat(root); err != nil {
			log.Warn().Str("root", root).Msg("locator.roots root does not exist")
			continue
		}
		found := ""
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !matcher.Match(d.Name()) {
				return nil
			}
			if !l.verify(ctx, path, ref) {
				return nil
			}
			found = path
			return fs.SkipAll
		})
		if walkErr != nil {
			return "", walkErr
		}
		if found != "" {
			log.Info().Str("path", found).Msg("locator.roots verified match")
			return found, nil
		}
	}
	log.Info().Str("ref", ref.String()).Msg("locator.roots no match")
	return "", nil
}

func nameMatcher(ref artifact.Reference) (glob.Glob, error) {
	pattern := "*.{" + strings.Join(artifact.Extensions, ",") + "}"
	if !ref.Compat() {
		pattern = glob.QuoteMeta(ref.Name)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("locator: compile pattern %q: %w", pattern, err)
	}
	return g, nil
}

func (l *Locator) verify(ctx context.Context, path string, ref artifact.Reference) bool {
	hash, err := l.hasher.Hash(ctx, path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("locator.verify hash failed")
		return false
	}
	ok := ref.MatchHash(hash)
	log.Debug().Str("path", path).Bool("match", ok).Msg("locator.verify")
	return ok
}
