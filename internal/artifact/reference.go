// Package artifact holds the identity of a database the caller wants to reach.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extensions recognised as native database containers.
var Extensions = []string{"idb", "i64"}

// Reference identifies an artifact by optional name and required content hash.
// An empty Name is compatibility mode: matching falls back to hash only.
type Reference struct {
	Name string
	Hash string
}

func (r Reference) Compat() bool {
	return r.Name == ""
}

// MatchHash compares hex digests case-insensitively.
func (r Reference) MatchHash(hash string) bool {
	return strings.EqualFold(strings.TrimSpace(hash), strings.TrimSpace(r.Hash))
}

// MatchName reports whether name satisfies the reference. Compatibility mode
// matches every name.
func (r Reference) MatchName(name string) bool {
	return r.Compat() || name == r.Name
}

func (r Reference) String() string {
	name := r.Name
	if name == "" {
		name = "<compat>"
	}
	return fmt.Sprintf("%s:%s", name, r.Hash)
}

// HasExtension reports whether path ends in a recognised container extension.
func HasExtension(path string) bool {
	base := filepath.Base(path)
	if len(base) < 3 {
		return false
	}
	tail := base[len(base)-3:]
	for _, ext := range Extensions {
		if tail == ext {
			return true
		}
	}
	return false
}

// AdoptExtension appends the extension implied by the last four characters of
// name. Files opened for the first time are recorded without the container
// extension.
func AdoptExtension(path, name string) string {
	if len(name) < 4 {
		return path + name
	}
	return path + name[len(name)-4:]
}
