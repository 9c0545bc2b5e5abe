package lock

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row is one process's active resolution claim.
type Row struct {
	PID  int
	Name string
	Hash string
	// Seq orders claims; rows written by older clients carry 0.
	Seq uint64
}

// Table maps claiming pid to its row.
type Table map[int]Row

func (r Row) sameArtifact(o Row) bool {
	return r.Name == o.Name && strings.EqualFold(r.Hash, o.Hash)
}

// before reports whether r has priority over o: earlier claim first, pid as
// the tie-break.
func (r Row) before(o Row) bool {
	if r.Seq != o.Seq {
		return r.Seq < o.Seq
	}
	return r.PID < o.PID
}

func (t Table) nextSeq() uint64 {
	var max uint64
	for _, row := range t {
		if row.Seq > max {
			max = row.Seq
		}
	}
	return max + 1
}

// Sorted returns rows in priority order.
func (t Table) Sorted() []Row {
	out := make([]Row, 0, len(t))
	for _, row := range t {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// MarshalJSON writes {"<pid>": [name, hash, seq]}. Compatibility-mode claims
// have a null name.
func (t Table) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]any, len(t))
	for pid, row := range t {
		var name any
		if row.Name != "" {
			name = row.Name
		}
		raw[strconv.Itoa(pid)] = []any{name, row.Hash, row.Seq}
	}
	return json.Marshal(raw)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrTableMalformed, err)
	}
	out := make(Table, len(raw))
	for key, parts := range raw {
		pid, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: pid %q", ErrTableMalformed, key)
		}
		if len(parts) < 2 || len(parts) > 3 {
			return fmt.Errorf("%w: pid %d has %d fields", ErrTableMalformed, pid, len(parts))
		}
		row := Row{PID: pid}
		var name *string
		if err := json.Unmarshal(parts[0], &name); err != nil {
			return fmt.Errorf("%w: pid %d name: %v", ErrTableMalformed, pid, err)
		}
		if name != nil {
			row.Name = *name
		}
		var hash *string
		if err := json.Unmarshal(parts[1], &hash); err != nil {
			return fmt.Errorf("%w: pid %d hash: %v", ErrTableMalformed, pid, err)
		}
		if hash != nil {
			row.Hash = *hash
		}
		if len(parts) == 3 {
			if err := json.Unmarshal(parts[2], &row.Seq); err != nil {
				return fmt.Errorf("%w: pid %d seq: %v", ErrTableMalformed, pid, err)
			}
		}
		out[pid] = row
	}
	*t = out
	return nil
}
