package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/danmuck/heimdallr-client/internal/fsutil"
	"github.com/rs/zerolog/log"
)

var (
	ErrMarkerTimeout  = errors.New("lock: search lock update already in progress")
	ErrPriorityLost   = errors.New("lock: another request for this database has priority")
	ErrNotClaimed     = errors.New("lock: search lock not taken before lock check")
	ErrTableMalformed = errors.New("lock: search lock table malformed")
)

const (
	TableFile  = "search.lock"
	MarkerFile = "search.lock.tmp"
)

var errMarkerHeld = errors.New("lock: marker held")

type Options struct {
	Dir string
	// PID identifies the caller in the table; defaults to os.Getpid().
	PID      int
	Wait     time.Duration
	Interval time.Duration
	// Alive reports whether a pid still runs; defaults to a platform probe.
	Alive func(pid int) bool
	Now   func() time.Time
}

func DefaultOptions(dir string) Options {
	return Options{
		Dir:      dir,
		PID:      os.Getpid(),
		Wait:     10 * time.Second,
		Interval: 500 * time.Millisecond,
		Alive:    processAlive,
		Now:      time.Now,
	}
}

// Lock is the cross-process resolution lock. Table updates are serialized by
// a marker file; the table itself is replaced by atomic rename.
type Lock struct {
	dir      string
	pid      int
	wait     time.Duration
	interval time.Duration
	alive    func(int) bool
	now      func() time.Time
}

func New(opts Options) *Lock {
	def := DefaultOptions(opts.Dir)
	if opts.PID <= 0 {
		opts.PID = def.PID
	}
	if opts.Wait <= 0 {
		opts.Wait = def.Wait
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Alive == nil {
		opts.Alive = def.Alive
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Lock{
		dir:      opts.Dir,
		pid:      opts.PID,
		wait:     opts.Wait,
		interval: opts.Interval,
		alive:    opts.Alive,
		now:      opts.Now,
	}
}

func (l *Lock) PID() int { return l.pid }

func (l *Lock) tablePath() string  { return filepath.Join(l.dir, TableFile) }
func (l *Lock) markerPath() string { return filepath.Join(l.dir, MarkerFile) }

// Guard releases a claim exactly once.
type Guard struct {
	lock *Lock
	once sync.Once
	err  error
}

// Release removes the caller's row. Safe to call more than once.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	g.once.Do(func() {
		g.err = g.lock.Release(context.Background())
	})
	return g.err
}

// Acquire claims ref and verifies this caller has priority for it. A caller
// that loses priority has its claim withdrawn before ErrPriorityLost returns.
func (l *Lock) Acquire(ctx context.Context, ref artifact.Reference) (*Guard, error) {
	if err := l.Claim(ctx, ref); err != nil {
		return nil, err
	}
	g := &Guard{lock: l}
	ok, err := l.Check(ref)
	if err == nil && !ok {
		err = ErrPriorityLost
	}
	if err != nil {
		if relErr := g.Release(); relErr != nil {
			log.Error().Err(relErr).Msg("lock.acquire release after failed check")
		}
		return nil, err
	}
	log.Info().Int("pid", l.pid).Str("ref", ref.String()).Msg("lock.acquire granted")
	return g, nil
}

// Claim inserts this caller's row.
func (l *Lock) Claim(ctx context.Context, ref artifact.Reference) error {
	return l.update(ctx, func(t Table) {
		t[l.pid] = Row{PID: l.pid, Name: ref.Name, Hash: ref.Hash, Seq: t.nextSeq()}
	})
}

// Release removes this caller's row.
func (l *Lock) Release(ctx context.Context) error {
	return l.update(ctx, func(t Table) {
		delete(t, l.pid)
	})
}

// Check reports whether this caller's claim has priority among live claims
// for the same artifact.
func (l *Lock) Check(ref artifact.Reference) (bool, error) {
	table, err := l.Rows()
	if err != nil {
		return false, err
	}
	ours, ok := table[l.pid]
	if !ok {
		return false, ErrNotClaimed
	}
	for pid, row := range table {
		if pid == l.pid || !row.sameArtifact(ours) {
			continue
		}
		if !l.alive(pid) {
			continue
		}
		if row.before(ours) {
			log.Warn().Int("pid", l.pid).Int("holder", pid).Str("ref", ref.String()).Msg("lock.check priority lost")
			return false, nil
		}
	}
	return true, nil
}

// Rows reads the current table. A missing table is empty.
func (l *Lock) Rows() (Table, error) {
	data, err := os.ReadFile(l.tablePath())
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock: read table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, nil
	}
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}

func (l *Lock) update(ctx context.Context, mutate func(Table)) (err error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("lock: ensure dir: %w", err)
	}
	token, err := l.takeMarker(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := l.dropMarker(token); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	table, err := l.Rows()
	if err != nil {
		return err
	}
	for pid := range table {
		if pid != l.pid && !l.alive(pid) {
			log.Warn().Int("pid", pid).Msg("lock.update pruning claim of exited process")
			delete(table, pid)
		}
	}
	mutate(table)

	data, err := json.Marshal(table)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(l.tablePath(), data, 0o644); err != nil {
		return fmt.Errorf("lock: write table: %w", err)
	}
	return nil
}
