package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WaitOptions bounds an endpoint poll.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:  32 * time.Second,
		Interval: 500 * time.Millisecond,
	}
}

func (o WaitOptions) WithDefaults() WaitOptions {
	def := DefaultWaitOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	return o
}

// Wait polls for an endpoint matching ref until one appears or the timeout
// elapses. Registry directory events wake the poll early.
func (r *Registry) Wait(ctx context.Context, ref artifact.Reference, opts WaitOptions) (Endpoint, error) {
	opts = opts.WithDefaults()
	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	wake := r.watch(pollCtx)
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(opts.Interval), pollCtx))
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-pollCtx.Done():
			return Endpoint{}, r.waitErr(ctx, ref, opts, attempt)
		case _, ok := <-ticker.C:
			if !ok {
				return Endpoint{}, r.waitErr(ctx, ref, opts, attempt)
			}
		case <-wake:
		}

		attempt++
		log.Debug().Int("attempt", attempt).Str("ref", ref.String()).Msg("registry.wait poll")
		ep, err := r.Find(pollCtx, ref)
		if err == nil {
			return ep, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return Endpoint{}, err
		}
	}
}

func (r *Registry) waitErr(parent context.Context, ref artifact.Reference, opts WaitOptions, attempts int) error {
	if err := parent.Err(); err != nil {
		return err
	}
	log.Error().Str("ref", ref.String()).Int("attempts", attempts).Dur("timeout", opts.Timeout).Msg("registry.wait timed out")
	return fmt.Errorf("%w after %s", ErrPollTimeout, opts.Timeout)
}

// watch returns a channel signalled on registry directory changes, or nil
// when the directory cannot be watched.
func (r *Registry) watch(ctx context.Context) <-chan struct{} {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug().Err(err).Msg("registry.watch unavailable")
		return nil
	}
	if err := watcher.Add(r.dir); err != nil {
		_ = watcher.Close()
		log.Debug().Str("dir", r.dir).Err(err).Msg("registry.watch falling back to polling")
		return nil
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug().Err(err).Msg("registry.watch error")
			}
		}
	}()
	return wake
}
