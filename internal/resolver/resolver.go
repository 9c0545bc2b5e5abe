// Package resolver drives one request from reference to a completed jump:
// lock, find or launch, poll, call, evict and retry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/danmuck/heimdallr-client/internal/launcher"
	"github.com/danmuck/heimdallr-client/internal/lock"
	"github.com/danmuck/heimdallr-client/internal/observability"
	"github.com/danmuck/heimdallr-client/internal/registry"
	"github.com/danmuck/heimdallr-client/internal/rpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrTooManyInvalidEndpoints = errors.New("resolver: too many invalid endpoints")

const DefaultMaxEndpointRetries = 3

type Lock interface {
	Acquire(ctx context.Context, ref artifact.Reference) (*lock.Guard, error)
}

type Registry interface {
	Find(ctx context.Context, ref artifact.Reference) (registry.Endpoint, error)
	Wait(ctx context.Context, ref artifact.Reference, opts registry.WaitOptions) (registry.Endpoint, error)
	Evict(ep registry.Endpoint) error
}

type Locator interface {
	Locate(ctx context.Context, ref artifact.Reference) (string, error)
}

type Caller interface {
	GoTo(ctx context.Context, address string, target rpc.Target) (string, error)
}

type Options struct {
	Lock     Lock
	Registry Registry
	Locator  Locator
	Platform launcher.Platform
	Caller   Caller

	// App is the host executable handed to Platform.Launch.
	App                string
	Wait               registry.WaitOptions
	MaxEndpointRetries int
	Metrics            *observability.Metrics
	Logger             *zerolog.Logger
}

// Request is one resolution input.
type Request struct {
	Ref    artifact.Reference
	Target rpc.Target
}

// Result describes how a resolution ended.
type Result struct {
	State    State
	Endpoint registry.Endpoint
	Launched bool
	// Attempts counts RPC calls, including those against evicted endpoints.
	Attempts int
	Response string
}

type Coordinator struct {
	lock       Lock
	registry   Registry
	locator    Locator
	platform   launcher.Platform
	caller     Caller
	app        string
	wait       registry.WaitOptions
	maxRetries int
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func New(opts Options) *Coordinator {
	if opts.MaxEndpointRetries <= 0 {
		opts.MaxEndpointRetries = DefaultMaxEndpointRetries
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Coordinator{
		lock:       opts.Lock,
		registry:   opts.Registry,
		locator:    opts.Locator,
		platform:   opts.Platform,
		caller:     opts.Caller,
		app:        opts.App,
		wait:       opts.Wait.WithDefaults(),
		maxRetries: opts.MaxEndpointRetries,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// run tracks the state of a single Resolve call.
type run struct {
	c      *Coordinator
	req    Request
	res    Result
	logger zerolog.Logger
}

func (r *run) to(next State) {
	r.logger.Debug().Str("from", r.res.State.String()).Str("to", next.String()).Msg("resolver.transition")
	r.res.State = next
}

func (r *run) fail(err error) (Result, error) {
	r.logger.Error().Err(err).Str("state", r.res.State.String()).Msg("resolver.failed")
	r.res.State = StateFailed
	return r.res, err
}

// Resolve runs the full protocol for req. The lock is held for the whole
// call and released on every return path.
func (c *Coordinator) Resolve(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	r := &run{
		c:      c,
		req:    req,
		res:    Result{State: StateIdle},
		logger: c.logger.With().Str("ref", req.Ref.String()).Logger(),
	}
	defer func() {
		c.metrics.RecordResolution(res.State.String(), time.Since(start))
	}()

	guard, err := c.lock.Acquire(ctx, req.Ref)
	if err != nil {
		return r.fail(err)
	}
	defer func() {
		if relErr := guard.Release(); relErr != nil {
			r.logger.Error().Err(relErr).Msg("resolver.release")
		}
	}()
	r.to(StateLocked)

	evicted := 0
	for {
		r.to(StateLocating)
		ep, err := c.registry.Find(ctx, req.Ref)
		switch {
		case err == nil:
			r.to(StateEndpointFound)
		case errors.Is(err, registry.ErrNotFound):
			ep, err = r.launchAndPoll(ctx)
			if err != nil {
				return r.fail(err)
			}
		default:
			return r.fail(err)
		}

		r.res.Endpoint = ep
		r.res.Attempts++
		r.to(StateConnected)
		resp, err := c.caller.GoTo(ctx, ep.Address, req.Target)
		if err == nil {
			r.res.Response = resp
			r.to(StateDone)
			r.logger.Info().Str("address", ep.Address).Str("response", resp).Msg("resolver.done")
			return r.res, nil
		}
		if !rpc.IsUnavailable(err) {
			return r.fail(err)
		}

		r.logger.Warn().Err(err).Str("address", ep.Address).Str("path", ep.Path).Msg("resolver.evict")
		if evictErr := c.registry.Evict(ep); evictErr != nil {
			return r.fail(evictErr)
		}
		c.metrics.RecordEviction()
		evicted++
		if evicted >= c.maxRetries {
			return r.fail(fmt.Errorf("%w: %d endpoints unavailable", ErrTooManyInvalidEndpoints, evicted))
		}
	}
}

func (r *run) launchAndPoll(ctx context.Context) (registry.Endpoint, error) {
	c := r.c
	r.to(StateLaunching)
	path, err := c.locator.Locate(ctx, r.req.Ref)
	if err != nil {
		return registry.Endpoint{}, err
	}
	r.logger.Info().Str("path", path).Str("app", c.app).Msg("resolver.launch")
	err = c.platform.Launch(ctx, c.app, path)
	c.metrics.RecordLaunch(err == nil)
	if err != nil {
		return registry.Endpoint{}, err
	}
	r.res.Launched = true

	r.to(StatePolling)
	return c.registry.Wait(ctx, r.req.Ref, c.wait)
}
