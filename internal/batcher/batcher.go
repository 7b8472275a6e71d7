// Package batcher coalesces concurrent logical requests into
// time-windowed, size-capped batches against a rate-limited upstream.
//
// A submission lands in the open batch; the first item arms a window
// timer, and either the timer firing or the batch reaching its size cap
// flushes it to the dispatch path. Every member is executed
// independently and its caller's handle is settled exactly once through
// the correlation registry. Fresh-required submissions (draft content)
// skip batching entirely and go straight to the runner.
package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gqlherd/internal/graphql"
	"gqlherd/internal/metrics"
	"gqlherd/internal/registry"
)

// Batcher owns the open batch, the window timer and the correlation
// registry for every request it has accepted.
type Batcher struct {
	config  Config
	runner  Runner
	reg     *registry.Registry
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.Mutex
	open   []*pendingRequest
	timer  *time.Timer
	gen    uint64 // open-batch generation, guards stale timer callbacks
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Batcher
func New(cfg Config, runner Runner, reg *registry.Registry, m *metrics.Metrics, logger zerolog.Logger) *Batcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		config:  cfg,
		runner:  runner,
		reg:     reg,
		metrics: m,
		logger:  logger.With().Str("component", "batcher").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Registry returns the correlation registry owned by this batcher
func (b *Batcher) Registry() *registry.Registry {
	return b.reg
}

// Submit accepts one logical request and returns the channel its
// outcome will be delivered on. It never blocks: the handle is
// registered before the call returns, so no settlement can race ahead
// of registration.
//
// Submit takes no caller context on purpose: once submitted, the work
// runs to completion whether or not the caller keeps waiting. A caller
// that gives up simply stops reading its channel.
func (b *Batcher) Submit(query string, variables map[string]any, fresh bool) <-chan Outcome {
	id := uuid.NewString()
	handle := make(registry.Handle, 1)
	b.reg.Register(id, handle)

	req := graphql.NewRequest(query, variables)
	req.OperationName = graphql.OperationName(query)

	if fresh {
		b.metrics.IncBypass()
		b.submitBypass(id, req)
		return handle
	}

	p := &pendingRequest{
		id:         id,
		req:        req,
		enqueuedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.reg.Settle(id, Outcome{Err: ErrClosed})
		return handle
	}

	b.open = append(b.open, p)

	if len(b.open) == 1 {
		gen := b.gen
		b.timer = time.AfterFunc(b.config.Window, func() {
			b.flushGen(gen)
		})
	}

	var full []*pendingRequest
	if len(b.open) >= b.config.MaxSize {
		// Size trigger wins over a concurrently firing timer: the batch
		// is taken here under the same mutex the timer path uses, so
		// the late arrival finds an empty open batch and no-ops.
		full = b.takeLocked()
	}
	b.mu.Unlock()

	if full != nil {
		b.dispatch(full)
	}

	return handle
}

// submitBypass routes a fresh-required request straight to the runner,
// never touching the open batch. It still settles through the registry
// so the in-flight accounting stays uniform.
func (b *Batcher) submitBypass(id string, req *graphql.Request) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.reg.Settle(id, Outcome{Err: ErrClosed})
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	if b.runner == nil {
		b.wg.Done()
		b.reg.Settle(id, Outcome{Err: fmt.Errorf("%w: no runner configured", ErrDispatch)})
		return
	}

	b.logger.Debug().Str("id", id).Str("operation", req.OperationName).Msg("bypassing batch for fresh request")

	go func() {
		defer b.wg.Done()
		b.execOne(&pendingRequest{id: id, req: req, enqueuedAt: time.Now()}, true)
	}()
}

// flushGen flushes the open batch if it still belongs to generation
// gen. A stale timer whose batch was already taken by the size trigger
// finds a newer generation and does nothing.
func (b *Batcher) flushGen(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	if batch != nil {
		b.dispatch(batch)
	}
}

// takeLocked closes the open batch and starts a fresh empty one,
// reserving a slot in the dispatch wait group so Close cannot slip in
// between take and dispatch. Returns nil if there is nothing to take.
// Caller must hold b.mu and hand a non-nil result to dispatch.
func (b *Batcher) takeLocked() []*pendingRequest {
	if len(b.open) == 0 {
		return nil
	}

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++

	batch := b.open
	b.open = nil
	b.wg.Add(1)
	return batch
}

// dispatch hands a closed batch to the run loop on its own goroutine
func (b *Batcher) dispatch(batch []*pendingRequest) {
	go func() {
		defer b.wg.Done()
		b.run(batch)
	}()
}

// Close flushes the open batch, refuses further submissions and waits
// for every in-flight request to settle or ctx to expire.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	batch := b.takeLocked()
	b.mu.Unlock()

	if batch != nil {
		b.dispatch(batch)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	b.cancel()
	b.logger.Info().Int64("settleMisses", b.reg.Misses()).Msg("batcher closed")
	return err
}
