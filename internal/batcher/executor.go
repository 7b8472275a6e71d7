package batcher

import (
	"fmt"
	"sync"
	"time"

	"gqlherd/internal/metrics"
)

// run executes one closed batch. Every member settles independently:
// one member failing terminally never cancels or taints its siblings.
func (b *Batcher) run(batch []*pendingRequest) {
	b.metrics.ObserveBatch(len(batch))
	b.logger.Debug().
		Int("size", len(batch)).
		Dur("oldest", time.Since(batch[0].enqueuedAt)).
		Msg("dispatching batch")

	if b.runner == nil {
		// The dispatch mechanism itself cannot execute anything; every
		// member gets the same rejection and none is left unsettled.
		b.rejectAll(batch, fmt.Errorf("%w: no runner configured", ErrDispatch))
		return
	}

	if len(batch) == 1 {
		// No concurrency bookkeeping for the common low-traffic case
		b.execOne(batch[0], false)
		return
	}

	var wg sync.WaitGroup
	for _, p := range batch {
		wg.Add(1)
		go func(p *pendingRequest) {
			defer wg.Done()
			b.execOne(p, false)
		}(p)
	}
	wg.Wait()

	b.logger.Debug().Int("size", len(batch)).Msg("batch settled")
}

// execOne runs one member to completion and settles its handle
func (b *Batcher) execOne(p *pendingRequest, fresh bool) {
	start := time.Now()
	resp, attempts, err := b.runner.Execute(b.ctx, p.req, fresh)

	outcome := metrics.OutcomeResolved
	if err != nil {
		outcome = metrics.OutcomeRejected
	}

	if !b.reg.Settle(p.id, Outcome{Response: resp, Err: err, Attempts: attempts}) {
		b.metrics.IncSettleMiss()
	}
	b.metrics.ObserveQuery(outcome, attempts, time.Since(start))
}

// rejectAll settles every member of a batch with the same cause
func (b *Batcher) rejectAll(batch []*pendingRequest, err error) {
	b.logger.Error().Err(err).Int("size", len(batch)).Msg("rejecting entire batch")
	for _, p := range batch {
		if !b.reg.Settle(p.id, Outcome{Err: err}) {
			b.metrics.IncSettleMiss()
		}
		b.metrics.ObserveQuery(metrics.OutcomeRejected, 0, 0)
	}
}
