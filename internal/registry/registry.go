package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gqlherd/internal/graphql"
)

// Outcome is the settled result of one submitted request: exactly one
// of Response/Err is meaningful per the error, and Attempts records how
// many round trips were spent obtaining it.
type Outcome struct {
	Response *graphql.Response
	Err      error
	Attempts int
}

// Handle is the channel a caller waits on for its outcome.
// Buffered with capacity 1 so Settle never blocks on an abandoned caller.
type Handle chan Outcome

// Registry correlates in-flight request ids with their outcome handles.
// It is owned by one Batcher instance; its size is a direct proxy for
// the number of requests currently anywhere in the pipeline.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
	misses  atomic.Int64
	logger  zerolog.Logger
}

// New creates a new Registry
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		handles: make(map[string]Handle),
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// Register inserts a new (id, handle) pair. A duplicate id means two
// requests were issued the same correlation key, which is a programmer
// error, so it panics rather than silently clobbering a pending caller.
func (r *Registry) Register(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[id]; exists {
		panic(fmt.Sprintf("registry: duplicate register for id %s", id))
	}
	r.handles[id] = h
}

// Settle looks up and removes the handle for id, then delivers the
// outcome. The lookup-and-remove is atomic, so a second Settle for the
// same id finds nothing and returns false; this is the structural guard
// against double resolution.
func (r *Registry) Settle(id string, out Outcome) bool {
	r.mu.Lock()
	h, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()

	if !ok {
		r.misses.Add(1)
		r.logger.Warn().Str("id", id).Msg("settle for unknown id, outcome discarded")
		return false
	}

	h <- out
	return true
}

// Len returns the number of outstanding handles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Misses returns how many settles found no handle. Non-zero values
// indicate a correlation defect; exposed for tests and metrics.
func (r *Registry) Misses() int64 {
	return r.misses.Load()
}
