package batcher

import (
	"context"
	"errors"
	"time"

	"gqlherd/internal/graphql"
	"gqlherd/internal/registry"
)

// Outcome is the settled result delivered on a submission's channel;
// same type the registry stores.
type Outcome = registry.Outcome

// ErrDispatch marks a failure of the dispatch mechanism itself, fanned
// out to every member of the affected batch.
var ErrDispatch = errors.New("batch dispatch failed")

// ErrClosed is returned for submissions after the batcher is closed
var ErrClosed = errors.New("batcher closed")

// Runner executes one request to completion, retries included
// (implemented by executor.Executor).
type Runner interface {
	Execute(ctx context.Context, req *graphql.Request, fresh bool) (*graphql.Response, int, error)
}

// Config holds batching configuration
type Config struct {
	Window  time.Duration // time a batch stays open before a forced flush
	MaxSize int           // item count that forces an immediate flush
}

// pendingRequest is one caller's unit of work inside an open batch
type pendingRequest struct {
	id         string
	req        *graphql.Request
	enqueuedAt time.Time
}
