package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gqlherd/internal/graphql"
	"gqlherd/internal/transport"
)

// Sender performs one physical round trip (implemented by transport.Client)
type Sender interface {
	Send(ctx context.Context, req *graphql.Request, fresh bool) (*graphql.Response, error)
}

// Config holds retry and timeout configuration
type Config struct {
	Timeout    time.Duration // per-attempt timeout
	MaxRetries int           // transient-error retries after the first attempt
	BaseDelay  time.Duration // base of the exponential backoff
}

// Executor executes single requests with a per-attempt timeout and
// classified retry with exponential backoff.
type Executor struct {
	sender Sender
	config Config
	logger zerolog.Logger
}

// New creates a new Executor
func New(sender Sender, cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{
		sender: sender,
		config: cfg,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Execute sends the request, retrying transient failures up to
// MaxRetries times with backoff BaseDelay * 2^attempt between attempts.
// Permanent failures propagate immediately. The returned attempt count
// includes the first attempt, so a first-try success reports 1.
//
// The retry is an explicit bounded loop rather than recursion: attempt
// counts stay directly observable and the stack stays flat no matter
// how the upstream misbehaves.
func (e *Executor) Execute(ctx context.Context, req *graphql.Request, fresh bool) (*graphql.Response, int, error) {
	var lastErr error
	var lastResp *graphql.Response

	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		resp, err := e.sender.Send(attemptCtx, req, fresh)
		cancel()

		if err == nil {
			return resp, attempt + 1, nil
		}

		lastErr = err
		lastResp = resp

		if transport.IsPermanent(err) {
			e.logger.Debug().
				Err(err).
				Str("operation", req.OperationName).
				Int("attempt", attempt+1).
				Msg("permanent error, not retrying")
			return lastResp, attempt + 1, lastErr
		}

		if ctx.Err() != nil {
			return lastResp, attempt + 1, ctx.Err()
		}

		if attempt >= e.config.MaxRetries {
			e.logger.Warn().
				Err(err).
				Str("operation", req.OperationName).
				Int("attempts", attempt+1).
				Msg("retries exhausted")
			return lastResp, attempt + 1, lastErr
		}

		delay := e.config.BaseDelay << uint(attempt)
		e.logger.Warn().
			Err(err).
			Str("operation", req.OperationName).
			Int("attempt", attempt+1).
			Int("maxRetries", e.config.MaxRetries).
			Dur("backoff", delay).
			Msg("transient error, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastResp, attempt + 1, ctx.Err()
		}
	}
}
