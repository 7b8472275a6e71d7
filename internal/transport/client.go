package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gqlherd/internal/graphql"
)

// Client performs one physical round trip per call against a single
// upstream GraphQL endpoint.
type Client struct {
	endpoint   string
	headers    map[string]string
	httpClient *http.Client
	cache      *ResponseCache
	logger     zerolog.Logger
}

// Config for creating a new Client
type Config struct {
	Endpoint string
	Headers  map[string]string
	Cache    *ResponseCache
	Logger   zerolog.Logger
}

// NewClient creates a new transport client.
// Per-attempt timeouts are the caller's concern, passed via context;
// the underlying http.Client carries no timeout of its own.
func NewClient(cfg Config) *Client {
	httpTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		headers:    cfg.Headers,
		httpClient: &http.Client{Transport: httpTransport},
		cache:      cfg.Cache,
		logger:     cfg.Logger.With().Str("component", "transport").Logger(),
	}
}

// Send executes one GraphQL request against the upstream endpoint.
// When fresh is set, the response cache is bypassed and a no-cache
// directive is sent so no intermediary serves a stale draft.
//
// A response whose envelope carries application-level errors is
// returned together with a permanent *graphql.ResponseError, so the
// caller can both stop retrying and surface the envelope.
func (c *Client) Send(ctx context.Context, req *graphql.Request, fresh bool) (*graphql.Response, error) {
	var key string
	if c.cache != nil && !fresh {
		key = cacheKey(req)
		if data, ok := c.cache.Get(key); ok {
			resp, err := graphql.ParseResponse(data)
			if err == nil {
				c.logger.Debug().Str("operation", req.OperationName).Msg("cache hit")
				return resp, nil
			}
			// Unparseable entry, fall through to the network
		}
	}

	reqBytes, err := req.Bytes()
	if err != nil {
		return nil, &Error{Kind: Permanent, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, &Error{Kind: Permanent, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if fresh {
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: Transient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: Transient, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", truncate(body, 512)),
		}
	}

	gqlResp, err := graphql.ParseResponse(body)
	if err != nil {
		return nil, &Error{Kind: Transient, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if gqlResp.HasErrors() {
		return gqlResp, graphql.NewResponseError(gqlResp)
	}

	if c.cache != nil && !fresh {
		c.cache.Set(key, body)
	}

	return gqlResp, nil
}

// truncate limits a body excerpt used in error messages
func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
