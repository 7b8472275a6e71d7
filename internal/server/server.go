package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gqlherd/internal/batcher"
	"gqlherd/internal/config"
	"gqlherd/internal/executor"
	"gqlherd/internal/metrics"
	"gqlherd/internal/registry"
	"gqlherd/internal/transport"
	"gqlherd/internal/ws"
)

// Server wires the transport, executor, registry and batcher together
// and exposes the HTTP and WebSocket submission front-ends.
type Server struct {
	cfg        *config.Config
	batcher    *batcher.Batcher
	cache      *transport.ResponseCache
	promReg    *prometheus.Registry
	httpServer *http.Server
	wsServer   *http.Server
	logger     zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	var respCache *transport.ResponseCache
	if cfg.IsCacheEnabled() {
		var err error
		respCache, err = transport.NewResponseCache(cfg.Cache.Size, cfg.Cache.GetTTLDuration())
		if err != nil {
			return nil, fmt.Errorf("failed to create response cache: %w", err)
		}
		logger.Info().
			Int("size", cfg.Cache.Size).
			Int("ttl", cfg.Cache.TTL).
			Msg("response cache enabled")
	} else {
		logger.Info().Msg("response cache disabled")
	}

	client := transport.NewClient(transport.Config{
		Endpoint: cfg.Endpoint,
		Headers:  cfg.Headers,
		Cache:    respCache,
		Logger:   logger,
	})

	exec := executor.New(client, executor.Config{
		Timeout:    cfg.GetQueryTimeoutDuration(),
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.GetRetryBaseDelayDuration(),
	}, logger)

	reg := registry.New(logger)

	var promReg *prometheus.Registry
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		promReg = prometheus.NewRegistry()
		m = metrics.New(promReg, func() float64 {
			return float64(reg.Len())
		})
	}

	b := batcher.New(batcher.Config{
		Window:  cfg.GetBatchWindowDuration(),
		MaxSize: cfg.MaxBatchSize,
	}, exec, reg, m, logger)

	return &Server{
		cfg:     cfg,
		batcher: b,
		cache:   respCache,
		promReg: promReg,
		logger:  logger.With().Str("component", "server").Logger(),
	}, nil
}

// Batcher returns the engine behind the front-ends
func (s *Server) Batcher() *batcher.Batcher {
	return s.batcher
}

// Start starts the HTTP and WebSocket servers
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/query", newQueryHandler(s.batcher, s.logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.promReg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	}

	httpAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	wsAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.WSPort)

	// No write timeout: a settlement can legitimately take the full
	// retry budget of its slowest attempt.
	s.httpServer = &http.Server{
		Addr:        httpAddr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", httpAddr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wsServer = &http.Server{
		Addr:        wsAddr,
		Handler:     ws.NewHandler(s.batcher, s.logger),
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", wsAddr).Msg("starting WebSocket server")
		if err := s.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("WebSocket server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server: front-ends first so no new
// submissions arrive, then the batcher so everything in flight settles.
func (s *Server) Stop(ctx context.Context) error {
	var firstErr error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.wsServer != nil {
		if err := s.wsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.batcher.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if s.cache != nil {
		s.cache.Close()
	}

	s.logger.Info().Msg("server stopped")
	return firstErr
}
