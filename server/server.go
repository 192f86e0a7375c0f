// Package server wires configuration into a running HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/matt-hendrie/explain-that-code/config"
	"github.com/matt-hendrie/explain-that-code/server/circuitbreaker"
	"github.com/matt-hendrie/explain-that-code/server/gateway"
	"github.com/matt-hendrie/explain-that-code/server/metrics"
	"github.com/matt-hendrie/explain-that-code/server/processing"
	"github.com/matt-hendrie/explain-that-code/server/routing"
	"github.com/matt-hendrie/explain-that-code/server/validation"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// New builds the whole stack described by cfg: metrics, circuit breaker,
// gateway, processor and router.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler, err := NewHandler(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return NewServer(cfg.Server, handler, logger), nil
}

// NewHandler builds the HTTP handler for cfg. A nil gen means the real
// gollm client for cfg.LLM is used.
func NewHandler(cfg *config.Config, gen gateway.Generator, logger *zap.Logger) (http.Handler, error) {
	m := metrics.NewMetrics()

	gwOpts := []gateway.Option{gateway.WithMetrics(m)}
	if cfg.CircuitBreaker.Enabled {
		cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             cfg.LLM.Provider,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		}, logger.Named("circuitbreaker"), m.Registry())
		if err != nil {
			return nil, fmt.Errorf("create circuit breaker: %w", err)
		}
		gwOpts = append(gwOpts, gateway.WithCircuitBreaker(cb))
	}

	var gw *gateway.Gateway
	if gen != nil {
		gw = gateway.NewWithGenerator(gen, logger.Named("gateway"), gwOpts...)
	} else {
		if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
			logger.Warn("no LLM API key configured; completions will fail",
				zap.String("provider", cfg.LLM.Provider),
				zap.String("env", config.EnvAPIKey),
			)
		}
		gw = gateway.New(cfg.LLM, logger.Named("gateway"), gwOpts...)
	}

	procOpts := []processing.Option{processing.WithLogger(logger.Named("processing"))}
	if cfg.LLM.MaxPromptTokens > 0 {
		counter, err := validation.NewTokenCounter(cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("create token counter: %w", err)
		}
		procOpts = append(procOpts, processing.WithTokenLimit(counter, cfg.LLM.MaxPromptTokens))
	}

	processor, err := processing.NewProcessor(&cfg.Processing, gw, procOpts...)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}

	return routing.NewRouter(processor, m, logger), nil
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully,
// waiting at most the configured shutdown timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
