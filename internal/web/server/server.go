// Package server wraps net/http with the timeouts and graceful shutdown the
// schemakit API server runs with.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config holds server configuration.
type Config struct {
	// Address is the server listen address (e.g., ":8080")
	Address string

	// Handler is the HTTP handler for the server
	Handler http.Handler

	// Timeouts
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	MaxHeaderBytes int
}

// DefaultConfig returns a production-ready server configuration.
func DefaultConfig(addr string, handler http.Handler) *Config {
	return &Config{
		Address:           addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Server is an HTTP server with graceful shutdown. Shutdown hooks run after
// in-flight requests drain, in registration order.
type Server struct {
	httpServer *http.Server
	config     *Config
	log        *zap.Logger
	hooks      []func(ctx context.Context) error
}

// New creates a server from the given configuration.
func New(config *Config, log *zap.Logger) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("server handler cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           config.Handler,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			MaxHeaderBytes:    config.MaxHeaderBytes,
		},
		config: config,
		log:    log,
	}, nil
}

// OnShutdown registers a cleanup hook to run during graceful shutdown.
func (s *Server) OnShutdown(hook func(ctx context.Context) error) {
	s.hooks = append(s.hooks, hook)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until SIGINT or SIGTERM, then drains connections and runs the
// shutdown hooks. It returns the first error encountered.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	for _, hook := range s.hooks {
		if hookErr := hook(ctx); hookErr != nil && err == nil {
			err = hookErr
		}
	}
	return err
}

// Shutdown stops the server without waiting for a signal. Tests use this.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
