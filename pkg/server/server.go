package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"codebuddy-hq/relay/pkg/authflow"
	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/proxy/handlers"
	"codebuddy-hq/relay/pkg/proxy/middleware"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
	"codebuddy-hq/relay/pkg/usage"
)

// Components holds the wired subsystems the server exposes over HTTP.
type Components struct {
	// Backend streams chat completions from the upstream API.
	Backend handlers.Backend

	// Store is the on-disk credential store.
	Store *credential.Store

	// Manager is the credential rotation manager over Store.
	Manager *credential.Manager

	// Controller drives asynchronous login sessions.
	Controller *authflow.Controller

	// Usage records per-model statistics; nil disables the recording and
	// leaves the usage endpoint reporting an empty listing.
	Usage *usage.Store

	// Metrics is the Prometheus collector.
	Metrics *metrics.Collector
}

// Server is the client-facing HTTP server of the relay.
type Server struct {
	cfg        *config.Config
	components Components

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a relay server over the given components.
func NewServer(cfg *config.Config, components Components) *Server {
	return &Server{
		cfg:        cfg,
		components: components,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled, a
// termination signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server", "address", s.cfg.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, letting in-flight streams
// finish within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown",
			"timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("relay server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully assembled HTTP handler: routes wrapped in the
// middleware chain. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(
		s.components.Backend, s.components.Manager, s.components.Usage, s.components.Metrics)
	credsHandler := handlers.NewCredentialsHandler(s.components.Store, s.components.Manager)
	authHandler := handlers.NewAuthHandler(s.components.Controller, s.components.Metrics)

	mux.Handle("POST /v1/chat/completions", chatHandler)
	mux.Handle("GET /v1/models", handlers.NewModelsHandler(s.cfg.Models))

	mux.HandleFunc("GET /v1/credentials", credsHandler.List)
	mux.HandleFunc("POST /v1/credentials", credsHandler.Create)
	mux.HandleFunc("DELETE /v1/credentials/{id}", credsHandler.Delete)
	mux.HandleFunc("GET /v1/credentials/current", credsHandler.Current)
	mux.HandleFunc("POST /v1/credentials/select", credsHandler.Select)
	mux.HandleFunc("POST /v1/credentials/auto", credsHandler.Auto)
	mux.HandleFunc("POST /v1/credentials/toggle-rotation", credsHandler.ToggleRotation)

	mux.HandleFunc("POST /v1/auth/sessions", authHandler.Start)
	mux.HandleFunc("GET /v1/auth/sessions/{id}", authHandler.Status)

	mux.Handle("GET /v1/usage", handlers.NewUsageHandler(s.components.Usage))
	mux.Handle("GET /health", handlers.NewHealthHandler())

	if s.cfg.Telemetry.Metrics.IsEnabled() {
		mux.Handle("GET /metrics", s.components.Metrics.Handler())
	}

	// Chain order, outermost first: recovery, request ID, logging, CORS,
	// password. Request IDs are assigned before logging so every log line
	// carries one.
	var handler http.Handler = mux
	handler = middleware.AuthMiddleware(s.cfg.Server.Password, exemptFromAuth)(handler)
	handler = middleware.CORSMiddleware(s.cfg.Server.CORS)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// exemptFromAuth accepts the routes that work without the service password.
func exemptFromAuth(r *http.Request) bool {
	return r.URL.Path == "/health" || r.URL.Path == "/metrics"
}
