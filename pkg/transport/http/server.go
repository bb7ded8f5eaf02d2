package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/observability"
	"github.com/mmorady/authgate/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an http.Server with the users API adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string

	// Chain and Limiter enable authentication on the API routes. A nil
	// Chain serves every request unauthenticated.
	Chain   *auth.Chain
	Limiter auth.RateLimiter
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8000",
		MaxBodySize:     1 << 20, // 1 MiB
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithTimeouts sets the read and write timeouts of the underlying http.Server.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMetrics exposes Prometheus metrics at path.
func WithMetrics(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithAuth authenticates API routes with chain, enforcing limiter for
// authenticated subjects when it is non-nil.
func WithAuth(chain *auth.Chain, limiter auth.RateLimiter) ServerOption {
	return func(s *Server) {
		s.config.Chain = chain
		s.config.Limiter = limiter
	}
}

// NewServer creates a new transport server backed by store.
// Default middleware (recovery, request ID, logging, metrics) wraps the
// whole handler; authentication wraps the API routes only.
func NewServer(store transport.UserStore, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	var routeMW []transport.Middleware
	if s.config.Chain != nil {
		routeMW = append(routeMW, auth.Middleware(s.config.Chain, s.config.Limiter))
	}

	s.adapter = NewAdapter(store, Config{MaxBodySize: s.config.MaxBodySize}, routeMW...)
	if s.config.MetricsPath != "" {
		s.adapter.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}

	handler := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
		observability.MetricsMiddleware,
	)(s.adapter.Handler())

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
