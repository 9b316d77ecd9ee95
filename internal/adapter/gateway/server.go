package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mindhub/internal/infra/config"
	"mindhub/internal/infra/middleware"
)

// Server runs the HTTP gateway. WriteTimeout stays unset so SSE responses
// can outlive any fixed deadline; streams end via request context instead.
type Server struct {
	cfg        config.ServerConfig
	handler    *Handler
	logger     *slog.Logger
	httpSrv    *http.Server
	boundAddr  string
	middleware []func(http.Handler) http.Handler
}

// NewServer creates the gateway server around an API handler.
func NewServer(cfg config.ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// Use appends middleware applied to every route, outermost first.
// Must be called before Start.
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	s.middleware = append(s.middleware, mw...)
}

// Start begins serving. Blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	s.handler.Register(mux)

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	var root http.Handler = mux
	for i := len(s.middleware) - 1; i >= 0; i-- {
		root = s.middleware[i](root)
	}
	root = middleware.SecurityHeaders(root)

	s.httpSrv = &http.Server{
		Handler:      root,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, bounded by the configured
// shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid
// after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
