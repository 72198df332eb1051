package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cpg-predict/cpgd/internal/auth"
	"github.com/cpg-predict/cpgd/internal/config"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	cfg            *config.Config
	helpLoader     HelpPort
	auditLogger    AuditPort
	authMiddleware *auth.Middleware
	startTime      time.Time
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, helpLoader HelpPort, auditLogger AuditPort) *Server {
	return &Server{
		cfg:         cfg,
		helpLoader:  helpLoader,
		auditLogger: auditLogger,
		startTime:   time.Now(),
	}
}

// NewServerWithAuth creates a new API server with authentication middleware.
func NewServerWithAuth(cfg *config.Config, helpLoader HelpPort, auditLogger AuditPort, authMiddleware *auth.Middleware) *Server {
	s := NewServer(cfg, helpLoader, auditLogger)
	s.authMiddleware = authMiddleware
	return s
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// GetServer returns the underlying HTTP server for testing.
func (s *Server) GetServer() *http.Server {
	return s.httpServer
}
