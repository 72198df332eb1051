// Package main implements the CpG predictor service entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cpg-predict/cpgd/internal/api"
	"github.com/cpg-predict/cpgd/internal/audit"
	"github.com/cpg-predict/cpgd/internal/auth"
	"github.com/cpg-predict/cpgd/internal/config"
	"github.com/cpg-predict/cpgd/internal/help"
)

const Version = "1.0.0"

func main() {
	log.Printf("Starting CpG Predictor v%s", Version)

	// Step 1: Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Step 2: Initialize audit logger
	var auditLogger *audit.Logger
	if cfg.Audit.Dir != "" {
		auditLogger, err = audit.NewLogger(cfg.Audit.Dir, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		if err != nil {
			log.Fatalf("Failed to initialize audit logger: %v", err)
		}
		log.Println("Audit logger initialized")
	}

	// Step 3: Initialize help loader
	helpLoader := help.NewLoader(cfg.Predictor.HelpFile)

	// Step 4: Create API server, with bearer auth when a secret is configured
	var server *api.Server
	if cfg.Auth.Secret != "" {
		server = api.NewServerWithAuth(cfg, helpLoader, auditLoggerPort(auditLogger), auth.NewMiddleware(cfg.Auth.Secret))
		log.Println("Bearer authentication enabled for /predict")
	} else {
		server = api.NewServer(cfg, helpLoader, auditLoggerPort(auditLogger))
	}

	// Step 5: Start HTTP server
	addr := cfg.Server.Addr
	log.Printf("Starting HTTP server on %s", addr)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("CpG Predictor started successfully")
	log.Printf("Prediction endpoint: http://localhost%s/api/v1/predict", addr)

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if auditLogger != nil {
		if err := auditLogger.Close(); err != nil {
			log.Printf("Error closing audit logger: %v", err)
		}
		log.Println("Audit logger closed")
	}

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	log.Println("CpG Predictor shutdown complete")
}

// auditLoggerPort keeps a nil *audit.Logger from becoming a non-nil AuditPort.
func auditLoggerPort(l *audit.Logger) api.AuditPort {
	if l == nil {
		return nil
	}
	return l
}
