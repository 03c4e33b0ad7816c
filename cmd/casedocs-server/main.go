package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/a3tai/casedocs/internal/assembly"
	"github.com/a3tai/casedocs/internal/config"
	"github.com/a3tai/casedocs/internal/httpapi"
	"github.com/a3tai/casedocs/internal/logging"
	"github.com/a3tai/casedocs/internal/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const shutdownTimeout = 30 * time.Second

// newHTTPServer builds the HTTP server for server mode
func newHTTPServer(cfg *config.Config, a *assembly.Assembler, log logrus.FieldLogger) *http.Server {
	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      httpapi.NewServer(a, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runServerMode serves the HTTP API until ctx is canceled, then drains connections
func runServerMode(ctx context.Context, srv *http.Server, log logrus.FieldLogger) error {
	serverErrCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	select {
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// runStdioMode serves MCP on stdin/stdout; the parent process owns our lifecycle
func runStdioMode(ctx context.Context, cfg *config.Config, a *assembly.Assembler, log logrus.FieldLogger) error {
	server, err := mcp.NewServer(cfg, a, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	cfg, err := config.LoadFromFlags()
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion()
		return
	case errors.Is(err, pflag.ErrHelp):
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	// stdout carries the MCP protocol in stdio mode, so logs always go to stderr
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(2)
	}
	if cfg.IsDebug() {
		log.WithField("config", cfg.String()).Debug("Starting with configuration")
	}

	assembler, err := assembly.FromConfig(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Startup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsServerMode() {
		err = runServerMode(ctx, newHTTPServer(cfg, assembler, log), log)
	} else {
		err = runStdioMode(ctx, cfg, assembler, log)
	}
	if err != nil {
		log.WithError(err).Error("Server exited")
		stop()
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("casedocs\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
