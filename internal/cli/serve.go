package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/httpapi"
	"github.com/Soochol/superclaude-auto-flags/internal/mcp"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the 'serve' command for running the MCP server.
//
// The server exposes 3 tools via stdio transport:
// - flags_recommend, flags_feedback, flags_report
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the autoflags MCP server using stdio transport.

This server exposes 3 tools to AI clients:
  • flags_recommend - Recommend flags for a request
  • flags_feedback  - Report how a recommendation worked out
  • flags_report    - Show the personalization report

Logs go to stderr; stdout carries only JSON-RPC messages.`,
		Example: `  # Run directly
  autoflags serve

  # Add to Claude Code
  claude mcp add autoflags -- autoflags serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// Implements graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
func runServe(cmd *cobra.Command) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if a.StoreErr == nil {
		if _, err := a.Evict(ctx); err != nil {
			a.Log.Warn("retention pass failed", zap.Error(err))
		}
	}

	server := mcp.NewServer(a, a.Log)

	// Run server in separate goroutine; stdin reads do not observe ctx.
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("received signal, shutting down")
		return nil
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// NewHTTPCmd creates the 'http' command for running the REST API.
func NewHTTPCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the REST API with Prometheus metrics",
		Long: `Serve the engine over HTTP:

  GET  /health
  POST /api/v1/recommend
  POST /api/v1/feedback
  GET  /api/v1/report/:user
  GET  /metrics

The listen address comes from the 'http' config section unless --addr is given.`,
		Example: `  autoflags http
  autoflags http --addr 0.0.0.0:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			if addr == "" {
				addr = a.Config.HTTP.Addr()
			}
			server, err := httpapi.NewServer(a, a.Log, addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Start()
			}()

			select {
			case err := <-errChan:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (host:port)")

	return cmd
}
