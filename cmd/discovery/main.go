package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/poi-discovery-service/internal/adapter/http"
	"github.com/couchcryptid/poi-discovery-service/internal/adapter/mcpserver"
	"github.com/couchcryptid/poi-discovery-service/internal/app"
	"github.com/couchcryptid/poi-discovery-service/internal/config"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	a := app.New(cfg, logger, metrics)
	mcpServer := mcpserver.NewServer(a.Pipeline, app.ServerInfo(cfg), logger)

	// Over stdio the MCP session owns stdin/stdout; the HTTP server still
	// serves health and metrics.
	var mcpHandler http.Handler
	if cfg.MCPTransport == config.TransportHTTP {
		mcpHandler = mcpserver.HTTPHandler(mcpServer)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Pipeline, mcpHandler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.MCPTransport == config.TransportStdio {
		g.Go(func() error {
			logger.Info("mcp stdio session starting")
			err := mcpserver.RunStdio(gctx, mcpServer)
			// The client closing stdin ends the process.
			stop()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if err := a.Close(); err != nil {
			logger.Error("event publisher close error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
