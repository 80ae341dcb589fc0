package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/pkg/adapters/file"
	httpAdapter "github.com/aretw0/botflow/pkg/adapters/http"
	"github.com/aretw0/botflow/pkg/registry"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// Serve runs the HTTP host until ctx is canceled.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	stack, err := BuildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("Closing session backend failed", "err", err)
		}
	}()

	catalog := file.NewCatalog(cfg.FlowsDir)
	bots := registry.New[*botflow.Bot](registry.WithLogger(logger))
	defer func() {
		if err := bots.Clear(context.Background()); err != nil {
			logger.Warn("Disposing bots failed", "err", err)
		}
	}()

	opts := []httpAdapter.Option{
		httpAdapter.WithPublisher(catalog),
		httpAdapter.WithBotOptions(stack.BotOptions...),
		httpAdapter.WithAllowedOrigins(cfg.CORSOrigins...),
		httpAdapter.WithLogger(logger),
	}
	if stack.MetricsHandler != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(stack.MetricsHandler))
	}
	api := httpAdapter.NewServer(bots, catalog, opts...)

	ids, err := api.Sync(ctx)
	if err != nil {
		return fmt.Errorf("load flows from %s: %w", cfg.FlowsDir, err)
	}
	logger.Info("Flows registered", "dir", cfg.FlowsDir, "bots", ids)

	stack.Sweeper.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		stack.Sweeper.Stop(stopCtx)
	}()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting botflow server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			_ = srv.Close()
		}
		logger.Info("Server stopped")
		return nil
	}
}
