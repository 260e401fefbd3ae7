package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ggstudio/mapveto/internal/config"
	"github.com/ggstudio/mapveto/internal/database"
	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/migrations"
	"github.com/ggstudio/mapveto/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Engine ---
	eng := engine.New(db, logger)
	if cfg.BlobBaseURL != "" {
		eng.Storage = engine.BlobBaseResolver{BaseURL: cfg.BlobBaseURL}
	}

	if err := server.Seed(ctx, logger, db, eng); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, db, eng, cfg.SPADir)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	// Expiry sweep: sessions past their TTL flip to EXPIRED.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExpireInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if _, err := eng.ExpireDueSessions(gctx, now.UTC()); err != nil {
					logger.Error("expiry sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
