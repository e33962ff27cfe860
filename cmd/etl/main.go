// Command etl loads ERA5-Land grid files into MongoDB. It walks every file
// matching the configured pattern, derives temperature and wind quantities,
// and upserts one document per grid point and hour. Re-running over the same
// files is a no-op.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/dontloseyourheadsu/WeatherService/internal/adapter/http"
	mongoadapter "github.com/dontloseyourheadsu/WeatherService/internal/adapter/mongo"
	"github.com/dontloseyourheadsu/WeatherService/internal/adapter/netcdf"
	"github.com/dontloseyourheadsu/WeatherService/internal/config"
	"github.com/dontloseyourheadsu/WeatherService/internal/observability"
	"github.com/dontloseyourheadsu/WeatherService/internal/pipeline"
)

// gridOpener adapts the netcdf reader to the orchestrator's opener interface.
type gridOpener struct{}

func (gridOpener) Open(path string) (pipeline.GridFile, error) {
	return netcdf.Open(path)
}

func main() {
	if err := run(); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	logger.Info("starting loader",
		"mongo_uri", config.MaskURI(cfg.MongoURI),
		"database", cfg.MongoDatabase,
		"collection", cfg.MongoCollection,
		"pattern", cfg.NetCDFPathPattern,
		"chunk_size", cfg.ChunkSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongoadapter.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("mongo close error", "error", err)
		}
	}()

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	orch := pipeline.New(gridOpener{}, store, logger, metrics, cfg.NetCDFPathPattern, cfg.ChunkSize)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, orch, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	sum, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	// Per-file failures never affect exit status; a fully skipped run still
	// exits clean, it just has nothing to show for itself.
	if sum.FilesProcessed == 0 {
		logger.Warn("no files processed", "files_skipped", sum.FilesSkipped)
	}
	return nil
}
