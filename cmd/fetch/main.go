// Command fetch downloads a year of ERA5-Land hourly reanalysis over Mexico
// from the Copernicus Climate Data Store, one file per month, into the
// directory the loader reads from. Months that fail after retries are
// reported and skipped; the command exits non-zero if any month is missing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dontloseyourheadsu/WeatherService/internal/adapter/cds"
)

const defaultCDSURL = "https://cds.climate.copernicus.eu/api/v2"

func main() {
	if err := run(); err != nil {
		slog.Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	year := flag.Int("year", 2022, "year to download")
	outDir := flag.String("out", "era5_land_data", "output directory")
	timeout := flag.Duration("timeout", 30*time.Minute, "per-request HTTP timeout")
	flag.Parse()

	_ = godotenv.Load()

	key := os.Getenv("CDSAPI_KEY")
	if key == "" {
		return fmt.Errorf("CDSAPI_KEY is not set")
	}
	baseURL := os.Getenv("CDSAPI_URL")
	if baseURL == "" {
		baseURL = defaultCDSURL
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	client := cds.NewClient(baseURL, key, *timeout, logger)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting batch download", "year", *year, "out", *outDir)

	failed := 0
	for month := time.January; month <= time.December; month++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dest := filepath.Join(*outDir, cds.MonthlyFilename(*year, month))
		if _, err := os.Stat(dest); err == nil {
			logger.Info("already downloaded", "dest", dest)
			continue
		}

		req := cds.MonthlyRequest(*year, month, cds.MexicoArea)
		logger.Info("requesting month", "year", *year, "month", int(month))
		if err := client.Retrieve(ctx, req, dest); err != nil {
			logger.Error("month failed", "month", int(month), "error", err)
			failed++
			continue
		}
		logger.Info("download complete", "dest", dest)
	}

	if failed > 0 {
		return fmt.Errorf("%d month(s) failed to download", failed)
	}
	logger.Info("all downloads complete", "year", *year)
	return nil
}
