// Package pipeline orchestrates the grid-to-store ETL: it walks matching grid
// files, loads bounded time slices, derives weather quantities, and issues
// idempotent bulk writes. Failures are isolated per file and per slice so one
// corrupt download never aborts a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dontloseyourheadsu/WeatherService/internal/domain"
	"github.com/dontloseyourheadsu/WeatherService/internal/observability"
)

// GridFile is one open grid file the orchestrator can slice through.
type GridFile interface {
	Steps() int
	LoadSlice(start, end int) (*domain.Slice, error)
	Close()
}

// GridOpener validates and opens a grid file by path.
type GridOpener interface {
	Open(path string) (GridFile, error)
}

// StoreWriter executes a batch of upserts against the destination store.
type StoreWriter interface {
	Write(ctx context.Context, ops []domain.UpsertOp) (domain.WriteResult, error)
}

// Summary aggregates the counts of one full run.
type Summary struct {
	FilesProcessed int
	FilesSkipped   int
	Slices         int
	SliceErrors    int
	Records        int
	Dropped        int
	Upserted       int64
	Matched        int64
}

// Orchestrator drives the per-file, per-slice load loop.
type Orchestrator struct {
	opener    GridOpener
	batch     *BatchBuilder
	store     StoreWriter
	logger    *slog.Logger
	metrics   *observability.Metrics
	pattern   string
	chunkSize int

	slicesWritten atomic.Int64
}

// New creates an Orchestrator over the files matching pattern, slicing each
// file into windows of chunkSize time steps.
func New(opener GridOpener, store StoreWriter, logger *slog.Logger, metrics *observability.Metrics, pattern string, chunkSize int) *Orchestrator {
	return &Orchestrator{
		opener:    opener,
		batch:     NewBatchBuilder(logger),
		store:     store,
		logger:    logger,
		metrics:   metrics,
		pattern:   pattern,
		chunkSize: chunkSize,
	}
}

// CheckReadiness returns nil once at least one slice has been written, or an
// error describing why the service is not yet ready.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if o.slicesWritten.Load() == 0 {
		return errors.New("pipeline has not written any slices yet")
	}
	return nil
}

// SlicesWritten returns how many slices have been committed to the store so
// far in this run.
func (o *Orchestrator) SlicesWritten() int64 {
	return o.slicesWritten.Load()
}

// Run processes every matching grid file in lexical order and returns the run
// summary. A pattern matching no files is fatal; a file that fails to open is
// skipped; a slice that fails to load, decode, or write is skipped. Run stops
// early only on context cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)

	paths, err := filepath.Glob(o.pattern)
	if err != nil {
		return Summary{}, fmt.Errorf("bad path pattern %q: %w", o.pattern, err)
	}
	if len(paths) == 0 {
		return Summary{}, fmt.Errorf("no grid files match %q", o.pattern)
	}
	sort.Strings(paths)

	o.logger.Info("pipeline started",
		"pattern", o.pattern,
		"files", len(paths),
		"chunk_size", o.chunkSize,
	)

	var sum Summary
	for _, path := range paths {
		if ctx.Err() != nil {
			o.logger.Info("pipeline stopping", "reason", ctx.Err())
			return sum, ctx.Err()
		}
		o.processFile(ctx, path, &sum)
	}

	o.logger.Info("pipeline finished",
		"files_processed", sum.FilesProcessed,
		"files_skipped", sum.FilesSkipped,
		"slices", sum.Slices,
		"slice_errors", sum.SliceErrors,
		"records", sum.Records,
		"dropped", sum.Dropped,
		"upserted", sum.Upserted,
		"matched", sum.Matched,
	)
	return sum, nil
}

// processFile opens one grid file and walks its time dimension in chunkSize
// windows. Open failures skip the file; the handle is always closed.
func (o *Orchestrator) processFile(ctx context.Context, path string, sum *Summary) {
	file, err := o.opener.Open(path)
	if err != nil {
		o.logger.Warn("skipping file", "path", path, "error", err)
		o.metrics.FilesSkipped.Inc()
		sum.FilesSkipped++
		return
	}
	defer file.Close()

	steps := file.Steps()
	o.logger.Info("processing file", "path", path, "steps", steps)

	fileSlices, fileErrors := 0, 0
	recordsBefore := sum.Records
	for start := 0; start < steps; start += o.chunkSize {
		if ctx.Err() != nil {
			return
		}
		if o.processSlice(ctx, file, path, start, start+o.chunkSize, sum) {
			fileSlices++
		} else {
			fileErrors++
		}
	}

	o.metrics.FilesProcessed.Inc()
	sum.FilesProcessed++
	o.logger.Info("file done",
		"path", path,
		"slices", fileSlices,
		"slice_errors", fileErrors,
		"records", sum.Records-recordsBefore,
	)
}

// processSlice runs one load-derive-flatten-write cycle. Returns false if the
// slice was skipped. A panic out of the derive/flatten math (a decoded cube
// whose shape disagrees with its axes) counts as a slice error and stays
// contained here.
func (o *Orchestrator) processSlice(ctx context.Context, file GridFile, path string, start, end int, sum *Summary) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.sliceError(sum, "slice processing panicked", path, start, end, fmt.Errorf("%v", r))
			ok = false
		}
	}()

	began := time.Now()

	s, err := file.LoadSlice(start, end)
	if err != nil {
		o.sliceError(sum, "load slice failed", path, start, end, err)
		return false
	}

	s.Derive()
	records := s.Flatten()
	ops, dropped := o.batch.Build(records)

	o.metrics.RecordsFlattened.Add(float64(len(records)))
	o.metrics.RecordsDropped.Add(float64(dropped))
	sum.Records += len(records)
	sum.Dropped += dropped

	if len(ops) == 0 {
		o.logger.Info("slice produced no records", "path", path, "start", start, "end", end)
		o.metrics.SlicesProcessed.Inc()
		sum.Slices++
		return true
	}

	res, err := o.store.Write(ctx, ops)
	if err != nil {
		o.metrics.BulkWriteErrors.Inc()
		o.sliceError(sum, "bulk write failed", path, start, end, err)
		return false
	}

	o.metrics.SlicesProcessed.Inc()
	o.metrics.DocumentsUpserted.Add(float64(res.Upserted))
	o.metrics.DocumentsMatched.Add(float64(res.Matched))
	o.metrics.SliceDuration.Observe(time.Since(began).Seconds())
	sum.Slices++
	sum.Upserted += res.Upserted
	sum.Matched += res.Matched
	o.slicesWritten.Add(1)

	o.logger.Info("slice written",
		"path", path,
		"start", start,
		"end", end,
		"records", len(records),
		"upserted", res.Upserted,
		"matched", res.Matched,
	)
	return true
}

func (o *Orchestrator) sliceError(sum *Summary, msg, path string, start, end int, err error) {
	o.logger.Warn(msg, "path", path, "start", start, "end", end, "error", err)
	o.metrics.SliceErrors.Inc()
	sum.SliceErrors++
}
