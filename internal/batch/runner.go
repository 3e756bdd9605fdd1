// Package batch runs many documents through the processing pipeline with a
// bounded pool of workers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// ErrSkipped marks documents that were never started because the batch stopped
var ErrSkipped = errors.New("skipped: batch stopped")

// Processor processes a single document
type Processor interface {
	ProcessFile(ctx context.Context, path string) (*privacy.ProcessingRecord, error)
}

// Runner processes documents concurrently
type Runner struct {
	processor Processor
	config    Config
	logger    *zap.Logger
}

// NewRunner creates a batch runner
func NewRunner(processor Processor, config Config, logger *zap.Logger) *Runner {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Runner{processor: processor, config: config, logger: logger}
}

// Run processes paths and returns the per-document outcomes. Document
// failures are collected in the result; the returned error is non-nil only
// when ctx was cancelled by the caller.
func (r *Runner) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	result := &Result{
		TotalFiles: int64(len(paths)),
		Items:      make([]Item, len(paths)),
	}
	if len(paths) == 0 {
		return result, nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.config.Workers
	if workers > len(paths) {
		workers = len(paths)
	}

	r.logger.Info("Starting batch",
		zap.Int("documents", len(paths)),
		zap.Int("workers", workers))

	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item := &result.Items[i]
				item.Path = paths[i]
				item.Record, item.Err = r.processor.ProcessFile(ctx, paths[i])
				if item.Err != nil {
					r.logger.Warn("Document failed", zap.String("path", paths[i]), zap.Error(item.Err))
					if r.config.StopOnError {
						cancel()
					}
				}
				if n := done.Add(1); r.config.ProgressReport > 0 && n%int64(r.config.ProgressReport) == 0 {
					r.reportProgress(n, int64(len(paths)), start)
				}
			}
		}()
	}

	next := 0
feed:
	for ; next < len(paths); next++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(paths); i++ {
		result.Items[i] = Item{Path: paths[i], Err: ErrSkipped}
	}

	for _, item := range result.Items {
		switch {
		case item.Err == nil:
			result.ProcessedOK++
			result.TotalMaskedValues += int64(item.Record.TotalMaskedValues)
			result.TotalObfuscatedFunds += int64(item.Record.TotalObfuscatedFunds)
		case errors.Is(item.Err, ErrSkipped):
			result.Skipped++
		default:
			result.ProcessedFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.Path, item.Err))
		}
	}
	result.Duration = time.Since(start)

	r.logger.Info("Batch completed",
		zap.Int64("total_files", result.TotalFiles),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return result, parent.Err()
}

func (r *Runner) reportProgress(done, total int64, start time.Time) {
	elapsed := time.Since(start)
	r.logger.Info("Batch progress",
		zap.Int64("documents_done", done),
		zap.Int64("documents_total", total),
		zap.Float64("rate_per_sec", float64(done)/elapsed.Seconds()),
		zap.Duration("elapsed", elapsed))
}

// Expand replaces directories in paths with the supported documents they
// contain, recursively and in lexical order. Files named explicitly are kept
// whatever their extension.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", privacy.ErrInputRejected, err)
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if DetectFormat(p) != FormatUnknown {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
