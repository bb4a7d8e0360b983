package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/npoharvest/internal/crawler"
	"github.com/nao1215/npoharvest/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor runs one job per filter with a concurrency limit.
// Each job gets a fresh pipeline from the factory, and through its
// CrawlStep its own browser session.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of jobs running at once.
	concurrency int

	// cutoff seeds the report of jobs that fail before crawling.
	cutoff time.Time

	logger *slog.Logger

	results []*model.JobReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Default is 1; non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchCutoff sets the cutoff recorded in job reports.
func WithBatchCutoff(cutoff time.Time) BatchOption {
	return func(b *BatchProcessor) {
		b.cutoff = cutoff
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
		cutoff:          crawler.DefaultCutoff,
		results:         make([]*model.JobReport, 0),
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs a job for every filter and returns the reports in
// filter order. A failed job does not stop the others; its error is kept
// in its report. Jobs that never started because ctx ended have a nil
// entry. The returned error is only set when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, filters []model.FilterSpec) ([]*model.JobReport, error) {
	bp.mu.Lock()
	bp.results = make([]*model.JobReport, len(filters))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, filters, func(report *model.JobReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback runs a job for every filter and calls callback
// with each finished report and the index of its filter. The callback runs
// on the job's goroutine and must be safe for concurrent use when the
// concurrency limit is above 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	filters []model.FilterSpec,
	callback func(report *model.JobReport, index int),
) error {
	bp.logger.Info("starting batch",
		"jobs", len(filters),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, f := range filters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("starting job",
				"region", f.Region.String(),
				"index", i+1,
				"total", len(filters),
			)

			report := model.NewJobReport(f, bp.cutoff)
			if err := bp.pipelineFactory().Execute(gctx, report); err != nil {
				bp.logger.Warn("job ended with error",
					"region", f.Region.String(),
					"error", err,
				)
			} else {
				bp.logger.Info("job finished",
					"region", f.Region.String(),
					"records", report.Accepted(),
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	bp.logger.Info("batch complete",
		"jobs", len(filters),
		"elapsed", time.Since(startTime).Round(time.Second),
	)
	return err
}
