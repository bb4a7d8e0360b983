package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nao1215/npoharvest/internal/challenge"
	"github.com/nao1215/npoharvest/internal/crawler"
	"github.com/nao1215/npoharvest/internal/model"
	"github.com/nao1215/npoharvest/internal/report"
)

// Session is a browser session owned by one job.
type Session interface {
	crawler.Session
	Close() error
}

// SessionFactory opens a fresh browser session for the job crawling f.
type SessionFactory func(ctx context.Context, f model.FilterSpec) (Session, error)

// ProgressFunc receives every inspected item of the job crawling f.
// Concurrent jobs call it from their own goroutines.
type ProgressFunc func(f model.FilterSpec, p crawler.Progress)

// CrawlStep opens a browser session, crawls the registry for the job's
// filter and closes the session again.
//
// Every job gets its own session and challenge gate; the operator is shared
// so that prompts from concurrent jobs are serialized.
type CrawlStep struct {
	open        SessionFactory
	operator    challenge.Operator
	gateOpts    []challenge.Option
	crawlerOpts []crawler.Option
	progress    ProgressFunc
	logger      *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithGateOptions adds options for the per-job challenge gate.
func WithGateOptions(opts ...challenge.Option) CrawlStepOption {
	return func(s *CrawlStep) {
		s.gateOpts = append(s.gateOpts, opts...)
	}
}

// WithCrawlerOptions adds options for the per-job crawler.
func WithCrawlerOptions(opts ...crawler.Option) CrawlStepOption {
	return func(s *CrawlStep) {
		s.crawlerOpts = append(s.crawlerOpts, opts...)
	}
}

// WithProgressReporter reports the progress of every job to fn.
func WithProgressReporter(fn ProgressFunc) CrawlStepOption {
	return func(s *CrawlStep) {
		s.progress = fn
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(open SessionFactory, operator challenge.Operator, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		open:     open,
		operator: operator,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl. The crawl outcome, including partial records, is
// copied into job even when an error is returned.
func (s *CrawlStep) Do(ctx context.Context, job *model.JobReport) error {
	logger := s.logger.With("region", job.Filter.Region.String())

	session, err := s.open(ctx, job.Filter)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser session", "error", err)
		}
	}()

	gateOpts := append(slices.Clone(s.gateOpts),
		challenge.WithLabel(job.Filter.Region.String()),
		challenge.WithLogger(logger),
	)
	crawlerOpts := append(slices.Clone(s.crawlerOpts), crawler.WithLogger(logger))
	if s.progress != nil {
		filter := job.Filter
		crawlerOpts = append(crawlerOpts, crawler.WithProgress(func(p crawler.Progress) {
			s.progress(filter, p)
		}))
	}

	c := crawler.New(session, challenge.NewGate(s.operator, gateOpts...), crawlerOpts...)
	result, err := c.Run(ctx, job.Filter)
	if result != nil {
		mergeCrawl(job, result)
	}
	return err
}

// mergeCrawl copies the crawl outcome into job, keeping the fields owned by
// the pipeline.
func mergeCrawl(job, crawl *model.JobReport) {
	steps, output := job.PerformedSteps, job.OutputFile
	*job = *crawl
	job.PerformedSteps, job.OutputFile = steps, output
}

// ExportStep writes the accepted records to a CSV file in dir.
// Jobs that accepted nothing leave no file behind.
type ExportStep struct {
	dir    string
	logger *slog.Logger
}

// NewExportStep creates an export step writing to dir.
func NewExportStep(dir string, logger *slog.Logger) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportStep{dir: dir, logger: logger}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Final marks the step as a Finalizer; partial results are exported too.
func (s *ExportStep) Final() {}

// Do writes the CSV file and records its path in job.
func (s *ExportStep) Do(_ context.Context, job *model.JobReport) error {
	path, err := report.ExportCSV(s.dir, job)
	if errors.Is(err, report.ErrNoRecords) {
		s.logger.Info("no records accepted, nothing exported", "region", job.Filter.Region.String())
		return nil
	}
	if err != nil {
		return err
	}

	job.OutputFile = path
	s.logger.Info("records exported",
		"region", job.Filter.Region.String(),
		"records", job.Accepted(),
		"file", path,
	)
	return nil
}

// SummaryStep writes the job summary through a report.Writer.
// One SummaryStep may be shared by concurrent pipelines; writes are
// serialized so that summaries do not interleave.
type SummaryStep struct {
	mu     sync.Mutex
	writer report.Writer
}

// NewSummaryStep creates a summary step writing through w.
func NewSummaryStep(w report.Writer) *SummaryStep {
	return &SummaryStep{writer: w}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Final marks the step as a Finalizer; failed jobs are summarized too.
func (s *SummaryStep) Final() {}

// Do writes the summary.
func (s *SummaryStep) Do(_ context.Context, job *model.JobReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.writer.Write(job)
	return err
}

// DefaultPipelineConfig holds what the default job pipeline needs besides
// the session factory and the operator.
type DefaultPipelineConfig struct {
	// OutputDir receives the CSV files.
	OutputDir string

	// Summary writes the per-job summary. Nil skips the summary step.
	Summary *SummaryStep

	// GateOptions configure every job's challenge gate.
	GateOptions []challenge.Option

	// CrawlerOptions configure every job's crawler.
	CrawlerOptions []crawler.Option

	// Progress receives every inspected item. Nil reports nothing.
	Progress ProgressFunc

	Logger *slog.Logger
}

// DefaultPipeline creates the standard job pipeline: crawl, export, summary.
func DefaultPipeline(open SessionFactory, operator challenge.Operator, cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddSteps(
		NewCrawlStep(open, operator,
			WithGateOptions(cfg.GateOptions...),
			WithCrawlerOptions(cfg.CrawlerOptions...),
			WithProgressReporter(cfg.Progress),
			WithCrawlLogger(logger),
		),
		NewExportStep(cfg.OutputDir, logger),
	)
	if cfg.Summary != nil {
		p.AddStep(cfg.Summary)
	}
	return p
}
