package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/npoharvest/internal/browser"
	"github.com/nao1215/npoharvest/internal/challenge"
	"github.com/nao1215/npoharvest/internal/config"
	"github.com/nao1215/npoharvest/internal/crawler"
	"github.com/nao1215/npoharvest/internal/database"
	"github.com/nao1215/npoharvest/internal/egress"
	"github.com/nao1215/npoharvest/internal/log"
	"github.com/nao1215/npoharvest/internal/model"
	"github.com/nao1215/npoharvest/internal/pipeline"
	"github.com/nao1215/npoharvest/internal/report"
	"github.com/nao1215/npoharvest/internal/validity"
)

// proxyCheckTimeout bounds the reachability probe of a user supplied proxy.
const proxyCheckTimeout = 15 * time.Second

// errAllJobsFailed is returned when no job of a crawl ended successfully.
var errAllJobsFailed = errors.New("every crawl job failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [region...]",
		Short: "Crawl the registry for organizations valid on the cutoff date",
		Long: `Crawl opens the registry in a browser, filters it to active social groups of
each requested region matching the keyword, and opens every listed organization
to read its validity period. Organizations valid on or after the cutoff date are
written to <region>_valid_social_orgs.csv.

When the registry shows a challenge, the crawl pauses until it has been solved
in the browser window. In prompt mode press Enter afterwards; in poll mode the
page is re-inspected periodically.

Examples:
  # Crawl Beijing with the default keyword 数据
  npoharvest crawl 北京

  # Several regions, comma separated or as separate arguments
  npoharvest crawl 北京,上海 广东

  # Every region, two browser windows at a time
  npoharvest crawl --all --batch 2

  # Another keyword and cutoff, CSV files into ./out
  npoharvest crawl -k 科技 --cutoff 2026-06-30 -o ./out 浙江

  # Route the browser through an embedded Tor daemon
  npoharvest crawl --tor 上海

  # Write a Markdown summary to a file
  npoharvest crawl --markdown --report-file summary.md 北京`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Filter flags
	cmd.Flags().Bool("all", false,
		"Crawl every region")
	cmd.Flags().StringP("keyword", "k", config.DefaultKeyword,
		"Search keyword")
	cmd.Flags().String("cutoff", crawler.DefaultCutoff.Format(time.DateOnly),
		"Keep organizations valid on or after this date (YYYY-MM-DD)")
	cmd.Flags().Int("max-pages", 0,
		"Maximum list pages per region (0 = no limit)")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for the CSV files")

	// Browser flags
	cmd.Flags().Bool("headless", false,
		"Run the browser without a window (challenges then need poll mode and a remote view)")
	cmd.Flags().Bool("ignore-cert-errors", true,
		"Accept invalid TLS certificates of the registry")
	cmd.Flags().String("browser-path", "",
		"Chrome or Chromium binary (default: auto-detect)")
	cmd.Flags().String("profile-dir", "",
		"Directory for per-region browser profiles (default: XDG cache directory)")
	cmd.Flags().Float64("pace-scale", config.DefaultPaceScale,
		"Scale of the random pauses between actions (0 disables them)")
	cmd.Flags().Duration("action-timeout", config.DefaultActionTimeout,
		"Timeout for a single browser action")

	// Egress flags
	cmd.Flags().Bool("tor", false,
		"Route the browser through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("proxy", "",
		"Route the browser through a proxy (e.g., socks5://127.0.0.1:1080)")

	// Challenge flags
	cmd.Flags().String("challenge-mode", config.ChallengeModePrompt,
		"How a challenge is awaited: prompt (press Enter) or poll (re-inspect periodically)")
	cmd.Flags().Duration("poll-interval", config.DefaultPollInterval,
		"Re-inspection interval in poll mode")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of regions crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .npoharvest in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the summary to the specified file instead of stdout")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not store the jobs in the history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, os.Stdin, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in increasing priority. Only flags that were set on the
// command line override the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit configuration file must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if flags.Changed("keyword") {
		if cfg.Keyword, err = flags.GetString("keyword"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cutoff") {
		raw, err := flags.GetString("cutoff")
		if err != nil {
			return nil, err
		}
		if cfg.Cutoff, err = validity.ParseDate(raw); err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidCutoff, err)
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore-cert-errors") {
		if cfg.IgnoreCertErrors, err = flags.GetBool("ignore-cert-errors"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("browser-path") {
		if cfg.BrowserPath, err = flags.GetString("browser-path"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("profile-dir") {
		if cfg.ProfileDir, err = flags.GetString("profile-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("pace-scale") {
		if cfg.PaceScale, err = flags.GetFloat64("pace-scale"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("action-timeout") {
		if cfg.ActionTimeout, err = flags.GetDuration("action-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("challenge-mode") {
		if cfg.ChallengeMode, err = flags.GetString("challenge-mode"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("poll-interval") {
		if cfg.PollInterval, err = flags.GetDuration("poll-interval"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	// Flags without a configuration file counterpart.
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	all, err := flags.GetBool("all")
	if err != nil {
		return nil, err
	}
	switch {
	case all:
		cfg.Regions = model.Regions()
	case len(args) > 0:
		if cfg.Regions, err = model.ResolveRegions(args...); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// runCrawl crawls every configured region and writes the summary to stdout
// or the report file. Operator prompts are read from stdin.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	filters := cfg.Filters()

	logger.Info("starting crawl",
		"regions", len(filters),
		"keyword", cfg.Keyword,
		"cutoff", cfg.Cutoff.Format(time.DateOnly),
		"batch", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	route, err := egress.Setup(ctx, egress.Options{
		Proxy:             cfg.Proxy,
		UseTor:            cfg.UseTor,
		TorStartupTimeout: cfg.TorStartupTimeout,
		CheckTimeout:      proxyCheckTimeout,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to set up egress: %w", err)
	}
	defer func() {
		if err := route.Close(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}()

	var db *database.JobDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	out, closeOut, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOut(); err != nil {
			logger.Error("failed to close report file", "error", err)
		}
	}()
	writer := newSummaryWriter(cfg, out)

	// JSON is written once at the end so that the output stays one document.
	var summary *pipeline.SummaryStep
	if !cfg.JSONReport {
		summary = pipeline.NewSummaryStep(writer)
	}

	operator := newOperator(cfg, stdin, os.Stderr)
	pcfg := pipeline.DefaultPipelineConfig{
		OutputDir:      cfg.OutputDir,
		Summary:        summary,
		GateOptions:    gateOptions(cfg),
		CrawlerOptions: crawlerOptions(cfg),
		Progress:       progressReporter(os.Stderr),
		Logger:         logger,
	}
	open := sessionFactory(cfg, route, logger)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(open, operator, pcfg)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchCutoff(cfg.Cutoff),
		pipeline.WithBatchLogger(logger),
	)

	reports := make([]*model.JobReport, len(filters))
	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, filters, func(r *model.JobReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = r
		// Interrupted jobs are stored too.
		saveJobReport(context.WithoutCancel(ctx), db, r, logger)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warn("crawl interrupted")
	}

	if err := writeFinalSummary(cfg, writer, reports); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	if s := report.Summarize(reports); s.AllFailed() {
		return fmt.Errorf("%w (%d of %d)", errAllJobsFailed, s.Failed, s.Jobs)
	}
	return nil
}

// writeFinalSummary writes what the per-job summary step did not: the whole
// JSON document, or the batch table after several jobs.
func writeFinalSummary(cfg *config.Config, w report.Writer, reports []*model.JobReport) error {
	var err error
	switch {
	case cfg.JSONReport && len(reports) == 1 && reports[0] != nil:
		_, err = w.Write(reports[0])
	case cfg.JSONReport || len(reports) > 1:
		_, err = w.WriteBatch(reports)
	}
	return err
}

// saveJobReport stores a job in the history database when one is open.
func saveJobReport(ctx context.Context, db *database.JobDB, r *model.JobReport, logger *slog.Logger) {
	if db == nil {
		return
	}
	id, err := db.SaveJobReport(ctx, r)
	if err != nil {
		logger.Error("failed to save job", "region", r.Filter.Region.String(), "error", err)
		return
	}
	logger.Debug("job saved", "region", r.Filter.Region.String(), "id", id)
}

// openReportOutput returns the summary destination and a function closing it.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}

// newSummaryWriter returns the report writer for the selected format.
func newSummaryWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// newOperator returns who resolves challenges.
func newOperator(cfg *config.Config, in io.Reader, out io.Writer) challenge.Operator {
	if cfg.ChallengeMode == config.ChallengeModePoll {
		return challenge.PollOperator{Interval: cfg.PollInterval}
	}
	return challenge.NewPromptOperator(in, out)
}

// gateOptions configures the challenge gate of every job.
// progressReporter prints one line per inspected item. Lines from
// concurrent jobs are never interleaved.
func progressReporter(w io.Writer) pipeline.ProgressFunc {
	var mu sync.Mutex
	return func(f model.FilterSpec, p crawler.Progress) {
		verdict := "rejected"
		if p.Accepted {
			verdict = "accepted"
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%s] page %d #%d %s %s (valid until %s, %d accepted)\n",
			f.Region, p.Page, p.Item.Index+1, verdict, p.Item.Name, p.Window.EndString(), p.Total)
	}
}

func gateOptions(cfg *config.Config) []challenge.Option {
	return []challenge.Option{
		challenge.WithIndicators(cfg.Indicators),
		challenge.WithSettleDelay(cfg.SettleDelay),
	}
}

// crawlerOptions configures the crawler of every job.
func crawlerOptions(cfg *config.Config) []crawler.Option {
	opts := []crawler.Option{
		crawler.WithSite(cfg.Site),
		crawler.WithTiming(cfg.Timing),
		crawler.WithCutoff(cfg.Cutoff),
		crawler.WithMaxPages(cfg.MaxPages),
	}
	if cfg.PaceScale > 0 {
		opts = append(opts, crawler.WithPacer(crawler.NewPacer(cfg.PaceScale)))
	} else {
		opts = append(opts, crawler.WithPacer(nil))
	}
	return opts
}

// sessionFactory opens a browser for each job, routed through route and
// using the region's own profile.
func sessionFactory(cfg *config.Config, route *egress.Route, logger *slog.Logger) pipeline.SessionFactory {
	return func(ctx context.Context, f model.FilterSpec) (pipeline.Session, error) {
		session, err := browser.Open(ctx, browserOptions(cfg, route, f.Region, logger)...)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// browserOptions builds the session options for region.
func browserOptions(cfg *config.Config, route *egress.Route, region model.Region, logger *slog.Logger) []browser.Option {
	opts := []browser.Option{
		browser.WithHeadless(cfg.Headless),
		browser.WithActionTimeout(cfg.ActionTimeout),
		browser.WithIgnoreCertErrors(cfg.IgnoreCertErrors),
	}
	if cfg.BrowserPath != "" {
		opts = append(opts, browser.WithExecPath(cfg.BrowserPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, browser.WithUserAgent(cfg.UserAgent))
	}
	if route != nil && !route.Direct() {
		opts = append(opts, browser.WithProxyServer(route.ProxyServer))
	}
	if len(cfg.Cookies) > 0 {
		opts = append(opts, browser.WithCookies(cfg.Cookies...))
	}
	if dir := profileDir(cfg.ProfileDir, region); dir != "" {
		opts = append(opts, browser.WithUserDataDir(dir))
	}
	if cfg.Verbose {
		regionLogger := logger.With("region", region.String())
		opts = append(opts, browser.WithDebugLog(func(format string, args ...any) {
			regionLogger.Debug(fmt.Sprintf(format, args...))
		}))
	}
	return opts
}

// profileDir returns the browser profile of region below base, or "" for a
// throwaway profile.
func profileDir(base string, region model.Region) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, region.String())
}
