package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/npoharvest/internal/challenge"
	"github.com/nao1215/npoharvest/internal/model"
)

// DefaultCutoff is the date a validity window must reach to be kept.
var DefaultCutoff = time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)

// crawlState is the orchestrator's position in a job.
type crawlState int

const (
	stateConfiguring crawlState = iota
	statePageLoop
	statePaginating
	stateDone
)

// String returns the state name used in logs.
func (s crawlState) String() string {
	switch s {
	case stateConfiguring:
		return "configuring"
	case statePageLoop:
		return "page_loop"
	case statePaginating:
		return "paginating"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is reported once per inspected item.
type Progress struct {
	Page     int
	Item     model.ListItemSummary
	Window   model.ValidityWindow
	Accepted bool
	Err      error

	// Total is the number of records accepted so far in the job.
	Total int
}

// ProgressFunc receives per-item progress. It runs on the crawl goroutine.
type ProgressFunc func(Progress)

// Crawler walks the registry listing for one filter at a time.
// A Crawler drives a single Session and is not safe for concurrent use; run
// one Crawler per browser session.
type Crawler struct {
	session  Session
	gate     *challenge.Gate
	site     Site
	timing   Timing
	cutoff   time.Time
	pacer    *Pacer
	maxPages int
	progress ProgressFunc
	logger   *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithSite overrides the site contract.
func WithSite(site Site) Option {
	return func(c *Crawler) {
		c.site = site
	}
}

// WithTiming overrides the bounded waits.
func WithTiming(t Timing) Option {
	return func(c *Crawler) {
		c.timing = t
	}
}

// WithCutoff sets the validity cutoff date (inclusive).
func WithCutoff(cutoff time.Time) Option {
	return func(c *Crawler) {
		c.cutoff = cutoff
	}
}

// WithPacer sets the pacer. A nil pacer disables pacing.
func WithPacer(p *Pacer) Option {
	return func(c *Crawler) {
		c.pacer = p
	}
}

// WithMaxPages stops after n list pages. 0 means no limit.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		c.maxPages = n
	}
}

// WithProgress sets a per-item progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Crawler) {
		c.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler driving session. gate is consulted at every
// checkpoint where a challenge can show up.
func New(session Session, gate *challenge.Gate, opts ...Option) *Crawler {
	c := &Crawler{
		session: session,
		gate:    gate,
		site:    DefaultSite(),
		timing:  DefaultTiming(),
		cutoff:  DefaultCutoff,
		pacer:   NewPacer(1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls every page matching f and returns the accepted records in
// page-then-position order.
//
// Configuration failures abort the job with ErrConfigure and no records.
// Once the listing is up, failures on single items or pages degrade the
// result instead of aborting. A cancelled ctx ends the job with the records
// accepted so far and report.Cancelled set; this is not an error. Any other
// error is returned together with the partial report.
func (c *Crawler) Run(ctx context.Context, f model.FilterSpec) (*model.JobReport, error) {
	report := model.NewJobReport(f, c.cutoff)
	report.StartedAt = time.Now()

	if err := f.Validate(); err != nil {
		report.FinishedAt = time.Now()
		report.SetError(err)
		return report, err
	}

	state := model.NewCrawlState()
	err := c.loop(ctx, f, state, report)

	report.Records = state.Records()
	report.ChallengesResolved = c.gate.Resolved()
	report.FinishedAt = time.Now()

	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		report.Cancelled = true
		c.logger.Warn("crawl cancelled", "records", report.Accepted())
		err = nil
	default:
		report.SetError(err)
	}

	c.logger.Info("crawl finished",
		"records", report.Accepted(),
		"pages", report.PagesVisited,
		"inspected", report.ItemsInspected,
		"duration", report.Duration().Round(time.Second))
	return report, err
}

func (c *Crawler) loop(ctx context.Context, f model.FilterSpec, state *model.CrawlState, report *model.JobReport) error {
	for st := stateConfiguring; st != stateDone; {
		c.logger.Debug("crawl state", "state", st.String(), "page", state.PageNumber())

		switch st {
		case stateConfiguring:
			if err := c.configure(ctx, f); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", ErrConfigure, err)
			}
			st = statePageLoop

		case statePageLoop:
			if err := c.processPage(ctx, state, report); err != nil {
				return err
			}
			st = statePaginating

		case statePaginating:
			st = stateDone
			if c.maxPages > 0 && state.PageNumber() >= c.maxPages {
				c.logger.Info("page limit reached", "pages", c.maxPages)
				break
			}
			if !c.HasNextPage(ctx) {
				break
			}
			ok, err := c.Advance(ctx)
			if err != nil {
				return err
			}
			if ok {
				state.NextPage()
				st = statePageLoop
			}
		}
	}
	return nil
}

// processPage validates every item of the current page in display order.
// The page is abandoned when the list view cannot be restored after an item.
func (c *Crawler) processPage(ctx context.Context, state *model.CrawlState, report *model.JobReport) error {
	items, err := c.ReadCurrentPage(ctx)
	if err != nil {
		return err
	}
	report.PagesVisited++
	c.logger.Info("processing page", "page", state.PageNumber(), "items", len(items))

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := c.Validate(ctx, i)
		if err != nil {
			return err
		}

		report.ItemsInspected++
		if v.Valid {
			state.Append(model.NewRecord(v.Item, report.Filter.Region))
			c.logger.Debug("accepted", "name", v.Item.Name, "valid_until", v.Window.EndString())
		} else {
			report.ItemsRejected++
			c.logger.Debug("rejected", "name", v.Item.Name, "valid_until", v.Window.EndString(), "error", v.Err)
		}
		if c.progress != nil {
			c.progress(Progress{
				Page:     state.PageNumber(),
				Item:     v.Item,
				Window:   v.Window,
				Accepted: v.Valid,
				Err:      v.Err,
				Total:    state.Len(),
			})
		}

		if !v.ListRestored {
			report.PagesAbandoned++
			c.logger.Warn("list view lost, abandoning page", "page", state.PageNumber(), "position", i)
			return nil
		}
		if err := c.pacer.Wait(ctx, pauseItem); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint lets the challenge gate inspect the page.
func (c *Crawler) checkpoint(ctx context.Context, name string) error {
	_, err := c.gate.Check(ctx, c.session, name)
	return err
}
