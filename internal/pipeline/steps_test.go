package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/npoharvest/internal/challenge"
	"github.com/nao1215/npoharvest/internal/crawler"
	"github.com/nao1215/npoharvest/internal/model"
	"github.com/nao1215/npoharvest/internal/report"
)

// stubSession is a browser session on a page without a listing.
type stubSession struct {
	mu          sync.Mutex
	navigateErr error
	closed      bool
}

func (s *stubSession) Navigate(context.Context, string) error { return s.navigateErr }
func (s *stubSession) Back(context.Context) error             { return nil }
func (s *stubSession) HTML(context.Context) (string, error) {
	return "<html><body></body></html>", nil
}
func (s *stubSession) WaitFor(context.Context, string, time.Duration) error {
	return errors.New("timeout")
}
func (s *stubSession) WaitGone(context.Context, string, time.Duration) error { return nil }
func (s *stubSession) ClickNth(context.Context, string, int, string) error { return nil }
func (s *stubSession) ClickText(context.Context, string, int) error        { return nil }
func (s *stubSession) Fill(context.Context, string, string) error          { return nil }
func (s *stubSession) ClickAt(context.Context, float64, float64) error     { return nil }
func (s *stubSession) Count(context.Context, string) (int, error)          { return 0, nil }
func (s *stubSession) HasText(context.Context, string) (bool, error)       { return false, nil }

func (s *stubSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// listingSession shows a one-item listing whose detail view is valid
// through 2030.
type listingSession struct {
	stubSession
	detail bool
}

func (s *listingSession) HTML(context.Context) (string, error) {
	if s.detail {
		return `<html><body><div class="ant-card-body"><span class="data_span text">有效期2020-01-01至2030-01-01</span></div></body></html>`, nil
	}
	return `<html><body><ul class="list_ul"><li class="list_li"><div class="title_text">数据协会</div>` +
		`<span class="text_span">成立时间: 2018-05-01</span></li></ul></body></html>`, nil
}

func (s *listingSession) Count(ctx context.Context, selector string) (int, error) {
	raw, err := s.HTML(ctx)
	if err != nil {
		return 0, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

func (s *listingSession) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if n, err := s.Count(ctx, selector); err != nil || n == 0 {
		return errors.New("timeout")
	}
	return nil
}

func (s *listingSession) WaitGone(context.Context, string, time.Duration) error { return nil }

func (s *listingSession) ClickNth(_ context.Context, selector string, _ int, _ string) error {
	if strings.Contains(selector, ".list_li") {
		s.detail = true
	}
	return nil
}

func (s *listingSession) Back(context.Context) error {
	s.detail = false
	return nil
}

// noOperator fails the test if a challenge is reported.
type noOperator struct{ t *testing.T }

func (o noOperator) Await(context.Context, challenge.Notice) error {
	o.t.Error("unexpected challenge")
	return nil
}

func newTestCrawlStep(t *testing.T, session *stubSession, openErr error) *CrawlStep {
	t.Helper()
	return NewCrawlStep(
		func(context.Context, model.FilterSpec) (Session, error) {
			if openErr != nil {
				return nil, openErr
			}
			return session, nil
		},
		noOperator{t},
		WithCrawlerOptions(crawler.WithPacer(nil)),
	)
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("empty listing completes and closes the session", func(t *testing.T) {
		t.Parallel()

		session := &stubSession{}
		job := newTestReport()
		job.PerformedSteps = []string{"earlier"}

		if err := newTestCrawlStep(t, session, nil).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !session.isClosed() {
			t.Error("expected session to be closed")
		}
		if job.PagesVisited != 1 || job.Accepted() != 0 {
			t.Errorf("unexpected crawl result: pages=%d records=%d", job.PagesVisited, job.Accepted())
		}
		if job.StartedAt.IsZero() || job.FinishedAt.IsZero() {
			t.Error("expected crawl timestamps to be copied")
		}
		if len(job.PerformedSteps) != 1 {
			t.Errorf("pipeline fields were overwritten: %v", job.PerformedSteps)
		}
	})

	t.Run("configuration failure", func(t *testing.T) {
		t.Parallel()

		session := &stubSession{navigateErr: errors.New("net::ERR_CONNECTION_RESET")}
		job := newTestReport()

		err := newTestCrawlStep(t, session, nil).Do(context.Background(), job)
		if !errors.Is(err, crawler.ErrConfigure) {
			t.Fatalf("expected ErrConfigure, got %v", err)
		}
		if !job.Failed() || job.Accepted() != 0 {
			t.Errorf("expected failed job without records, got %+v", job)
		}
		if !session.isClosed() {
			t.Error("expected session to be closed")
		}
	})

	t.Run("session factory failure", func(t *testing.T) {
		t.Parallel()

		openErr := errors.New("chrome not found")
		err := newTestCrawlStep(t, nil, openErr).Do(context.Background(), newTestReport())
		if !errors.Is(err, openErr) {
			t.Errorf("expected factory error, got %v", err)
		}
	})
}

func TestCrawlStep_Progress(t *testing.T) {
	t.Parallel()

	var got []crawler.Progress
	var region model.Region
	step := NewCrawlStep(
		func(context.Context, model.FilterSpec) (Session, error) { return &listingSession{}, nil },
		noOperator{t},
		WithCrawlerOptions(crawler.WithPacer(nil)),
		WithProgressReporter(func(f model.FilterSpec, p crawler.Progress) {
			region = f.Region
			got = append(got, p)
		}),
	)

	job := newTestReport()
	if err := step.Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one progress report, got %d", len(got))
	}
	if region != job.Filter.Region {
		t.Errorf("progress region = %s, want %s", region, job.Filter.Region)
	}
	if p := got[0]; !p.Accepted || p.Item.Name != "数据协会" || p.Total != 1 || p.Window.EndString() != "2030-01-01" {
		t.Errorf("unexpected progress: %+v", p)
	}
	if job.Accepted() != 1 {
		t.Errorf("expected one record, got %d", job.Accepted())
	}
}

func TestExportStep(t *testing.T) {
	t.Parallel()

	t.Run("exports records and sets the output file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		job := newTestReport()
		job.Records = []model.Record{{Name: "北京数据协会", Region: "北京市", DeclaredDate: "2020-01-01"}}

		step := NewExportStep(dir, nil)
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := filepath.Join(dir, report.CSVFileName("北京市"))
		if job.OutputFile != want {
			t.Errorf("OutputFile = %q, want %q", job.OutputFile, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("expected file: %v", err)
		}
	})

	t.Run("no records is not an error", func(t *testing.T) {
		t.Parallel()

		job := newTestReport()
		if err := NewExportStep(t.TempDir(), nil).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.OutputFile != "" {
			t.Errorf("expected no output file, got %q", job.OutputFile)
		}
	})

	t.Run("is a finalizer", func(t *testing.T) {
		t.Parallel()

		var step Step = NewExportStep(t.TempDir(), nil)
		if _, ok := step.(Finalizer); !ok {
			t.Error("expected ExportStep to implement Finalizer")
		}
	})
}

func TestSummaryStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewSummaryStep(report.NewSimpleWriter(&buf))

	job := newTestReport()
	if err := step.Do(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "北京市") {
		t.Errorf("expected summary output, got %q", buf.String())
	}
	if _, ok := Step(step).(Finalizer); !ok {
		t.Error("expected SummaryStep to implement Finalizer")
	}
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("crawl, export and summary", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(nil, nil, DefaultPipelineConfig{
			OutputDir: t.TempDir(),
			Summary:   NewSummaryStep(report.NewSimpleWriter(&bytes.Buffer{})),
		})
		want := "crawl,export,summary"
		if got := strings.Join(p.StepNames(), ","); got != want {
			t.Errorf("StepNames() = %s, want %s", got, want)
		}
	})

	t.Run("summary is optional", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(nil, nil, DefaultPipelineConfig{OutputDir: t.TempDir()})
		if p.StepCount() != 2 {
			t.Errorf("expected 2 steps, got %d", p.StepCount())
		}
	})

	t.Run("failed crawl is still summarized", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		session := &stubSession{navigateErr: errors.New("refused")}
		p := DefaultPipeline(
			func(context.Context, model.FilterSpec) (Session, error) { return session, nil },
			noOperator{t},
			DefaultPipelineConfig{
				OutputDir:      t.TempDir(),
				Summary:        NewSummaryStep(report.NewSimpleWriter(&buf)),
				CrawlerOptions: []crawler.Option{crawler.WithPacer(nil)},
			},
		)

		job := newTestReport()
		if err := p.Execute(context.Background(), job); !errors.Is(err, crawler.ErrConfigure) {
			t.Fatalf("expected ErrConfigure, got %v", err)
		}
		if !strings.Contains(buf.String(), "ERROR") {
			t.Errorf("expected error summary, got %q", buf.String())
		}
		if got := strings.Join(job.PerformedSteps, ","); got != "crawl,export,summary" {
			t.Errorf("PerformedSteps = %s", got)
		}
	})
}
