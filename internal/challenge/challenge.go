package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Inspector is the part of a browser session the gate needs to look for
// challenge indicators.
type Inspector interface {
	// Count returns the number of elements matching a CSS selector.
	Count(ctx context.Context, selector string) (int, error)

	// HasText reports whether the visible page text contains text.
	HasText(ctx context.Context, text string) (bool, error)
}

// Indicators are the page features that reveal a challenge.
type Indicators struct {
	// Texts are visible strings shown by the challenge widget.
	Texts []string `yaml:"texts"`

	// Selectors are CSS selectors of challenge widgets.
	Selectors []string `yaml:"selectors"`
}

// DefaultIndicators returns the indicators known for the registry site.
func DefaultIndicators() Indicators {
	return Indicators{
		Texts:     []string{"请完成安全验证", "安全验证", "验证码"},
		Selectors: []string{".slider", ".captcha", ".geetest"},
	}
}

// Notice describes a challenge that needs the operator.
type Notice struct {
	// Label identifies the job, usually the region name.
	Label string

	// Checkpoint names the crawl step that observed the challenge.
	Checkpoint string

	// Matched lists the indicators that were found.
	Matched []string

	// Attempt is 1 for the first wait on this challenge and grows while the
	// indicators keep showing up.
	Attempt int
}

// String formats the notice for humans.
func (n Notice) String() string {
	var b strings.Builder
	if n.Label != "" {
		fmt.Fprintf(&b, "[%s] ", n.Label)
	}
	b.WriteString("security verification detected")
	if n.Checkpoint != "" {
		fmt.Fprintf(&b, " at %s", n.Checkpoint)
	}
	if len(n.Matched) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(n.Matched, ", "))
	}
	if n.Attempt > 1 {
		fmt.Fprintf(&b, ", still present after %d attempts", n.Attempt-1)
	}
	return b.String()
}

// Operator is whoever clears a challenge. Await blocks until the operator
// signals completion or ctx ends.
type Operator interface {
	Await(ctx context.Context, n Notice) error
}

// Gate pauses a crawl while a challenge is showing.
// A Gate is used by one job; Operators may be shared.
type Gate struct {
	indicators Indicators
	operator   Operator
	settle     time.Duration
	label      string
	logger     *slog.Logger
	resolved   int
}

// Option configures a Gate.
type Option func(*Gate)

// WithIndicators replaces the default indicators.
func WithIndicators(ind Indicators) Option {
	return func(g *Gate) {
		g.indicators = ind
	}
}

// WithSettleDelay sets how long to wait after the operator's signal before
// inspecting the page again.
func WithSettleDelay(d time.Duration) Option {
	return func(g *Gate) {
		g.settle = d
	}
}

// WithLabel attributes notices to a job.
func WithLabel(label string) Option {
	return func(g *Gate) {
		g.label = label
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a Gate that waits on op.
func NewGate(op Operator, opts ...Option) *Gate {
	g := &Gate{
		indicators: DefaultIndicators(),
		operator:   op,
		settle:     3 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Detect returns the indicators currently visible. Inspection errors on a
// single indicator are treated as "not present".
func (g *Gate) Detect(ctx context.Context, page Inspector) []string {
	var matched []string
	for _, text := range g.indicators.Texts {
		if ok, err := page.HasText(ctx, text); err == nil && ok {
			matched = append(matched, text)
		}
	}
	for _, sel := range g.indicators.Selectors {
		if n, err := page.Count(ctx, sel); err == nil && n > 0 {
			matched = append(matched, sel)
		}
	}
	return matched
}

// Check inspects the page at checkpoint. If a challenge is visible it blocks
// until the operator has cleared it, re-inspecting after every signal.
// It reports whether a challenge was observed. The only errors returned come
// from ctx or the Operator.
func (g *Gate) Check(ctx context.Context, page Inspector, checkpoint string) (bool, error) {
	matched := g.Detect(ctx, page)
	if len(matched) == 0 {
		return false, nil
	}

	for attempt := 1; len(matched) > 0; attempt++ {
		n := Notice{
			Label:      g.label,
			Checkpoint: checkpoint,
			Matched:    matched,
			Attempt:    attempt,
		}
		g.logger.Warn("challenge detected, waiting for operator",
			"checkpoint", checkpoint,
			"indicators", strings.Join(matched, ","),
			"attempt", attempt)

		if err := g.operator.Await(ctx, n); err != nil {
			return true, fmt.Errorf("waiting for challenge at %s: %w", checkpoint, err)
		}
		if err := sleep(ctx, g.settle); err != nil {
			return true, err
		}
		matched = g.Detect(ctx, page)
	}

	g.resolved++
	g.logger.Info("challenge cleared", "checkpoint", checkpoint)
	return true, nil
}

// Resolved returns how many challenges this gate has seen cleared.
func (g *Gate) Resolved() int {
	return g.resolved
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
