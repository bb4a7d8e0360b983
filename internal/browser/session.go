package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeSession is one Chrome process with a single tab.
// Methods must not be called concurrently.
type ChromeSession struct {
	opts options

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	closeOnce sync.Once
	closed    bool
}

// Open starts Chrome and opens a blank tab. The browser lives until Close,
// independently of ctx, which only bounds the startup.
func Open(ctx context.Context, opts ...Option) (*ChromeSession, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.headless),
		chromedp.Flag("disable-gpu", o.headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("ignore-certificate-errors", o.ignoreCerts),
		chromedp.UserAgent(o.userAgent),
		chromedp.WindowSize(o.width, o.height),
	)
	if o.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.execPath))
	}
	if o.proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(o.proxyServer))
	}
	if o.userDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(o.userDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if o.logf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(o.logf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &ChromeSession{
		opts:        o,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// The first Run launches the browser.
	startup := []chromedp.Action{chromedp.Navigate("about:blank")}
	if len(o.cookies) > 0 {
		startup = append(startup, setCookies(o.cookies))
	}
	if err := s.run(ctx, 0, startup...); err != nil {
		_ = s.Close() //nolint:errcheck // startup already failed
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

func setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if err := network.SetCookie(c.Name, c.Value).WithDomain(c.Domain).WithPath("/").Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// run executes actions on the tab. The run ends when ctx ends, when timeout
// elapses (the session's action timeout if zero) or when the session closes.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = s.opts.actionTimeout
	}

	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the document body.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Back goes one step back in the tab history.
func (s *ChromeSession) Back(ctx context.Context) error {
	return s.run(ctx, 0, chromedp.NavigateBack())
}

// HTML returns a snapshot of the rendered document.
func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// WaitFor waits up to timeout for an element matching selector.
func (s *ChromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// WaitGone waits up to timeout until no element matches selector.
func (s *ChromeSession) WaitGone(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitNotPresent(selector, chromedp.ByQuery))
}

// Count returns how many elements match selector right now.
func (s *ChromeSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.run(ctx, 0, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)), &n))
	return n, err
}

// HasText reports whether the visible body text contains text.
func (s *ChromeSession) HasText(ctx context.Context, text string) (bool, error) {
	var found bool
	err := s.run(ctx, 0, chromedp.Evaluate(
		fmt.Sprintf(`!!document.body && document.body.innerText.includes(%s)`, jsString(text)), &found))
	return found, err
}

// ClickNth clicks the index-th (0-based) element matching selector. When
// child is not empty the click goes to the first descendant of that element
// matching child. Elements are queried at call time.
func (s *ChromeSession) ClickNth(ctx context.Context, selector string, index int, child string) error {
	return s.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := nth(ctx, selector, index, chromedp.ByQueryAll)
		if err != nil {
			return err
		}
		if child != "" {
			var kids []*cdp.Node
			if err := chromedp.Nodes(child, &kids, chromedp.ByQueryAll, chromedp.FromNode(node), chromedp.AtLeast(0)).Do(ctx); err != nil {
				return err
			}
			if len(kids) == 0 {
				return fmt.Errorf("%w: %s within %s[%d]", ErrNoSuchElement, child, selector, index)
			}
			node = kids[0]
		}
		return chromedp.MouseClickNode(node).Do(ctx)
	}))
}

// ClickText clicks the index-th element whose own text contains text.
func (s *ChromeSession) ClickText(ctx context.Context, text string, index int) error {
	return s.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := nth(ctx, textXPath(text), index, chromedp.BySearch)
		if err != nil {
			return err
		}
		return chromedp.MouseClickNode(node).Do(ctx)
	}))
}

// Fill replaces the value of the first input matching selector by typing value.
func (s *ChromeSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx, 0,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// ClickAt clicks the viewport at (x, y).
func (s *ChromeSession) ClickAt(ctx context.Context, x, y float64) error {
	return s.run(ctx, 0, chromedp.MouseClickXY(x, y))
}

// Close shuts the browser down. It is safe to call more than once.
func (s *ChromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		err = chromedp.Cancel(s.tabCtx)
		s.tabCancel()
		s.allocCancel()
	})
	return err
}

func nth(ctx context.Context, query string, index int, by chromedp.QueryOption) (*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(query, &nodes, by, chromedp.AtLeast(0)).Do(ctx); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(nodes) {
		return nil, fmt.Errorf("%w: %s[%d] (%d matches)", ErrNoSuchElement, query, index, len(nodes))
	}
	return nodes[index], nil
}

// textXPath matches elements whose direct text contains text, excluding
// script and style content.
func textXPath(text string) string {
	return fmt.Sprintf(`//*[not(self::script) and not(self::style) and contains(normalize-space(text()), %s)]`, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}

func jsString(s string) string {
	b, _ := json.Marshal(s) //nolint:errcheck // strings always marshal
	return string(b)
}
