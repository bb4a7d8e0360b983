package crawler

import (
	"context"
	"time"

	"github.com/nao1215/npoharvest/internal/challenge"
)

// Session is the browser capability the crawler drives. Implementations
// query the live page on every call and never hand out element references,
// so positions are always resolved against the current DOM.
//
// browser.ChromeSession is the production implementation.
type Session interface {
	challenge.Inspector

	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error

	// Back goes one step back in history.
	Back(ctx context.Context) error

	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)

	// WaitFor waits up to timeout for an element matching selector.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// WaitGone waits up to timeout until nothing matches selector.
	WaitGone(ctx context.Context, selector string, timeout time.Duration) error

	// ClickNth clicks the index-th match of selector, or its first
	// descendant matching child when child is not empty.
	ClickNth(ctx context.Context, selector string, index int, child string) error

	// ClickText clicks the index-th element whose text contains text.
	ClickText(ctx context.Context, text string, index int) error

	// Fill types value into the input matching selector.
	Fill(ctx context.Context, selector, value string) error

	// ClickAt clicks a viewport coordinate.
	ClickAt(ctx context.Context, x, y float64) error
}
