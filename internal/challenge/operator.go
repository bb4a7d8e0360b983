package challenge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrOperatorGone is returned when the operator's input stream is closed.
var ErrOperatorGone = errors.New("operator input closed")

// PromptOperator asks a human on a terminal to solve the challenge in the
// browser window and press Enter.
//
// One PromptOperator can be shared by concurrent jobs; prompts are shown one
// at a time and each line of input answers exactly one prompt.
type PromptOperator struct {
	in  io.Reader
	out io.Writer

	mu    sync.Mutex
	once  sync.Once
	lines chan struct{}
}

// NewPromptOperator creates a PromptOperator reading from in and writing
// prompts to out.
func NewPromptOperator(in io.Reader, out io.Writer) *PromptOperator {
	return &PromptOperator{in: in, out: out}
}

// Await prints the notice and waits for one line of input.
func (p *PromptOperator) Await(ctx context.Context, n Notice) error {
	p.once.Do(p.startReader)

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s\n", n)
	fmt.Fprintln(p.out, "Complete the verification in the browser window, then press Enter to continue...")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-p.lines:
		if !ok {
			return ErrOperatorGone
		}
		return nil
	}
}

// startReader feeds input lines into p.lines. The goroutine ends with the
// input stream; a blocked read cannot be interrupted by a context.
func (p *PromptOperator) startReader() {
	p.lines = make(chan struct{})
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(p.in)
		for sc.Scan() {
			p.lines <- struct{}{}
		}
	}()
}

// PollOperator does not talk to anyone: it waits a fixed interval and lets
// the gate re-inspect the page. It suits unattended runs where the challenge
// is solved through a remote view of the browser.
type PollOperator struct {
	Interval time.Duration
}

// Await sleeps for the poll interval.
func (p PollOperator) Await(ctx context.Context, _ Notice) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return sleep(ctx, interval)
}
