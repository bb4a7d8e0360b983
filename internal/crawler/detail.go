package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/npoharvest/internal/model"
	"github.com/nao1215/npoharvest/internal/validity"
)

// Verdict is the outcome of checking one list item.
type Verdict struct {
	// Item is the item as re-resolved right before opening it.
	Item model.ListItemSummary

	// Window is what the detail view showed.
	Window model.ValidityWindow

	// Valid is true when the window ends on or after the cutoff.
	Valid bool

	// ListRestored is true when the list view was confirmed afterwards.
	ListRestored bool

	// Err is the reason the item could not be checked, if any.
	Err error
}

// Validate opens the detail view of the item at index on the current page,
// decides whether its validity window reaches the cutoff and returns to the
// list. The item is re-resolved from the live list first, so positions stay
// valid across earlier navigations.
//
// Item-level failures are reported in the Verdict and make the item invalid.
// The returned error is reserved for conditions that end the job: a cancelled
// context or an operator who gave up on a challenge.
func (c *Crawler) Validate(ctx context.Context, index int) (Verdict, error) {
	var v Verdict

	item, err := c.ResolveItemAt(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		v.Err = err
		v.ListRestored = c.listVisible(ctx)
		return v, nil
	}
	v.Item = item

	if err := c.checkpoint(ctx, "list item"); err != nil {
		return v, err
	}

	if err := c.session.ClickNth(ctx, c.itemSelector(), index, c.site.ItemTitle); err != nil {
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		v.Err = err
		restored, err := c.recoverList(ctx)
		v.ListRestored = restored
		return v, err
	}
	if err := c.pacer.Wait(ctx, pauseDetail); err != nil {
		return v, err
	}
	if err := c.checkpoint(ctx, "detail view"); err != nil {
		return v, err
	}

	// The detail view replaces the list. If the list outlives DetailLoad the
	// extraction below still runs and rejects what it cannot find.
	if err := c.session.WaitGone(ctx, c.site.ListContainer, c.timing.DetailLoad); err != nil {
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		c.logger.Debug("list still shown after opening item", "name", item.Name, "error", err)
	}

	raw, err := c.extractRange(ctx)
	switch {
	case ctx.Err() != nil:
		return v, ctx.Err()
	case err != nil:
		v.Err = err
	default:
		end, ok := validity.ParseEnd(raw)
		v.Window = model.ValidityWindow{RawText: raw, End: end, HasEnd: ok}
		v.Valid = ok && validity.Covers(end, c.cutoff)
		if !ok {
			c.logger.Debug("validity text not parseable", "name", item.Name, "text", raw)
		}
	}

	restored, err := c.returnToList(ctx)
	v.ListRestored = restored
	return v, err
}

// extractRange searches the detail view for the validity range text: first
// in the prioritized selectors, then in the leading lines of the body text.
func (c *Crawler) extractRange(ctx context.Context) (string, error) {
	doc, err := c.snapshot(ctx)
	if err != nil {
		return "", err
	}

	for _, sel := range c.site.DetailSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			if c.session.WaitFor(ctx, sel, c.timing.DetailSelectorWait) != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				continue
			}
			if doc, err = c.snapshot(ctx); err != nil {
				return "", err
			}
			matches = doc.Find(sel)
		}
		if text, ok := c.firstRange(matches); ok {
			return text, nil
		}
	}

	if bodies := doc.Find("body").Nodes; len(bodies) > 0 {
		body := TextLines(bodies[0])
		if c.site.FallbackLines > 0 && len(body) > c.site.FallbackLines {
			body = body[:c.site.FallbackLines]
		}
		for _, line := range body {
			if validity.LooksLikeRange(line) {
				return line, nil
			}
		}
	}
	return "", ErrNoValidityText
}

func (c *Crawler) firstRange(matches *goquery.Selection) (string, bool) {
	if c.site.DetailElementLimit > 0 && matches.Length() > c.site.DetailElementLimit {
		matches = matches.Slice(0, c.site.DetailElementLimit)
	}
	var found string
	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if validity.LooksLikeRange(text) {
			found = text
			return false
		}
		return true
	})
	return found, found != ""
}

// returnToList navigates back from a detail view and confirms the list.
func (c *Crawler) returnToList(ctx context.Context) (bool, error) {
	if err := c.session.Back(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("failed to navigate back to list", "error", err)
	}
	if err := c.pacer.Wait(ctx, pauseDetail); err != nil {
		return false, err
	}
	if err := c.checkpoint(ctx, "return to list"); err != nil {
		return false, err
	}
	if err := c.session.WaitFor(ctx, c.site.ListContainer, c.timing.RestoreWait); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

// recoverList is used after a failed click: the click may or may not have
// navigated away, so the list is checked before going back.
func (c *Crawler) recoverList(ctx context.Context) (bool, error) {
	if c.listVisible(ctx) {
		return true, nil
	}
	return c.returnToList(ctx)
}

// listVisible reports whether the list container is on screen right now.
func (c *Crawler) listVisible(ctx context.Context) bool {
	n, err := c.session.Count(ctx, c.site.ListContainer)
	return err == nil && n > 0
}
