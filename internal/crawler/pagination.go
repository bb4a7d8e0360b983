package crawler

import "context"

// HasNextPage reports whether the listing offers an enabled next-page
// control. Any failure to inspect the page counts as "no next page".
func (c *Crawler) HasNextPage(ctx context.Context) bool {
	doc, err := c.snapshot(ctx)
	if err != nil {
		return false
	}
	next := doc.Find(c.site.NextPage).First()
	if next.Length() == 0 {
		return false
	}
	item := next.Closest("li")
	if item.Length() == 0 {
		item = next.Parent().Parent()
	}
	return !item.HasClass(c.site.DisabledClass)
}

// Advance moves to the next list page. It returns false when the click
// failed or the new list did not show up in time. The error is reserved for
// a cancelled context or an abandoned challenge.
func (c *Crawler) Advance(ctx context.Context) (bool, error) {
	if err := c.session.ClickNth(ctx, c.site.NextPage, 0, ""); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("failed to click next page", "error", err)
		return false, nil
	}
	if err := c.pacer.Wait(ctx, pauseLoad); err != nil {
		return false, err
	}
	if err := c.checkpoint(ctx, "pagination"); err != nil {
		return false, err
	}
	if err := c.session.WaitFor(ctx, c.site.ListContainer, c.timing.PaginationWait); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("list did not appear after pagination", "error", err)
		return false, nil
	}
	return true, nil
}
