package crawler

import (
	"context"
	"fmt"

	"github.com/nao1215/npoharvest/internal/model"
)

// configure opens the listing and submits the filter form for f.
// Any failure here is fatal for the job.
func (c *Crawler) configure(ctx context.Context, f model.FilterSpec) error {
	if err := c.session.Navigate(ctx, c.site.ListURL); err != nil {
		return fmt.Errorf("open listing: %w", err)
	}
	if err := c.pacer.Wait(ctx, pauseLoad); err != nil {
		return err
	}
	if err := c.checkpoint(ctx, "initial load"); err != nil {
		return err
	}

	for _, l := range c.site.StatusFilters {
		if err := c.session.ClickText(ctx, l.Text, l.Index); err != nil {
			return fmt.Errorf("select filter %q #%d: %w", l.Text, l.Index, err)
		}
		if err := c.pacer.Wait(ctx, pauseAction); err != nil {
			return err
		}
	}

	if err := c.session.Fill(ctx, c.site.KeywordInput, f.Keyword); err != nil {
		return fmt.Errorf("enter keyword: %w", err)
	}
	if err := c.pacer.Wait(ctx, pauseTyping); err != nil {
		return err
	}

	// Closes the autocomplete popup opened by typing.
	if err := c.session.ClickAt(ctx, c.site.BlankArea.X, c.site.BlankArea.Y); err != nil {
		return fmt.Errorf("dismiss suggestions: %w", err)
	}
	if err := c.pacer.Wait(ctx, pauseAction); err != nil {
		return err
	}

	if err := c.session.ClickNth(ctx, c.site.RegionSelector, 0, ""); err != nil {
		return fmt.Errorf("open region selector: %w", err)
	}
	if err := c.pacer.Wait(ctx, pauseAction); err != nil {
		return err
	}
	if err := c.session.ClickText(ctx, f.Region.String(), 0); err != nil {
		return fmt.Errorf("choose region %s: %w", f.Region, err)
	}
	if err := c.pacer.Wait(ctx, pauseAction); err != nil {
		return err
	}

	if err := c.session.ClickNth(ctx, c.site.SearchButton, 0, ""); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	if err := c.pacer.Wait(ctx, pauseLoad); err != nil {
		return err
	}
	return c.checkpoint(ctx, "filter submission")
}
