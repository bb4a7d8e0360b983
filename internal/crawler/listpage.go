package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/npoharvest/internal/model"
)

// ReadCurrentPage returns the items shown on the current list page in
// display order. A list that does not appear within Timing.ListWait is an
// empty page. The only errors returned come from ctx or from taking the
// page snapshot.
func (c *Crawler) ReadCurrentPage(ctx context.Context) ([]model.ListItemSummary, error) {
	if err := c.session.WaitFor(ctx, c.site.ListContainer, c.timing.ListWait); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("list container not found", "selector", c.site.ListContainer, "error", err)
		return nil, nil
	}

	doc, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.parseListItems(doc), nil
}

// ResolveItemAt re-reads the live list and returns the item at index.
func (c *Crawler) ResolveItemAt(ctx context.Context, index int) (model.ListItemSummary, error) {
	items, err := c.ReadCurrentPage(ctx)
	if err != nil {
		return model.ListItemSummary{}, err
	}
	if index < 0 || index >= len(items) {
		return model.ListItemSummary{}, fmt.Errorf("%w: position %d of %d", ErrItemNotFound, index, len(items))
	}
	return items[index], nil
}

// itemSelector matches the list items inside the list container. Reading
// and clicking both count positions with it, so index i names the same
// element in the snapshot and in the live page.
func (c *Crawler) itemSelector() string {
	if c.site.ListContainer == "" {
		return c.site.ListItem
	}
	return c.site.ListContainer + " " + c.site.ListItem
}

func (c *Crawler) parseListItems(doc *goquery.Document) []model.ListItemSummary {
	items := make([]model.ListItemSummary, 0)

	doc.Find(c.itemSelector()).Each(func(i int, li *goquery.Selection) {
		items = append(items, model.ListItemSummary{
			Index:        i,
			Name:         cleanTitle(li.Find(c.site.ItemTitle).First().Text()),
			DeclaredDate: c.declaredDate(li),
		})
	})
	return items
}

// declaredDate scans the first ItemFieldLimit fields for the declared date
// label. The first field carrying the label wins.
func (c *Crawler) declaredDate(li *goquery.Selection) string {
	label := strings.TrimRight(c.site.DeclaredDateLabel, ":：")
	fields := li.Find(c.site.ItemField)
	if c.site.ItemFieldLimit > 0 && fields.Length() > c.site.ItemFieldLimit {
		fields = fields.Slice(0, c.site.ItemFieldLimit)
	}

	var date string
	fields.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, after, ok := strings.Cut(s.Text(), label); ok {
			date = strings.TrimSpace(strings.TrimLeft(after, ":： "))
			return false
		}
		return true
	})
	return date
}

func cleanTitle(s string) string {
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	return strings.TrimSpace(s)
}

func (c *Crawler) snapshot(ctx context.Context) (*goquery.Document, error) {
	raw, err := c.session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}
