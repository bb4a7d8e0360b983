package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/npoharvest/internal/challenge"
)

var errFakeNoElement = errors.New("fake: no such element")

// fakeItem is one organization in the fake registry.
type fakeItem struct {
	name     string
	declared string
	validity string

	// layout selects the detail markup: "" (data spans), "descriptions"
	// or "body" (plain paragraphs only).
	layout string
}

// fakeSite is an in-memory registry implementing Session. Selectors are
// evaluated with goquery against the markup the site would render.
type fakeSite struct {
	site    Site
	pages   [][]fakeItem
	regions []string

	view      string
	page      int
	detail    fakeItem
	challenge bool
	keyword   string

	detailsOpened int

	// challengeOnDetail shows a challenge when the n-th detail view opens.
	challengeOnDetail int
	// challengeOnPage shows a challenge when page n (0-based) is reached.
	challengeOnPage int
	// failBackOnDetail makes Back fail while on the n-th detail view.
	failBackOnDetail int
	// failTitleClick makes the title click fail for these "page/index" keys.
	failTitleClick map[string]bool
	// sidebar items are rendered with the list item markup outside the list.
	sidebar []fakeItem
	// detailLag keeps the list on screen after a title click until the
	// crawler waits for it to go away.
	detailLag bool
	// staleSnapshots counts snapshots taken while the list lingered.
	staleSnapshots int

	nextClicks int
	calls      []string
}

func newFakeSite(pages ...[]fakeItem) *fakeSite {
	return &fakeSite{
		site:            DefaultSite(),
		pages:           pages,
		regions:         []string{"北京市", "上海市", "广东省"},
		view:            "blank",
		challengeOnPage: -1,
	}
}

func (s *fakeSite) render() string {
	var b strings.Builder
	b.WriteString("<html><head><title>社会组织信息公示</title>")
	b.WriteString("<script>var sample = '2000-01-01至2099-01-01';</script></head><body>")
	if s.challenge {
		b.WriteString(`<div class="geetest"><p>请完成安全验证</p></div>`)
	}

	switch s.view {
	case "list", "opening":
		if len(s.sidebar) > 0 {
			b.WriteString(`<div class="sidebar"><h3>推荐组织</h3><ul>`)
			for _, it := range s.sidebar {
				fmt.Fprintf(&b, `<li class="list_li"><div class="title_text">%s</div></li>`, it.name)
			}
			b.WriteString(`</ul></div>`)
		}
		b.WriteString(`<div class="filters"><span>正常</span><span>正常</span><span>社会团体</span>`)
		b.WriteString(`<input placeholder="请输入社会组织名称或统一社会信用代码">`)
		b.WriteString(`<div class="ant-select-selection">请选择</div><button class="search_button">查询</button></div>`)
		b.WriteString(`<ul class="list_ul">`)
		for _, it := range s.pages[s.page] {
			fmt.Fprintf(&b, "<li class=\"list_li\"><div class=\"title_text\">\n  %s\n</div>"+
				"<span class=\"text_span\">统一社会信用代码: 51110000MJ0000000X</span>"+
				"<span class=\"text_span\">成立时间: %s</span></li>", it.name, it.declared)
		}
		b.WriteString(`</ul>`)
		disabled := ""
		if s.page == len(s.pages)-1 {
			disabled = " ant-pagination-disabled"
		}
		b.WriteString(`<ul class="ant-pagination">`)
		b.WriteString(`<li class="ant-pagination-prev"><a class="ant-pagination-item-link"><i class="anticon anticon-left"></i></a></li>`)
		fmt.Fprintf(&b, `<li class="ant-pagination-next%s"><a class="ant-pagination-item-link"><i class="anticon anticon-right"></i></a></li>`, disabled)
		b.WriteString(`</ul>`)

	case "detail":
		fmt.Fprintf(&b, "<h2>%s</h2>", s.detail.name)
		switch s.detail.layout {
		case "descriptions":
			fmt.Fprintf(&b, `<table><tr><td class="ant-descriptions-item-content">%s</td>`+
				`<td class="ant-descriptions-item-content">%s</td></tr></table>`, s.detail.name, s.detail.validity)
		case "body":
			fmt.Fprintf(&b, "<div><h3>证书信息</h3><p>有效期限</p><p>%s</p></div>", s.detail.validity)
		default:
			fmt.Fprintf(&b, `<div class="ant-card-body"><span class="data_span">登记管理机关: 民政厅</span>`+
				`<span class="data_span text">%s</span></div>`, s.detail.validity)
		}
	}

	b.WriteString("</body></html>")
	return b.String()
}

func (s *fakeSite) doc() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.render()))
	if err != nil {
		panic(err)
	}
	return doc
}

func (s *fakeSite) Count(_ context.Context, selector string) (int, error) {
	return s.doc().Find(selector).Length(), nil
}

func (s *fakeSite) HasText(_ context.Context, text string) (bool, error) {
	return strings.Contains(s.doc().Find("body").Text(), text), nil
}

func (s *fakeSite) Navigate(_ context.Context, url string) error {
	s.calls = append(s.calls, "navigate:"+url)
	s.view = "list"
	s.page = 0
	return nil
}

func (s *fakeSite) Back(_ context.Context) error {
	s.calls = append(s.calls, "back")
	if s.view != "detail" {
		return errors.New("fake: nothing to go back to")
	}
	if s.detailsOpened == s.failBackOnDetail {
		return errors.New("fake: navigation failed")
	}
	s.view = "list"
	return nil
}

func (s *fakeSite) HTML(_ context.Context) (string, error) {
	if s.view == "opening" {
		s.staleSnapshots++
	}
	return s.render(), nil
}

func (s *fakeSite) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if n, _ := s.Count(ctx, selector); n > 0 { //nolint:errcheck // fake never fails
		return nil
	}
	return fmt.Errorf("fake: timeout waiting for %s", selector)
}

func (s *fakeSite) WaitGone(ctx context.Context, selector string, _ time.Duration) error {
	if s.view == "opening" && selector == s.site.ListContainer {
		s.view = "detail"
	}
	if n, _ := s.Count(ctx, selector); n > 0 { //nolint:errcheck // fake never fails
		return fmt.Errorf("fake: %s still present", selector)
	}
	return nil
}

// itemNamed finds an item by title on the current page or in the sidebar.
func (s *fakeSite) itemNamed(name string) fakeItem {
	for _, it := range slices.Concat(s.pages[s.page], s.sidebar) {
		if it.name == name {
			return it
		}
	}
	return fakeItem{name: name}
}

func (s *fakeSite) ClickNth(_ context.Context, selector string, index int, child string) error {
	s.calls = append(s.calls, fmt.Sprintf("click:%s#%d", selector, index))

	target := s.doc().Find(selector).Eq(index)
	if target.Length() == 0 {
		return fmt.Errorf("%w: %s[%d]", errFakeNoElement, selector, index)
	}
	if child != "" && target.Find(child).Length() == 0 {
		return fmt.Errorf("%w: %s in %s[%d]", errFakeNoElement, child, selector, index)
	}

	switch {
	case target.Is(s.site.ListItem):
		if s.failTitleClick[fmt.Sprintf("%d/%d", s.page, index)] {
			return errors.New("fake: click intercepted")
		}
		s.detailsOpened++
		s.detail = s.itemNamed(cleanTitle(target.Find(s.site.ItemTitle).First().Text()))
		s.view = "detail"
		if s.detailLag {
			s.view = "opening"
		}
		if s.detailsOpened == s.challengeOnDetail {
			s.challenge = true
		}
	case selector == s.site.NextPage:
		s.nextClicks++
		if s.page < len(s.pages)-1 {
			s.page++
		}
		if s.page == s.challengeOnPage {
			s.challenge = true
		}
	}
	return nil
}

func (s *fakeSite) ClickText(_ context.Context, text string, index int) error {
	s.calls = append(s.calls, fmt.Sprintf("text:%s#%d", text, index))
	if text == "正常" || text == "社会团体" || slices.Contains(s.regions, text) {
		return nil
	}
	return fmt.Errorf("%w: text %q", errFakeNoElement, text)
}

func (s *fakeSite) Fill(_ context.Context, selector, value string) error {
	if s.doc().Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", errFakeNoElement, selector)
	}
	s.calls = append(s.calls, "fill:"+value)
	s.keyword = value
	return nil
}

func (s *fakeSite) ClickAt(_ context.Context, x, y float64) error {
	s.calls = append(s.calls, fmt.Sprintf("at:%.0f,%.0f", x, y))
	return nil
}

// clearingOperator solves the fake site's challenge on every signal.
type clearingOperator struct {
	site    *fakeSite
	signals int
}

func (o *clearingOperator) Await(_ context.Context, _ challenge.Notice) error {
	o.signals++
	o.site.challenge = false
	return nil
}
