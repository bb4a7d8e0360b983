package crawler

import "time"

// DefaultListURL is the public listing of the social organization registry.
const DefaultListURL = "https://xxgs.chinanpo.mca.gov.cn/gsxt/newList"

// LabelClick selects the Index-th (0-based) element showing Text.
type LabelClick struct {
	Text  string `yaml:"text"`
	Index int    `yaml:"index"`
}

// Point is a viewport coordinate.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Site is the contract with the registry's markup: every selector and label
// the crawler depends on. Markup changes on the site are absorbed here.
type Site struct {
	ListURL string `yaml:"list_url"`

	// Filter form.
	StatusFilters  []LabelClick `yaml:"status_filters"`
	KeywordInput   string       `yaml:"keyword_input"`
	BlankArea      Point        `yaml:"blank_area"`
	RegionSelector string       `yaml:"region_selector"`
	SearchButton   string       `yaml:"search_button"`

	// Listing.
	ListContainer     string `yaml:"list_container"`
	ListItem          string `yaml:"list_item"`
	ItemTitle         string `yaml:"item_title"`
	ItemField         string `yaml:"item_field"`
	ItemFieldLimit    int    `yaml:"item_field_limit"`
	DeclaredDateLabel string `yaml:"declared_date_label"`

	// Detail view, in priority order.
	DetailSelectors    []string `yaml:"detail_selectors"`
	DetailElementLimit int      `yaml:"detail_element_limit"`
	FallbackLines      int      `yaml:"fallback_lines"`

	// Pagination.
	NextPage      string `yaml:"next_page"`
	DisabledClass string `yaml:"disabled_class"`
}

// DefaultSite returns the contract for the live registry.
func DefaultSite() Site {
	return Site{
		ListURL: DefaultListURL,
		StatusFilters: []LabelClick{
			{Text: "正常", Index: 0},
			{Text: "正常", Index: 1},
			{Text: "社会团体", Index: 0},
		},
		KeywordInput:      "input[placeholder='请输入社会组织名称或统一社会信用代码']",
		BlankArea:         Point{X: 200, Y: 150},
		RegionSelector:    ".ant-select-selection",
		SearchButton:      ".search_button",
		ListContainer:     ".list_ul",
		ListItem:          ".list_li",
		ItemTitle:         ".title_text",
		ItemField:         ".text_span",
		ItemFieldLimit:    5,
		DeclaredDateLabel: "成立时间:",
		DetailSelectors: []string{
			".data_span.text",
			".data_span",
			".text_span",
			".ant-descriptions-item-content",
			".ant-card-body",
		},
		DetailElementLimit: 10,
		FallbackLines:      20,
		NextPage:           "a.ant-pagination-item-link i.anticon-right",
		DisabledClass:      "ant-pagination-disabled",
	}
}

// Timing bounds every wait the crawler performs. None of them is fatal
// when it expires.
type Timing struct {
	// ListWait bounds the wait for the list container when reading a page.
	ListWait time.Duration `yaml:"list_wait"`

	// DetailLoad bounds the wait for a detail view to render.
	DetailLoad time.Duration `yaml:"detail_load"`

	// DetailSelectorWait bounds the wait for each detail selector.
	DetailSelectorWait time.Duration `yaml:"detail_selector_wait"`

	// RestoreWait bounds the wait for the list after leaving a detail view.
	RestoreWait time.Duration `yaml:"restore_wait"`

	// PaginationWait bounds the wait for the list after a page change.
	PaginationWait time.Duration `yaml:"pagination_wait"`
}

// DefaultTiming returns the waits used against the live registry.
func DefaultTiming() Timing {
	return Timing{
		ListWait:           10 * time.Second,
		DetailLoad:         10 * time.Second,
		DetailSelectorWait: 3 * time.Second,
		RestoreWait:        5 * time.Second,
		PaginationWait:     15 * time.Second,
	}
}
