package model

// CrawlState is the progress of one crawl job: the current page number and
// the accepted records in page-then-position order.
//
// The zero value is not usable; call NewCrawlState. The record list can only
// grow, and the page number only moves forward one page at a time.
type CrawlState struct {
	pageNumber int
	records    []Record
}

// NewCrawlState returns a state positioned on page 1 with no records.
func NewCrawlState() *CrawlState {
	return &CrawlState{pageNumber: 1}
}

// PageNumber returns the 1-based number of the page being processed.
func (s *CrawlState) PageNumber() int {
	return s.pageNumber
}

// NextPage records a successful pagination.
func (s *CrawlState) NextPage() {
	s.pageNumber++
}

// Append adds an accepted record.
func (s *CrawlState) Append(r Record) {
	s.records = append(s.records, r)
}

// Len returns the number of accepted records.
func (s *CrawlState) Len() int {
	return len(s.records)
}

// Records returns a copy of the accepted records.
func (s *CrawlState) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
