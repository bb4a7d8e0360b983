package model

import (
	"errors"
	"strings"
)

// ErrEmptyKeyword is returned when a FilterSpec has no search keyword.
var ErrEmptyKeyword = errors.New("search keyword cannot be empty")

// FilterSpec selects the records a crawl job walks through.
// It is supplied once per job and never modified afterwards.
type FilterSpec struct {
	// Region is the region picked in the registry's region selector.
	Region Region `json:"region"`

	// Keyword is typed into the registry's name search box.
	Keyword string `json:"keyword"`
}

// NewFilterSpec builds a validated FilterSpec.
func NewFilterSpec(region, keyword string) (FilterSpec, error) {
	r, err := ParseRegion(region)
	if err != nil {
		return FilterSpec{}, err
	}
	f := FilterSpec{Region: r, Keyword: strings.TrimSpace(keyword)}
	if err := f.Validate(); err != nil {
		return FilterSpec{}, err
	}
	return f, nil
}

// Validate checks that the region belongs to the enumeration and that the
// keyword is not blank.
func (f FilterSpec) Validate() error {
	if _, err := ParseRegion(string(f.Region)); err != nil {
		return err
	}
	if strings.TrimSpace(f.Keyword) == "" {
		return ErrEmptyKeyword
	}
	return nil
}
