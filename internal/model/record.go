package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// ListItemSummary is what the listing shows for one record.
// It is rebuilt on every read of a page and is identified only by Index,
// its position in the current page. Never keep one across a navigation and
// act on it; re-resolve by Index instead.
type ListItemSummary struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	DeclaredDate string `json:"declared_date"`
}

// ValidityWindow is the validity range text read from a detail view and its
// parsed end date. HasEnd is false when the text could not be normalized.
type ValidityWindow struct {
	RawText string    `json:"raw_text"`
	End     time.Time `json:"end"`
	HasEnd  bool      `json:"has_end"`
}

// EndString formats the end date, or returns "-" when absent.
func (w ValidityWindow) EndString() string {
	if !w.HasEnd {
		return "-"
	}
	return w.End.Format(time.DateOnly)
}

// Record is an accepted registry entry. Records are only created for items
// whose validity end is on or after the cutoff and are never modified.
type Record struct {
	Name         string `json:"name"`
	Region       Region `json:"region"`
	DeclaredDate string `json:"declared_date"`
}

// NewRecord builds a Record from a list summary accepted within region.
func NewRecord(item ListItemSummary, region Region) Record {
	return Record{
		Name:         item.Name,
		Region:       region,
		DeclaredDate: item.DeclaredDate,
	}
}

// Fingerprint returns a stable identifier of the record content, used to
// de-duplicate and diff records across jobs.
func (r Record) Fingerprint() string {
	h := sha3.New256()
	h.Write([]byte(strings.Join([]string{string(r.Region), r.Name, r.DeclaredDate}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
