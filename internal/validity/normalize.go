package validity

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/width"
)

// rangeMarkers separate the start and the end of a validity range.
// Full-width variants are folded before matching.
var rangeMarkers = []string{"至", "~"}

// Localized date tokens.
const (
	yearToken  = "年"
	monthToken = "月"
	dayToken   = "日"
)

// minDateLength is the shortest normalized date accepted ("2026-1-1").
const minDateLength = 8

// annotationStops end the date part of a range segment. Anything from the
// first of these on is a note, a time of day or the next line.
const annotationStops = " \t\r\n([【"

// ParseEnd extracts the end date of a validity range such as
// "有效期2020-01-01至2026-03-15" or "2021年5月1日至2026年4月30日".
//
// The text is split on the range marker and the second segment is
// normalized: annotations are dropped, 年/月/日 become hyphens (a missing
// month or day becomes 01), and every character that is not a digit or a
// hyphen is removed. The result must be at least 8 characters long and hold
// two hyphens. A full year-month-day is tried first, then year-month with
// the day defaulting to the 1st.
//
// ok is false whenever no date can be derived.
func ParseEnd(raw string) (end time.Time, ok bool) {
	text := width.Fold.String(raw)

	segment, found := endSegment(text)
	if !found {
		return time.Time{}, false
	}

	segment = trimAnnotations(segment)
	segment = localizedToNumeric(segment)
	segment = digitsAndHyphens(segment)

	if len(segment) < minDateLength || strings.Count(segment, "-") < 2 {
		return time.Time{}, false
	}
	return parseNumeric(segment)
}

// Covers reports whether a validity window ending on end is still in force
// on cutoff. The comparison is by calendar day and inclusive: an end date
// equal to the cutoff is accepted.
func Covers(end, cutoff time.Time) bool {
	return !dateOf(end).Before(dateOf(cutoff))
}

// LooksLikeRange reports whether text is a candidate validity range: it holds
// a range marker together with a year token or a hyphen.
func LooksLikeRange(text string) bool {
	text = width.Fold.String(text)
	if markerIndex(text) < 0 {
		return false
	}
	return strings.Contains(text, yearToken) || strings.Contains(text, "-")
}

// ParseDate parses a strict YYYY-MM-DD date, as used for configured cutoffs.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// endSegment returns the text between the first and the second range marker,
// or everything after the first marker when there is no second one.
func endSegment(text string) (string, bool) {
	i := markerIndex(text)
	if i < 0 {
		return "", false
	}
	rest := text[i:]
	for _, m := range rangeMarkers {
		if strings.HasPrefix(rest, m) {
			rest = rest[len(m):]
			break
		}
	}
	if j := markerIndex(rest); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}

// markerIndex returns the byte offset of the earliest range marker, or -1.
func markerIndex(text string) int {
	first := -1
	for _, m := range rangeMarkers {
		if i := strings.Index(text, m); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

func trimAnnotations(s string) string {
	// Words in front of the date, such as a weekday, are not part of it.
	s = strings.TrimLeftFunc(s, notDigit)
	if i := strings.IndexAny(s, annotationStops); i >= 0 {
		s = s[:i]
	}
	// "2026年4月30日24时" keeps only the part up to 日.
	if i := strings.Index(s, dayToken); i >= 0 {
		s = s[:i+len(dayToken)]
	}
	// ISO time of day.
	if i := timeSeparator(s); i >= 0 {
		s = s[:i]
	}
	return s
}

// timeSeparator returns the offset of a 'T' between two digits, or -1.
func timeSeparator(s string) int {
	for i := 1; i < len(s)-1; i++ {
		if s[i] == 'T' && isDigit(s[i-1]) && isDigit(s[i+1]) {
			return i
		}
	}
	return -1
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// localizedToNumeric rewrites "2026年4月30日" as "2026-4-30". A year without
// a month becomes January 1st and a month without a day becomes the 1st.
func localizedToNumeric(s string) string {
	year, rest, found := strings.Cut(s, yearToken)
	if !found {
		return s
	}
	month, day := "01", "01"
	if m, afterMonth, ok := strings.Cut(rest, monthToken); ok {
		month = m
		if d, _, ok := strings.Cut(afterMonth, dayToken); ok && strings.TrimFunc(d, notDigit) != "" {
			day = d
		}
	}
	return year + "-" + month + "-" + day
}

func digitsAndHyphens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseNumeric(s string) (time.Time, bool) {
	fields := strings.SplitN(s, "-", 4)
	year, month, day := fields[0], fields[1], fields[2]

	if t, err := time.Parse("2006-1-2", year+"-"+month+"-"+day); err == nil {
		return t, true
	}
	if day == "" {
		if t, err := time.Parse("2006-1", year+"-"+month); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func notDigit(r rune) bool {
	return !unicode.IsDigit(r)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
