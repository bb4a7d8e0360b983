// Package validity turns the free-form validity range text shown on a
// registry detail page into a comparable end date.
//
// Everything here is a pure function of its input: no browser session, no
// clock, no I/O. The extraction heuristics can change without touching the
// navigation code in the crawler package.
//
//	end, ok := validity.ParseEnd("有效期2020-01-01至2026-03-15")
//	// end == 2026-03-15, ok == true
//	accepted := ok && validity.Covers(end, cutoff)
package validity
