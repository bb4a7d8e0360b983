// Package crawler walks the social organization registry listing in a
// browser session and keeps the organizations whose registration is still
// valid on a cutoff date.
//
// # Flow
//
// A job moves through explicit states:
//
//	configuring -> page loop -> paginating -> page loop -> ... -> done
//
// Configuring opens the listing and submits the filter form (status, keyword,
// region). The page loop reads the list, then for every position opens the
// detail view, extracts the validity range, compares its end date with the
// cutoff and navigates back. Paginating clicks the next-page control while it
// is enabled.
//
// # Positions, not handles
//
// Any navigation invalidates the elements of the previous document. Items
// are therefore addressed by their position on the page and re-resolved from
// a fresh query before each use (ResolveItemAt, Session.ClickNth).
//
// # Degradation
//
// Only configuration failures abort a job. An item whose detail view cannot
// be read counts as not valid; a page whose list view cannot be restored is
// abandoned and the crawl tries to paginate from wherever it is. Challenges
// are handed to a challenge.Gate at every checkpoint.
//
// # Usage
//
//	gate := challenge.NewGate(challenge.NewPromptOperator(os.Stdin, os.Stderr))
//	c := crawler.New(session, gate, crawler.WithCutoff(cutoff))
//	report, err := c.Run(ctx, filter)
package crawler
