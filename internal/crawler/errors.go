package crawler

import "errors"

var (
	// ErrConfigure is returned when the filter form could not be set up.
	// No records are produced in that case.
	ErrConfigure = errors.New("failed to configure registry filters")

	// ErrItemNotFound is returned when a list position no longer exists.
	ErrItemNotFound = errors.New("list item not found")

	// ErrNoValidityText is returned when a detail view shows no validity range.
	ErrNoValidityText = errors.New("no validity range on detail view")
)
