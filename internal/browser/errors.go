package browser

import "errors"

var (
	// ErrNoSuchElement is returned when a selector (or a position within its
	// matches) does not resolve to an element.
	ErrNoSuchElement = errors.New("no such element")

	// ErrSessionClosed is returned by any call made after Close.
	ErrSessionClosed = errors.New("browser session closed")
)
