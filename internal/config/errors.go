package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so that callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoRegion is returned when no region was requested.
	ErrNoRegion = errors.New("no region specified: provide region names or use --all")

	// ErrEmptyKeyword is returned when the search keyword is blank.
	ErrEmptyKeyword = errors.New("search keyword cannot be empty")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidPaceScale is returned when the pacing scale is negative.
	ErrInvalidPaceScale = errors.New("invalid pace scale: must be non-negative")

	// ErrInvalidActionTimeout is returned when the browser action timeout is not positive.
	ErrInvalidActionTimeout = errors.New("invalid action timeout: must be positive")

	// ErrInvalidChallengeMode is returned for an unknown --challenge-mode.
	ErrInvalidChallengeMode = errors.New("invalid challenge mode: must be prompt or poll")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingEgress is returned when both the embedded Tor daemon and
	// an explicit proxy are requested.
	ErrConflictingEgress = errors.New("conflicting egress: --tor and --proxy cannot be used together")

	// ErrInvalidCutoff is returned when the cutoff date cannot be parsed.
	ErrInvalidCutoff = errors.New("invalid cutoff date")
)
