package models

import "errors"

// Error classes raised by the research pipeline. Callers match them with errors.Is.
var (
	// ErrConfiguration marks a caller bug or bad input: missing fields, unknown pair,
	// invalid constructor parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataCoverage is returned when the coarse timeframe does not span the fine one.
	ErrDataCoverage = errors.New("data coverage error")

	// ErrInvariant signals a logic defect, e.g. a stop-loss on the wrong side of entry.
	ErrInvariant = errors.New("invariant violation")
)
