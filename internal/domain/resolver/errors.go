package resolver

import "errors"

// Batch-level failures. Per-identifier failures are reported in results.
var (
	ErrEmptyBatch    = errors.New("no identifiers to resolve")
	ErrInvalidRegion = errors.New("invalid region")
)
