package model

import "time"

// PlacementStatus classifies the outcome of one placement lookup.
type PlacementStatus string

// Placement lookup outcomes.
const (
	StatusResolved       PlacementStatus = "resolved"
	StatusNotFound       PlacementStatus = "not_found"
	StatusRateLimited    PlacementStatus = "rate_limited"
	StatusTransientError PlacementStatus = "transient_error"
	StatusPermanentError PlacementStatus = "permanent_error"
)

// Retryable reports whether a lookup with this status may be attempted again.
func (s PlacementStatus) Retryable() bool {
	return s == StatusRateLimited || s == StatusTransientError
}

// PlacementResult is the immutable outcome of resolving one in-game identifier.
// Placement and MatchID are only meaningful when Status is StatusResolved.
type PlacementResult struct {
	Identifier string          `json:"identifier"`
	Status     PlacementStatus `json:"status"`
	Placement  int             `json:"placement,omitempty"`
	MatchID    string          `json:"match_id,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
	Attempts   int             `json:"attempts"`
	Detail     string          `json:"detail,omitempty"`

	// RetryAfter carries an upstream hint to the resolver; it is not published.
	RetryAfter time.Duration `json:"-"`
}

// IsResolved reports whether the lookup produced a usable placement.
func (r PlacementResult) IsResolved() bool {
	return r.Status == StatusResolved && r.Placement > 0
}
