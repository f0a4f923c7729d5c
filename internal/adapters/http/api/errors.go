package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// Error codes carried in error bodies.
const (
	codeBadRequest        = "bad_request"
	codeNotFound          = "not_found"
	codeTournamentUnknown = "tournament_unknown"
	codeInProgress        = "refresh_in_progress"
	codeRosterUnavailable = "roster_unavailable"
	codeBackpressure      = "backpressure"
	codeShuttingDown      = "shutting_down"
	codeTimeout           = "timeout"
	codeInternal          = "internal_error"
)
