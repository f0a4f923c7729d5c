package model

import "errors"

// Roster fetch failure kinds shared by providers and the aggregator.
var (
	ErrRosterUnreachable = errors.New("roster service unreachable")
	ErrTournamentUnknown = errors.New("tournament unknown")
)

// ErrInvalidConfig marks configuration that prevents a refresh from running.
var ErrInvalidConfig = errors.New("invalid configuration")
