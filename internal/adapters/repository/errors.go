package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNilSnapshot        = errors.New("nil snapshot")
	ErrTournamentMismatch = errors.New("snapshot belongs to another tournament")
	ErrStaleVersion       = errors.New("snapshot version is not newer than the cached one")
)
