package roster

import (
	"errors"

	model "github.com/okian/podium/internal/domain/model"
)

// Roster fetch failure kinds. Both are fatal to a refresh.
var (
	ErrRosterUnreachable = model.ErrRosterUnreachable
	ErrTournamentUnknown = model.ErrTournamentUnknown
)

// ErrMalformedRoster is wrapped with ErrRosterUnreachable when the export
// cannot be decoded into rows.
var ErrMalformedRoster = errors.New("malformed roster export")
