package standings

import (
	"errors"
	"fmt"
	"time"

	model "github.com/okian/podium/internal/domain/model"
)

// ErrRefreshInProgress is returned under the reject contention policy when a
// refresh for the same tournament is already running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// errFlightCancelled marks a refresh abandoned because its caller went away.
var errFlightCancelled = errors.New("refresh cancelled")

// RosterFetchFailure aborts a refresh. The cached snapshot, if any, is left
// untouched and carried here so callers can keep showing it.
type RosterFetchFailure struct {
	TournamentID string
	Last         *model.Snapshot
	Err          error
}

func (e *RosterFetchFailure) Error() string {
	return e.Message() + ": " + e.Err.Error()
}

func (e *RosterFetchFailure) Unwrap() error { return e.Err }

// Message is the user-facing description of the failure.
func (e *RosterFetchFailure) Message() string {
	if e.Last == nil {
		return fmt.Sprintf("could not refresh %s — no standings available yet", e.TournamentID)
	}
	return fmt.Sprintf("could not refresh — showing last known standings (as of %s)",
		e.Last.GeneratedAt.UTC().Format(time.RFC3339))
}
