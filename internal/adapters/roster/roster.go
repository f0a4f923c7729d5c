// Package roster fetches tournament rosters from the registration sheet.
package roster

import (
	"context"
	"fmt"
	"sync"

	model "github.com/okian/podium/internal/domain/model"
)

// Provider returns the current roster of a tournament. Implementations are
// read-only and may lag the live sheet.
type Provider interface {
	Fetch(ctx context.Context, tournamentID string) (model.Roster, error)
}

// Static serves fixed rosters. It backs replays and tests.
type Static struct {
	mu      sync.RWMutex
	rosters map[string]model.Roster
}

// NewStatic returns a Static provider seeded with rosters keyed by tournament.
func NewStatic(rosters map[string]model.Roster) *Static {
	s := &Static{rosters: make(map[string]model.Roster, len(rosters))}
	for id, r := range rosters {
		s.Set(id, r)
	}
	return s
}

// Set replaces the roster served for tournamentID.
func (s *Static) Set(tournamentID string, r model.Roster) {
	r.TournamentID = tournamentID
	r.Entrants = append([]model.Entrant(nil), r.Entrants...)
	s.mu.Lock()
	s.rosters[tournamentID] = r
	s.mu.Unlock()
}

// Fetch returns a copy of the stored roster.
func (s *Static) Fetch(ctx context.Context, tournamentID string) (model.Roster, error) {
	if err := ctx.Err(); err != nil {
		return model.Roster{}, fmt.Errorf("%w: %w", ErrRosterUnreachable, err)
	}
	s.mu.RLock()
	r, ok := s.rosters[tournamentID]
	s.mu.RUnlock()
	if !ok {
		return model.Roster{}, fmt.Errorf("%w: %s", ErrTournamentUnknown, tournamentID)
	}
	r.Entrants = append([]model.Entrant(nil), r.Entrants...)
	return r, nil
}
