// Package model contains the domain types shared by the roster, placement
// and standings layers.
package model

import (
	"strings"
	"time"
)

// Entrant is one roster row. Entrants are immutable once a roster is fetched;
// every fetch yields a fresh slice.
type Entrant struct {
	Identifier  string         `json:"identifier"`
	DisplayName string         `json:"display_name"`
	GameID      string         `json:"game_id"`
	TeamID      string         `json:"team_id,omitempty"`
	Registered  bool           `json:"registered"`
	CheckedIn   bool           `json:"checked_in"`
	Seq         int            `json:"seq"`
	SheetPoints map[string]int `json:"sheet_points,omitempty"`
}

// SheetScore returns the points recorded on the sheet for round.
func (e Entrant) SheetScore(round string) (int, bool) {
	p, ok := e.SheetPoints[round]
	return p, ok
}

// Roster is a point-in-time copy of a tournament's registrations.
type Roster struct {
	TournamentID string    `json:"tournament_id"`
	Region       string    `json:"region"`
	Entrants     []Entrant `json:"entrants"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// GameIDs returns the unique, normalized in-game identifiers in registration order.
// Several entrants may share one account; it is listed once.
func (r Roster) GameIDs() []string {
	seen := make(map[string]struct{}, len(r.Entrants))
	ids := make([]string, 0, len(r.Entrants))
	for _, e := range r.Entrants {
		id := NormalizeID(e.GameID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// NormalizeID folds case and whitespace so that "Foo Bar#EUW " and
// "foo bar#euw" address the same account.
func NormalizeID(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
