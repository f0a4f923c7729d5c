// Package types contains the read shapes served to dashboards and bots.
package types

import (
	"time"

	"github.com/okian/podium/internal/domain/model"
)

// Ticket acknowledges an asynchronous refresh request.
type Ticket struct {
	RequestID    string `json:"request_id"`
	TournamentID string `json:"tournament_id"`
	Round        string `json:"round,omitempty"`
	Duplicate    bool   `json:"duplicate"`
}

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started       bool   `json:"started"`
	Tournaments   int    `json:"tournaments"`
	Configured    int    `json:"configured"`
	QueueLength   int    `json:"queue_length"`
	QueueCapacity int    `json:"queue_capacity"`
	Pending       int64  `json:"pending"`
	Workers       int    `json:"workers"`
	Processed     int64  `json:"processed"`
	Failed        int64  `json:"failed"`
	Contention    string `json:"contention"`
	Breaker       string `json:"breaker,omitempty"`
}

// Cell is one entrant's result for one round.
type Cell struct {
	Points    int    `json:"points"`
	Source    string `json:"source"`
	Placement int    `json:"placement,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
	Pending   bool   `json:"pending,omitempty"`
}

// Row is one ranked line of a scoreboard.
type Row struct {
	Rank        int             `json:"rank"`
	Identifier  string          `json:"identifier"`
	DisplayName string          `json:"display_name"`
	Team        string          `json:"team,omitempty"`
	Total       int             `json:"total"`
	Rounds      map[string]Cell `json:"rounds"`
}

// Scoreboard is the rendered form of a snapshot.
type Scoreboard struct {
	TournamentID string    `json:"tournament_id"`
	Region       string    `json:"region"`
	Version      uint64    `json:"version"`
	Round        string    `json:"round"`
	Rounds       []string  `json:"rounds"`
	GeneratedAt  time.Time `json:"generated_at"`
	AgeSeconds   float64   `json:"age_seconds"`
	Pending      int       `json:"pending"`
	Message      string    `json:"message,omitempty"`
	Standings    []Row     `json:"standings"`
}

// NewScoreboard renders snap as seen at now. Unknown scores render as
// pending cells worth zero points.
func NewScoreboard(snap *model.Snapshot, now time.Time) Scoreboard {
	b := Scoreboard{
		TournamentID: snap.TournamentID,
		Region:       snap.Region,
		Version:      snap.Version,
		Round:        snap.RoundID,
		Rounds:       append([]string(nil), snap.Rounds...),
		GeneratedAt:  snap.GeneratedAt,
		AgeSeconds:   snap.Age(now).Seconds(),
		Standings:    make([]Row, 0, len(snap.Entrants)),
	}
	for _, st := range snap.Entrants {
		row := Row{
			Rank:        st.Rank,
			Identifier:  st.Entrant.Identifier,
			DisplayName: st.Entrant.DisplayName,
			Team:        st.Entrant.TeamID,
			Total:       st.Total,
			Rounds:      make(map[string]Cell, len(st.Scores)),
		}
		for _, sc := range st.Scores {
			c := Cell{
				Points:    sc.Points,
				Source:    string(sc.Source),
				Placement: sc.Placement,
				MatchID:   sc.MatchID,
				Pending:   !sc.Known(),
			}
			if c.Pending && sc.RoundID == snap.RoundID {
				b.Pending++
			}
			row.Rounds[sc.RoundID] = c
		}
		b.Standings = append(b.Standings, row)
	}
	return b
}
