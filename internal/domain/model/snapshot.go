package model

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"time"
)

// ScoreSource records where a round score came from.
type ScoreSource string

// Score sources. SourceUnknown rows carry 0 points and render as pending.
const (
	SourceSheet   ScoreSource = "sheet"
	SourceLive    ScoreSource = "live"
	SourceUnknown ScoreSource = "unknown"
)

// RoundScore is one entrant's contribution for one round.
type RoundScore struct {
	EntrantID  string      `json:"entrant_id"`
	RoundID    string      `json:"round_id"`
	Points     int         `json:"points"`
	Source     ScoreSource `json:"source"`
	Placement  int         `json:"placement,omitempty"`
	MatchID    string      `json:"match_id,omitempty"`
	ObservedAt time.Time   `json:"observed_at,omitempty"`
}

// Known reports whether the score counts toward the total.
func (s RoundScore) Known() bool {
	return s.Source != SourceUnknown
}

// Standing is one ranked row of a snapshot.
type Standing struct {
	Rank    int          `json:"rank"`
	Entrant Entrant      `json:"entrant"`
	Total   int          `json:"total"`
	Scores  []RoundScore `json:"scores"`
}

// Score returns the entrant's score for round.
func (s Standing) Score(round string) (RoundScore, bool) {
	for _, sc := range s.Scores {
		if sc.RoundID == round {
			return sc, true
		}
	}
	return RoundScore{}, false
}

// Snapshot is an immutable, versioned merge of roster and scores.
type Snapshot struct {
	TournamentID string     `json:"tournament_id"`
	Region       string     `json:"region"`
	Version      uint64     `json:"version"`
	GeneratedAt  time.Time  `json:"generated_at"`
	RoundID      string     `json:"round_id"`
	Rounds       []string   `json:"rounds"`
	Entrants     []Standing `json:"entrants"`
}

// Standing looks up an entrant by identifier.
func (s *Snapshot) Standing(identifier string) (Standing, bool) {
	for _, st := range s.Entrants {
		if st.Entrant.Identifier == identifier {
			return st, true
		}
	}
	return Standing{}, false
}

// Age is how long ago the snapshot was generated.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.GeneratedAt)
}

// Clone returns a deep copy so callers can never mutate a published snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Rounds = slices.Clone(s.Rounds)
	out.Entrants = make([]Standing, len(s.Entrants))
	for i, st := range s.Entrants {
		st.Entrant.SheetPoints = maps.Clone(st.Entrant.SheetPoints)
		st.Scores = slices.Clone(st.Scores)
		out.Entrants[i] = st
	}
	return &out
}

// CompareRounds orders round ids numerically when both parse as integers and
// lexically otherwise, so "2" sorts before "10".
func CompareRounds(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
