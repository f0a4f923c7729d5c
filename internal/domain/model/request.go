package model

import "time"

// RefreshRequest asks for an asynchronous refresh of one tournament.
type RefreshRequest struct {
	RequestID    string    `json:"request_id"`
	TournamentID string    `json:"tournament_id"`
	Round        string    `json:"round,omitempty"`
	FetchLive    bool      `json:"fetch_live"`
	Source       string    `json:"source"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Key identifies requests that would do the same work. An empty round means
// the latest round.
func (r RefreshRequest) Key() string {
	round := r.Round
	if round == "" {
		round = "latest"
	}
	return r.TournamentID + "/" + round
}
