// Package sandbox fakes the registration sheet and the match placement API
// so the engine can be run and tested without the real services.
package sandbox

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/scoring"
)

// Player is one row of the fake registration sheet.
type Player struct {
	Identifier  string
	DisplayName string
	GameID      string
	Team        string
	Registered  bool
	CheckedIn   bool
	// Points holds sheet-entered points by round.
	Points map[string]int
}

// Match is what the placement API reports as a player's latest game.
type Match struct {
	MatchID      string    `json:"match_id"`
	Placement    int       `json:"placement"`
	Participants int       `json:"participants"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Tournament is a generated fixture shared by the fake sheet and the fake
// placement API.
type Tournament struct {
	ID     string
	Region string

	mu      sync.RWMutex
	players []Player
	rounds  []string
	matches map[string]Match
	faker   *gofakeit.Faker
	now     func() time.Time
}

// Generate builds a tournament with n players from seed. The same seed
// always yields the same roster.
func Generate(seed uint64, id, region string, n int) *Tournament {
	faker := gofakeit.New(seed)
	t := &Tournament{
		ID:      id,
		Region:  region,
		players: make([]Player, 0, n),
		matches: make(map[string]Match),
		faker:   faker,
		now:     time.Now,
	}
	teams := []string{"red", "blue", "green", "gold"}
	tag := strings.ToUpper(strings.TrimRight(region, "0123456789"))
	for i := range n {
		name := faker.Username()
		t.players = append(t.players, Player{
			Identifier:  fmt.Sprintf("p%03d", i+1),
			DisplayName: name,
			GameID:      name + "#" + tag,
			Team:        faker.RandomString(teams),
			Registered:  faker.Number(1, 10) > 1,
			CheckedIn:   faker.Number(1, 10) > 2,
			Points:      map[string]int{},
		})
	}
	return t
}

// Players returns a copy of the roster.
func (t *Tournament) Players() []Player {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Player, len(t.players))
	for i, p := range t.players {
		p.Points = maps.Clone(p.Points)
		out[i] = p
	}
	return out
}

// Rounds returns the rounds played so far in order.
func (t *Tournament) Rounds() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rounds)
}

// Latest returns the latest match recorded for gameID. Lookups ignore
// case.
func (t *Tournament) Latest(gameID string) (Match, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.matches[model.NormalizeID(gameID)]
	return m, ok
}

// SetMatch overrides the latest match of gameID.
func (t *Tournament) SetMatch(gameID string, m Match) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.matches[model.NormalizeID(gameID)] = m
}

// PlayRound seats every registered player into shuffled lobbies of the
// scoring table's size and records each lobby's placements as their
// latest match. It returns the new round id.
func (t *Tournament) PlayRound(table scoring.Table) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	round := strconv.Itoa(len(t.rounds) + 1)
	t.rounds = append(t.rounds, round)

	seats := make([]int, 0, len(t.players))
	for i, p := range t.players {
		if p.Registered {
			seats = append(seats, i)
		}
	}
	t.faker.ShuffleAnySlice(seats)

	lobby := table.Lobby()
	completed := t.now().UTC().Truncate(time.Second)
	for start := 0; start < len(seats); start += lobby {
		end := min(start+lobby, len(seats))
		matchID := fmt.Sprintf("%s_%s", strings.ToUpper(t.Region), t.faker.DigitN(10))
		for place, idx := range seats[start:end] {
			t.matches[model.NormalizeID(t.players[idx].GameID)] = Match{
				MatchID:      matchID,
				Placement:    place + 1,
				Participants: end - start,
				CompletedAt:  completed,
			}
		}
	}
	return round
}

// Settle writes each player's latest placement into the sheet as points
// for round, the way an organizer copies results over by hand.
func (t *Tournament) Settle(round string, table scoring.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.players {
		m, ok := t.matches[model.NormalizeID(t.players[i].GameID)]
		if !ok {
			continue
		}
		t.players[i].Points[round] = table.MustPoints(m.Placement)
	}
}

// Roster converts the fixture into the roster the sheet would yield.
func (t *Tournament) Roster() model.Roster {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r := model.Roster{TournamentID: t.ID, Region: t.Region}
	for i, p := range t.players {
		r.Entrants = append(r.Entrants, model.Entrant{
			Identifier:  p.Identifier,
			DisplayName: p.DisplayName,
			GameID:      p.GameID,
			TeamID:      p.Team,
			Registered:  p.Registered,
			CheckedIn:   p.CheckedIn,
			SheetPoints: maps.Clone(p.Points),
			Seq:         i,
		})
	}
	return r
}
