package roster

import (
	"fmt"
	"strconv"
	"strings"

	model "github.com/okian/podium/internal/domain/model"
)

// FieldMapping names the header cells that hold each entrant field. Header
// matching ignores case and surrounding whitespace. Any column whose header
// starts with RoundPrefix holds sheet points for the round named by the rest
// of the header ("Round 3" with prefix "round" is round "3").
type FieldMapping struct {
	Identifier  string `koanf:"identifier"`
	DisplayName string `koanf:"display_name"`
	GameID      string `koanf:"game_id" validate:"required"`
	Team        string `koanf:"team"`
	Registered  string `koanf:"registered"`
	CheckedIn   string `koanf:"checked_in"`
	RoundPrefix string `koanf:"round_prefix"`
}

// DefaultMapping matches the registration sheet template.
func DefaultMapping() FieldMapping {
	return FieldMapping{
		Identifier:  "id",
		DisplayName: "name",
		GameID:      "riot id",
		Team:        "team",
		Registered:  "registered",
		CheckedIn:   "checked in",
		RoundPrefix: "round",
	}
}

type columns struct {
	identifier, displayName, gameID, team, registered, checkedIn int
	rounds                                                       map[int]string
}

func (m FieldMapping) locate(header []string) (columns, error) {
	cols := columns{
		identifier:  -1,
		displayName: -1,
		gameID:      -1,
		team:        -1,
		registered:  -1,
		checkedIn:   -1,
		rounds:      make(map[int]string),
	}
	prefix := fold(m.RoundPrefix)
	for i, cell := range header {
		h := fold(cell)
		switch {
		case h == "":
		case h == fold(m.Identifier):
			cols.identifier = i
		case h == fold(m.DisplayName):
			cols.displayName = i
		case h == fold(m.GameID):
			cols.gameID = i
		case h == fold(m.Team):
			cols.team = i
		case h == fold(m.Registered):
			cols.registered = i
		case h == fold(m.CheckedIn):
			cols.checkedIn = i
		case prefix != "" && strings.HasPrefix(h, prefix):
			if round := strings.TrimSpace(strings.TrimPrefix(h, prefix)); round != "" {
				cols.rounds[i] = round
			}
		}
	}
	if cols.gameID < 0 && cols.identifier < 0 {
		return cols, fmt.Errorf("%w: no %q or %q column", ErrMalformedRoster, m.GameID, m.Identifier)
	}
	return cols, nil
}

// Entrants converts exported rows into entrants. The first row is the
// header. Blank rows are skipped and a repeated identifier keeps the first
// occurrence so Seq stays the registration order.
func (m FieldMapping) Entrants(rows [][]string) ([]model.Entrant, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedRoster)
	}
	cols, err := m.locate(rows[0])
	if err != nil {
		return nil, err
	}

	entrants := make([]model.Entrant, 0, len(rows)-1)
	seen := make(map[string]struct{}, len(rows)-1)
	for _, row := range rows[1:] {
		gameID := strings.TrimSpace(cell(row, cols.gameID))
		name := strings.TrimSpace(cell(row, cols.displayName))
		id := model.NormalizeID(cell(row, cols.identifier))
		if id == "" {
			id = model.NormalizeID(gameID)
		}
		if id == "" {
			id = model.NormalizeID(name)
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		e := model.Entrant{
			Identifier:  id,
			DisplayName: name,
			GameID:      gameID,
			TeamID:      strings.TrimSpace(cell(row, cols.team)),
			Registered:  cols.registered < 0 || truthy(cell(row, cols.registered)),
			CheckedIn:   truthy(cell(row, cols.checkedIn)),
			Seq:         len(entrants),
		}
		if e.DisplayName == "" {
			e.DisplayName = gameID
		}
		for col, round := range cols.rounds {
			raw := strings.TrimSpace(cell(row, col))
			if raw == "" {
				continue
			}
			pts, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			if e.SheetPoints == nil {
				e.SheetPoints = make(map[string]int, len(cols.rounds))
			}
			e.SheetPoints[round] = pts
		}
		entrants = append(entrants, e)
	}
	return entrants, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func truthy(s string) bool {
	switch fold(s) {
	case "1", "true", "yes", "y", "x", "✓", "✔":
		return true
	default:
		return false
	}
}
