package standings

import (
	"slices"

	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/scoring"
)

// LatestRound is the round selector that targets the most recent round.
const LatestRound = "latest"

// merger builds one snapshot's standings from a roster, the previously
// published snapshot and this refresh's live placements.
type merger struct {
	round   string
	scoring scoring.Converter
	prior   map[string]model.Standing
	live    map[string]model.PlacementResult
}

func newMerger(round string, conv scoring.Converter, prior *model.Snapshot, live map[string]model.PlacementResult) *merger {
	m := &merger{round: round, scoring: conv, live: live}
	if prior != nil {
		m.prior = make(map[string]model.Standing, len(prior.Entrants))
		for _, st := range prior.Entrants {
			m.prior[st.Entrant.Identifier] = st
		}
	}
	return m
}

// rounds returns every round seen so far in round order.
func rounds(target string, roster model.Roster, prior *model.Snapshot) []string {
	set := map[string]struct{}{target: {}}
	if prior != nil {
		for _, r := range prior.Rounds {
			set[r] = struct{}{}
		}
	}
	for _, e := range roster.Entrants {
		for r := range e.SheetPoints {
			set[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	slices.SortFunc(out, model.CompareRounds)
	return out
}

// resolveRound picks the round a refresh targets. An explicit id wins.
// "latest" is the later of the previous snapshot's round and the highest
// round recorded on the sheet, or "1" for a fresh tournament.
func resolveRound(requested string, roster model.Roster, prior *model.Snapshot) string {
	if requested != "" && requested != LatestRound {
		return requested
	}
	latest := ""
	if prior != nil {
		latest = prior.RoundID
	}
	for _, e := range roster.Entrants {
		for r := range e.SheetPoints {
			if latest == "" || model.CompareRounds(r, latest) > 0 {
				latest = r
			}
		}
	}
	if latest == "" {
		return "1"
	}
	return latest
}

// standings scores every roster entrant over allRounds and orders them by
// total descending, then registration order.
func (m *merger) standings(roster model.Roster, allRounds []string) []model.Standing {
	out := make([]model.Standing, 0, len(roster.Entrants))
	for _, e := range roster.Entrants {
		prev := m.prior[e.Identifier]
		st := model.Standing{
			Entrant: e,
			Scores:  make([]model.RoundScore, 0, len(allRounds)),
		}
		for _, r := range allRounds {
			old, hadOld := prev.Score(r)
			sc := m.score(e, prev, r, old, hadOld)
			if sc.Known() {
				st.Total += sc.Points
			}
			st.Scores = append(st.Scores, sc)
		}
		out = append(out, st)
	}
	slices.SortStableFunc(out, func(a, b model.Standing) int {
		if a.Total != b.Total {
			return b.Total - a.Total
		}
		return a.Entrant.Seq - b.Entrant.Seq
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// score applies the precedence: a live placement for the target round, then a
// previous live score, then the sheet, then any previous known score, then
// Unknown. A known score never regresses to Unknown.
func (m *merger) score(e model.Entrant, prev model.Standing, round string, old model.RoundScore, hadOld bool) model.RoundScore {
	if round == m.round {
		if sc, ok := m.liveScore(e, prev, round); ok {
			return sc
		}
	}
	if hadOld && old.Source == model.SourceLive {
		return old
	}
	if pts, ok := e.SheetScore(round); ok {
		return model.RoundScore{
			EntrantID: e.Identifier,
			RoundID:   round,
			Points:    pts,
			Source:    model.SourceSheet,
		}
	}
	if hadOld && old.Known() {
		return old
	}
	return model.RoundScore{
		EntrantID: e.Identifier,
		RoundID:   round,
		Source:    model.SourceUnknown,
	}
}

// liveScore converts the entrant's latest match into a score for round. A
// match that already scored another round for this entrant is the previous
// round's result, not this one's, and is ignored.
func (m *merger) liveScore(e model.Entrant, prev model.Standing, round string) (model.RoundScore, bool) {
	res, ok := m.live[model.NormalizeID(e.GameID)]
	if !ok || !res.IsResolved() {
		return model.RoundScore{}, false
	}
	if scoredElsewhere(prev, round, res.MatchID) {
		return model.RoundScore{}, false
	}
	pts, err := m.scoring.Points(res.Placement)
	if err != nil {
		return model.RoundScore{}, false
	}
	return model.RoundScore{
		EntrantID:  e.Identifier,
		RoundID:    round,
		Points:     pts,
		Source:     model.SourceLive,
		Placement:  res.Placement,
		MatchID:    res.MatchID,
		ObservedAt: res.ObservedAt,
	}, true
}

func scoredElsewhere(prev model.Standing, round, matchID string) bool {
	if matchID == "" {
		return false
	}
	for _, sc := range prev.Scores {
		if sc.RoundID != round && sc.Source == model.SourceLive && sc.MatchID == matchID {
			return true
		}
	}
	return false
}
