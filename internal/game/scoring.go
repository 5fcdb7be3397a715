package game

import "sort"

// Result 表示一個座位在已結束回合的成績
type Result struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Position int    `json:"position"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
}

type Standing struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// finish 結束回合：最後仍持牌的座位排在末位，並將分數記入整場比賽
func (g *Game) finish() []Event {
	var events []Event
	for i, s := range g.Seats {
		if !s.Finished {
			events = append(events, g.markFinished(i))
		}
	}
	g.Phase = PhaseScoring
	g.Pending = nil
	g.OpeningTurn = false

	table := g.match.rules.Scores[len(g.Seats)]
	last := make(map[string]int, len(g.Seats))
	g.Results = make([]Result, 0, len(g.FinishOrder))
	for pos, seat := range g.FinishOrder {
		s := g.Seats[seat]
		score := 0
		if pos < len(table) {
			score = table[pos]
		}
		last[s.Name] = score
		g.match.TotalScores[s.Name] += score
		g.Results = append(g.Results, Result{
			Seat:     seat,
			Name:     s.Name,
			Role:     s.Role,
			Position: pos + 1,
			Score:    score,
			Total:    g.match.TotalScores[s.Name],
		})
	}
	g.match.LastScores = last
	return append(events, broadcast(EventGameEnd, GameEndPayload{Round: g.Round, Results: g.Results}))
}

// Standings 依累計總分由高到低排列
func (m *Match) Standings() []Standing {
	out := make([]Standing, 0, len(m.TotalScores))
	for name, total := range m.TotalScores {
		out = append(out, Standing{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CompleteRound 在計分後推進回合數。設有回合上限且已達到時，回傳最終排名並重新開始比賽
func (m *Match) CompleteRound() (Event, bool) {
	if m.rules.MaxRounds > 0 && m.Round >= m.rules.MaxRounds {
		ev := broadcast(EventMatchEnd, MatchEndPayload{Rounds: m.Round, Standings: m.Standings()})
		m.Round = 1
		m.LastScores = make(map[string]int)
		m.TotalScores = make(map[string]int)
		return ev, true
	}
	m.Round++
	return Event{}, false
}
