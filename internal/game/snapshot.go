package game

// SeatView 是座位的公開資訊
type SeatView struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	HandSize int    `json:"handSize"`
	Finished bool   `json:"finished"`
	Position int    `json:"position,omitempty"`
}

// Snapshot 是某個座位可見的牌桌狀態，Hand 只會是觀看者自己的手牌
type Snapshot struct {
	Phase       Phase          `json:"phase"`
	Round       int            `json:"round"`
	Seats       []SeatView     `json:"seats"`
	Turn        int            `json:"turn"`
	OpeningTurn bool           `json:"openingTurn"`
	Pending     *Play          `json:"pending,omitempty"`
	Revolution  bool           `json:"revolution"`
	Totals      map[string]int `json:"totals"`
	Viewer      int            `json:"viewer"`
	Hand        []Card         `json:"hand,omitempty"`
}

func (g *Game) PublicView() Snapshot {
	snap := Snapshot{
		Phase:       g.Phase,
		Round:       g.Round,
		Seats:       make([]SeatView, len(g.Seats)),
		Turn:        g.Turn,
		OpeningTurn: g.OpeningTurn,
		Revolution:  g.Revolution,
		Totals:      make(map[string]int, len(g.Seats)),
		Viewer:      -1,
	}
	positions := make(map[int]int, len(g.FinishOrder))
	for i, seat := range g.FinishOrder {
		positions[seat] = i + 1
	}
	for i, s := range g.Seats {
		snap.Seats[i] = SeatView{
			Seat:     i,
			Name:     s.Name,
			Role:     s.Role,
			HandSize: len(s.Hand),
			Finished: s.Finished,
			Position: positions[i],
		}
		snap.Totals[s.Name] = g.match.TotalScores[s.Name]
	}
	if g.Pending != nil {
		p := *g.Pending
		p.Cards = append([]Card(nil), g.Pending.Cards...)
		snap.Pending = &p
	}
	return snap
}

func (g *Game) SnapshotFor(seat int) Snapshot {
	snap := g.PublicView()
	if seat >= 0 && seat < len(g.Seats) {
		snap.Viewer = seat
		snap.Hand = append([]Card{}, g.Seats[seat].Hand...)
	}
	return snap
}

// Resume 回傳重連座位接續遊戲所需的事件。有待回應的提示就重送，否則給快照
func (g *Game) Resume(seat int) ([]Event, error) {
	if _, err := g.seat(seat); err != nil {
		return nil, err
	}
	switch g.Phase {
	case PhaseExchange:
		for _, ex := range g.exchanges {
			if ex.From == seat && !ex.Done {
				return []Event{g.handEvent(seat), g.exchangePrompt(ex)}, nil
			}
		}
		return []Event{g.handEvent(seat), toSeat(seat, EventExchangeWaiting, WaitingPayload{
			Phase:   g.Phase,
			Waiting: g.PendingGivers(),
			Message: "waiting for cards to be given back",
		})}, nil
	case PhaseAwaitingRevolution:
		bottom := len(g.Seats) - 1
		if seat == bottom {
			return []Event{g.handEvent(seat), toSeat(seat, EventRevolutionPrompt, RevolutionPromptPayload{Seat: seat})}, nil
		}
		return []Event{g.handEvent(seat), toSeat(seat, EventExchangeWaiting, WaitingPayload{
			Phase:   g.Phase,
			Waiting: []int{bottom},
			Message: "waiting for revolution choice",
		})}, nil
	default:
		return []Event{toSeat(seat, EventSnapshot, g.SnapshotFor(seat))}, nil
	}
}
