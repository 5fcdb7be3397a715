package game

import (
	"fmt"
	"math/rand"
	"sort"
)

// NewDeck 建立整副牌：點數 i 有 i 張，另加兩張小丑
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for rank := MinRank; rank <= MaxRank; rank++ {
		for i := 0; i < rank; i++ {
			deck = append(deck, Card(rank))
		}
	}
	return append(deck, Joker, Joker)
}

func Shuffle(rng *rand.Rand, deck []Card) {
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
}

// Deal 依序輪流發牌，再把額外的牌發給最高位，整副牌必須剛好發完
func Deal(deck []Card, seats []*Seat, layout DealLayout) error {
	need := layout.Base*len(seats) + layout.TopExtra
	if len(seats) == 0 || need != len(deck) {
		return fmt.Errorf("%w: %d seats need %d cards, deck has %d", ErrDealMismatch, len(seats), need, len(deck))
	}
	for _, s := range seats {
		s.Hand = make([]Card, 0, layout.Base+layout.TopExtra)
	}
	pos := 0
	for i := 0; i < layout.Base; i++ {
		for _, s := range seats {
			s.Hand = append(s.Hand, deck[pos])
			pos++
		}
	}
	seats[0].Hand = append(seats[0].Hand, deck[pos:pos+layout.TopExtra]...)
	pos += layout.TopExtra
	if pos != len(deck) {
		return fmt.Errorf("%w: %d cards left undealt", ErrDealMismatch, len(deck)-pos)
	}
	for _, s := range seats {
		sortCards(s.Hand)
	}
	return nil
}

type seating struct {
	names   []string
	draws   []int
	byScore bool
}

// seatOrder 由最高位開始排定座位。每位玩家都有上回合分數時依分數排序；
// 否則每人從 1 到 12 抽一個不重複的號碼，號碼最小者坐最高位
func (m *Match) seatOrder(names []string) seating {
	ranked := len(names) > 0
	for _, name := range names {
		if _, ok := m.LastScores[name]; !ok {
			ranked = false
			break
		}
	}
	order := append([]string(nil), names...)
	if ranked {
		sort.SliceStable(order, func(i, j int) bool {
			return m.LastScores[order[i]] > m.LastScores[order[j]]
		})
		return seating{names: order, byScore: true}
	}

	perm := m.rng.Perm(MaxRank)
	draws := make([]int, len(order))
	idx := make([]int, len(order))
	for i := range order {
		draws[i] = perm[i] + 1
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return draws[idx[a]] < draws[idx[b]] })
	out := seating{names: make([]string, len(order)), draws: make([]int, len(order))}
	for pos, i := range idx {
		out.names[pos] = order[i]
		out.draws[pos] = draws[i]
	}
	return out
}

// StartRound 安排座位並發牌，接著進入革命選擇、換牌或第一手出牌
func (m *Match) StartRound(names []string) (*Game, []Event, error) {
	n := len(names)
	if !m.rules.Supports(n) || n > MaxRank {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidPlayerCount, n)
	}
	seen := make(map[string]struct{}, n)
	for _, name := range names {
		if _, dup := seen[name]; dup || name == "" {
			return nil, nil, fmt.Errorf("%w: duplicate or empty name %q", ErrInvalidPlayerCount, name)
		}
		seen[name] = struct{}{}
	}

	g := &Game{match: m, Phase: PhaseRoleAssignment, Round: m.Round}
	order := m.seatOrder(names)
	template := m.rules.Roles[n]
	g.Seats = make([]*Seat, n)
	for i, name := range order.names {
		g.Seats[i] = &Seat{Name: name, Role: template[i]}
		if order.draws != nil {
			g.Seats[i].Draw = order.draws[i]
		}
	}

	g.Phase = PhaseDealing
	deck := NewDeck()
	Shuffle(m.rng, deck)
	if err := Deal(deck, g.Seats, m.rules.Deals[n]); err != nil {
		return nil, nil, err
	}

	start := RoundStartPayload{Round: g.Round, ByScore: order.byScore}
	for i, s := range g.Seats {
		start.Seats = append(start.Seats, SeatDraw{Seat: i, Name: s.Name, Role: s.Role, Draw: s.Draw})
	}
	events := []Event{broadcast(EventRoundStart, start)}
	for i := range g.Seats {
		events = append(events, g.handEvent(i))
	}
	events = append(events, g.beginExchange()...)
	return g, events, nil
}

func (g *Game) handEvent(seat int) Event {
	s := g.Seats[seat]
	return toSeat(seat, EventHand, HandPayload{Seat: seat, Role: s.Role, Cards: append([]Card(nil), s.Hand...)})
}
