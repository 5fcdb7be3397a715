package game

// beginExchange 在發牌後執行。大奴隸握有兩張小丑時可先宣告革命，否則直接收取貢牌
func (g *Game) beginExchange() []Event {
	if !g.hasGreaterPair() {
		return g.startTurns()
	}
	bottom := len(g.Seats) - 1
	if countJokers(g.Seats[bottom].Hand) == 2 {
		g.Phase = PhaseAwaitingRevolution
		return g.revolutionPrompts()
	}
	return g.collectTribute()
}

func (g *Game) revolutionPrompts() []Event {
	bottom := len(g.Seats) - 1
	events := []Event{toSeat(bottom, EventRevolutionPrompt, RevolutionPromptPayload{Seat: bottom})}
	if others := g.seatsExcept(bottom); len(others) > 0 {
		events = append(events, Event{
			Kind:    EventExchangeWaiting,
			Payload: WaitingPayload{Phase: g.Phase, Waiting: []int{bottom}, Message: "waiting for revolution choice"},
			Seats:   others,
		})
	}
	return events
}

// ChooseRevolution 記錄大奴隸的決定，宣告革命則完全跳過換牌
func (g *Game) ChooseRevolution(seat int, declare bool) ([]Event, error) {
	if g.Phase != PhaseAwaitingRevolution {
		return nil, ErrWrongPhase
	}
	if seat != len(g.Seats)-1 {
		return nil, ErrNotRevolutionSeat
	}
	g.Revolution = declare
	events := []Event{broadcast(EventRevolution, RevolutionPayload{Seat: seat, Name: g.Seats[seat].Name, Declared: declare})}
	if declare {
		return append(events, g.startTurns()...), nil
	}
	return append(events, g.collectTribute()...), nil
}

// collectTribute 自動上繳最小的牌，並請上位者回贈
func (g *Game) collectTribute() []Event {
	g.Phase = PhaseExchange
	n := len(g.Seats)
	var events []Event
	g.exchanges = g.exchanges[:0]

	events = append(events, g.transfer(n-1, 0, 2)...)
	g.exchanges = append(g.exchanges, &exchange{From: 0, To: n - 1, Count: 2})
	if g.hasLesserPair() {
		events = append(events, g.transfer(n-2, 1, 1)...)
		g.exchanges = append(g.exchanges, &exchange{From: 1, To: n - 2, Count: 1})
	}
	return append(events, g.exchangePrompts()...)
}

// transfer 把 from 最小的 count 張牌移給 to
func (g *Game) transfer(from, to, count int) []Event {
	src, dst := g.Seats[from], g.Seats[to]
	if count > len(src.Hand) {
		count = len(src.Hand)
	}
	moved := append([]Card(nil), src.Hand[:count]...)
	src.Hand = append([]Card(nil), src.Hand[count:]...)
	dst.Hand = append(dst.Hand, moved...)
	sortCards(dst.Hand)
	return []Event{
		broadcast(EventTribute, TransferPayload{From: from, FromName: src.Name, To: to, ToName: dst.Name, Count: count}),
		g.handEvent(from),
		g.handEvent(to),
	}
}

func (g *Game) exchangePrompts() []Event {
	var events []Event
	var waiting []int
	givers := make(map[int]bool)
	for _, ex := range g.exchanges {
		if ex.Done {
			continue
		}
		givers[ex.From] = true
		waiting = append(waiting, ex.From)
		events = append(events, g.exchangePrompt(ex))
	}
	var others []int
	for i := range g.Seats {
		if !givers[i] {
			others = append(others, i)
		}
	}
	if len(others) > 0 {
		events = append(events, Event{
			Kind:    EventExchangeWaiting,
			Payload: WaitingPayload{Phase: g.Phase, Waiting: waiting, Message: "waiting for cards to be given back"},
			Seats:   others,
		})
	}
	return events
}

func (g *Game) exchangePrompt(ex *exchange) Event {
	giver := g.Seats[ex.From]
	return toSeat(ex.From, EventExchangePrompt, ExchangePromptPayload{
		Seat:   ex.From,
		To:     ex.To,
		ToName: g.Seats[ex.To].Name,
		Count:  ex.Count,
		Hand:   append([]Card(nil), giver.Hand...),
	})
}

// GiveBack 由上位者把選定的牌回贈給對應的下位者。所有回贈完成後（順序不拘）才開始出牌
func (g *Game) GiveBack(seat int, cards []Card) ([]Event, error) {
	if g.Phase != PhaseExchange {
		return nil, ErrWrongPhase
	}
	var ex *exchange
	for _, candidate := range g.exchanges {
		if candidate.From == seat && !candidate.Done {
			ex = candidate
			break
		}
	}
	if ex == nil {
		return nil, ErrNotExchangeGiver
	}
	if len(cards) != ex.Count {
		return nil, ErrExchangeCount
	}
	giver, receiver := g.Seats[ex.From], g.Seats[ex.To]
	hand, ok := removeCards(giver.Hand, cards)
	if !ok {
		return nil, ErrCardNotHeld
	}
	giver.Hand = hand
	receiver.Hand = append(receiver.Hand, cards...)
	sortCards(receiver.Hand)
	ex.Done = true

	events := []Event{
		broadcast(EventExchangeDone, TransferPayload{From: ex.From, FromName: giver.Name, To: ex.To, ToName: receiver.Name, Count: ex.Count}),
		g.handEvent(ex.From),
		g.handEvent(ex.To),
	}
	for _, other := range g.exchanges {
		if !other.Done {
			return events, nil
		}
	}
	return append(events, g.startTurns()...), nil
}

// PendingGivers 列出尚未回贈的座位
func (g *Game) PendingGivers() []int {
	var seats []int
	if g.Phase != PhaseExchange {
		return seats
	}
	for _, ex := range g.exchanges {
		if !ex.Done {
			seats = append(seats, ex.From)
		}
	}
	return seats
}

func (g *Game) seatsExcept(seat int) []int {
	out := make([]int, 0, len(g.Seats)-1)
	for i := range g.Seats {
		if i != seat {
			out = append(out, i)
		}
	}
	return out
}
