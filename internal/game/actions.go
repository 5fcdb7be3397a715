package game

// startTurns 清空桌面，由最高位座位領出
func (g *Game) startTurns() []Event {
	g.Phase = PhaseTurns
	g.Pending = nil
	g.PassCount = 0
	g.OpeningTurn = true
	g.exchanges = nil
	lead := 0
	if g.Seats[lead].Finished {
		lead = g.nextActive(lead)
	}
	return []Event{broadcast(EventGameSetup, g.PublicView()), g.beginTurn(lead)}
}

func (g *Game) beginTurn(seat int) Event {
	g.Turn = seat
	g.TurnSeq++
	return broadcast(EventTurnChanged, TurnPayload{
		Seat:        seat,
		Name:        g.Seats[seat].Name,
		OpeningTurn: g.OpeningTurn,
		Seq:         g.TurnSeq,
	})
}

func (g *Game) checkTurn(seat int) (*Seat, error) {
	if g.Phase != PhaseTurns {
		return nil, ErrWrongPhase
	}
	s, err := g.seat(seat)
	if err != nil {
		return nil, err
	}
	if g.Turn != seat {
		return nil, ErrNotYourTurn
	}
	if s.Finished {
		return nil, ErrSeatFinished
	}
	return s, nil
}

// Play 由當前輪到的座位出牌
func (g *Game) Play(seat int, cards []Card) ([]Event, error) {
	s, err := g.checkTurn(seat)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrEmptyPlay
	}
	hand, ok := removeCards(s.Hand, cards)
	if !ok {
		return nil, ErrCardNotHeld
	}
	rank, ok := playRank(cards)
	if !ok {
		return nil, ErrMixedRanks
	}
	if g.Pending != nil {
		if len(cards) != g.Pending.Count {
			return nil, ErrCountMismatch
		}
		if rank >= g.Pending.Rank {
			return nil, ErrNotLower
		}
	}

	played := append([]Card(nil), cards...)
	sortCards(played)
	s.Hand = hand
	g.played = append(g.played, played...)
	g.Pending = &Play{Seat: seat, Rank: rank, Count: len(played), Cards: played}
	g.PassCount = 0
	g.OpeningTurn = false

	events := []Event{
		broadcast(EventPlayAccepted, PlayPayload{
			Seat:      seat,
			Name:      s.Name,
			Cards:     played,
			Rank:      rank,
			Count:     len(played),
			Remaining: len(s.Hand),
		}),
		g.handEvent(seat),
	}
	if len(s.Hand) == 0 {
		events = append(events, g.markFinished(seat))
	}
	if g.roundOver() {
		return append(events, g.finish()...), nil
	}

	if rank == MinRank {
		// 1 無牌可壓：其餘玩家一律 pass，本圈結束
		for i, other := range g.Seats {
			if i == seat || other.Finished {
				continue
			}
			events = append(events, broadcast(EventPassed, PassPayload{Seat: i, Name: other.Name, Forced: true}))
		}
		return append(events, g.resetTrick(seat)...), nil
	}
	return append(events, g.beginTurn(g.nextActive(seat))), nil
}

// Pass 放棄壓過桌面上的牌
func (g *Game) Pass(seat int) ([]Event, error) {
	if _, err := g.checkTurn(seat); err != nil {
		return nil, err
	}
	if g.OpeningTurn || g.Pending == nil {
		return nil, ErrOpeningPass
	}
	if g.activeCount() <= 1 {
		return nil, ErrLastSeatMustPlay
	}
	return g.applyPass(seat, false), nil
}

// Timeout 為計時到期的座位代為 pass，seq 必須是計時器啟動時的回合序號
func (g *Game) Timeout(seat, seq int) ([]Event, error) {
	if g.Phase != PhaseTurns || g.Turn != seat || g.TurnSeq != seq {
		return nil, ErrStaleTimer
	}
	if s, err := g.seat(seat); err != nil || s.Finished {
		return nil, ErrStaleTimer
	}
	if g.activeCount() <= 1 {
		return nil, nil
	}
	if g.Pending == nil {
		return g.timeoutOpenTable(seat), nil
	}
	return g.applyPass(seat, true), nil
}

// timeoutOpenTable 為閒置的領出者記一次 pass 並把空桌交給下一位。
// 其餘在場玩家都放過之後，pass 數歸零並重新開局
func (g *Game) timeoutOpenTable(seat int) []Event {
	g.PassCount++
	events := []Event{broadcast(EventPassed, PassPayload{Seat: seat, Name: g.Seats[seat].Name, Timeout: true})}
	next := g.nextActive(seat)
	if g.PassCount >= g.activeCount()-1 {
		g.PassCount = 0
		events = append(events, broadcast(EventTrickReset, TrickResetPayload{Leader: next, LeaderName: g.Seats[next].Name}))
	}
	return append(events, g.beginTurn(next))
}

func (g *Game) applyPass(seat int, timeout bool) []Event {
	g.PassCount++
	events := []Event{broadcast(EventPassed, PassPayload{Seat: seat, Name: g.Seats[seat].Name, Timeout: timeout})}

	owner := g.Pending.Seat
	if g.PassCount >= g.activeCount()-1 {
		return append(events, g.resetTrick(owner)...)
	}
	return append(events, g.beginTurn(g.nextActive(seat)))
}

// resetTrick 清空桌面並交由 owner 領出；owner 已完成時改由其後第一位在場玩家領出
func (g *Game) resetTrick(owner int) []Event {
	g.Pending = nil
	g.PassCount = 0
	g.OpeningTurn = true
	lead := owner
	if g.Seats[lead].Finished {
		lead = g.nextActive(owner)
	}
	return []Event{
		broadcast(EventTrickReset, TrickResetPayload{Leader: lead, LeaderName: g.Seats[lead].Name}),
		g.beginTurn(lead),
	}
}

func (g *Game) markFinished(seat int) Event {
	s := g.Seats[seat]
	s.Finished = true
	g.FinishOrder = append(g.FinishOrder, seat)
	return broadcast(EventSeatFinished, FinishedPayload{Seat: seat, Name: s.Name, Position: len(g.FinishOrder)})
}

func (g *Game) roundOver() bool {
	return len(g.FinishOrder) >= len(g.Seats)-1
}
