package game

import (
	"errors"
	"reflect"
	"testing"
)

func newExchangeGame(t *testing.T, roles []Role, hands ...[]Card) *Game {
	t.Helper()
	rules := DefaultRules()
	rules.Roles[len(hands)] = roles
	g := &Game{match: NewMatch(rules, 1), Phase: PhaseDealing, Round: 1}
	for i, h := range hands {
		hand := append([]Card(nil), h...)
		sortCards(hand)
		g.Seats = append(g.Seats, &Seat{Name: string(rune('A' + i)), Role: roles[i], Hand: hand})
	}
	return g
}

var fourSeatRoles = []Role{RoleGreaterDalmuti, RoleLesserDalmuti, RoleLesserPeon, RoleGreaterPeon}

func TestTributeAndBarrier(t *testing.T) {
	g := newExchangeGame(t, fourSeatRoles,
		cards(1, 2, 2, 3),
		cards(3, 3, 4, 4),
		cards(5, 6, 7, 8),
		cards(4, 9, 10, 11),
	)
	events := g.beginExchange()
	if g.Phase != PhaseExchange {
		t.Fatalf("預期換牌階段，實際 %s", g.Phase)
	}
	if !reflect.DeepEqual(g.Seats[0].Hand, cards(1, 2, 2, 3, 4, 9)) {
		t.Fatalf("最高位應收到兩張最小的牌：%v", g.Seats[0].Hand)
	}
	if !reflect.DeepEqual(g.Seats[3].Hand, cards(10, 11)) {
		t.Fatalf("最低位手牌 %v", g.Seats[3].Hand)
	}
	if !reflect.DeepEqual(g.Seats[1].Hand, cards(3, 3, 4, 4, 5)) || !reflect.DeepEqual(g.Seats[2].Hand, cards(6, 7, 8)) {
		t.Fatalf("小貢牌錯誤：%v %v", g.Seats[1].Hand, g.Seats[2].Hand)
	}
	if countKind(events, EventExchangePrompt) != 2 || countKind(events, EventTribute) != 2 {
		t.Fatalf("事件不符預期 %v", kinds(events))
	}

	if _, err := g.GiveBack(2, cards(6)); !errors.Is(err, ErrNotExchangeGiver) {
		t.Fatalf("預期 ErrNotExchangeGiver，實際 %v", err)
	}
	if _, err := g.GiveBack(0, cards(9)); !errors.Is(err, ErrExchangeCount) {
		t.Fatalf("預期 ErrExchangeCount，實際 %v", err)
	}
	if _, err := g.GiveBack(0, cards(9, 9)); !errors.Is(err, ErrCardNotHeld) {
		t.Fatalf("預期 ErrCardNotHeld，實際 %v", err)
	}
	if _, err := g.Play(0, cards(9)); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("換牌階段出牌應為階段錯誤，實際 %v", err)
	}

	// 小回贈先完成，遊戲必須繼續等待
	if _, err := g.GiveBack(1, cards(5)); err != nil {
		t.Fatalf("小回贈失敗：%v", err)
	}
	if g.Phase != PhaseExchange {
		t.Fatalf("大回贈完成前不應開始出牌")
	}
	if _, err := g.GiveBack(1, cards(4)); !errors.Is(err, ErrNotExchangeGiver) {
		t.Fatalf("同一座位第二次回贈應被拒絕，實際 %v", err)
	}
	events, err := g.GiveBack(0, cards(9, 4))
	if err != nil {
		t.Fatalf("大回贈失敗：%v", err)
	}
	if g.Phase != PhaseTurns || g.Turn != 0 || !g.OpeningTurn {
		t.Fatalf("應由最高位開始出牌：階段 %s 輪到 %d", g.Phase, g.Turn)
	}
	if countKind(events, EventGameSetup) != 1 || countKind(events, EventTurnChanged) != 1 {
		t.Fatalf("事件不符預期 %v", kinds(events))
	}
	if !reflect.DeepEqual(g.Seats[3].Hand, cards(4, 9, 10, 11)) {
		t.Fatalf("最低位應持有回贈的牌：%v", g.Seats[3].Hand)
	}
}

func TestExchangeWithoutLesserPair(t *testing.T) {
	roles := []Role{RoleGreaterDalmuti, RoleMerchant, RoleMerchant, RoleGreaterPeon}
	g := newExchangeGame(t, roles,
		cards(1, 2),
		cards(3, 4),
		cards(5, 6),
		cards(7, 8, 9),
	)
	g.beginExchange()
	if got := g.PendingGivers(); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("只有最高位需要回贈，實際 %v", got)
	}
	if len(g.Seats[1].Hand) != 2 || len(g.Seats[2].Hand) != 2 {
		t.Fatalf("平民不應換牌")
	}
	if _, err := g.GiveBack(0, cards(8, 7)); err != nil {
		t.Fatal(err)
	}
	if g.Phase != PhaseTurns {
		t.Fatalf("單次回贈後應開始出牌，階段 %s", g.Phase)
	}
}

func TestRevolutionDeclared(t *testing.T) {
	g := newExchangeGame(t, fourSeatRoles,
		cards(1, 2),
		cards(3, 4),
		cards(5, 6),
		cards(7, 13, 13),
	)
	events := g.beginExchange()
	if g.Phase != PhaseAwaitingRevolution {
		t.Fatalf("預期革命選擇，實際 %s", g.Phase)
	}
	if events[0].Kind != EventRevolutionPrompt || events[0].Seats[0] != 3 {
		t.Fatalf("應提示最低位：%v", kinds(events))
	}
	if !reflect.DeepEqual(events[1].Seats, []int{0, 1, 2}) {
		t.Fatalf("其他人應等待，實際 %v", events[1].Seats)
	}
	if _, err := g.ChooseRevolution(0, true); !errors.Is(err, ErrNotRevolutionSeat) {
		t.Fatalf("預期 ErrNotRevolutionSeat，實際 %v", err)
	}
	if _, err := g.GiveBack(0, cards(1, 2)); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("預期 ErrWrongPhase，實際 %v", err)
	}
	if _, err := g.ChooseRevolution(3, true); err != nil {
		t.Fatal(err)
	}
	if g.Phase != PhaseTurns || !g.Revolution {
		t.Fatalf("革命應直接進入出牌")
	}
	if len(g.Seats[3].Hand) != 3 || len(g.Seats[0].Hand) != 2 {
		t.Fatalf("革命時不應移動任何牌")
	}
	if _, err := g.ChooseRevolution(3, false); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("第二次選擇應為階段錯誤，實際 %v", err)
	}
}

func TestRevolutionDeclined(t *testing.T) {
	g := newExchangeGame(t, fourSeatRoles,
		cards(1, 2),
		cards(3, 4),
		cards(5, 6),
		cards(7, 13, 13),
	)
	g.beginExchange()
	if _, err := g.ChooseRevolution(3, false); err != nil {
		t.Fatal(err)
	}
	if g.Phase != PhaseExchange {
		t.Fatalf("拒絕革命應進行換牌，實際 %s", g.Phase)
	}
	if !reflect.DeepEqual(g.Seats[0].Hand, cards(1, 2, 7, 13)) {
		t.Fatalf("最高位手牌 %v", g.Seats[0].Hand)
	}
}

func TestBasicFourPlayerRound(t *testing.T) {
	m := NewMatch(DefaultRules(), 11)
	g, _, err := m.StartRound([]string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatal(err)
	}
	wantRoles := []Role{RoleGreaterDalmuti, RoleLesserDalmuti, RoleLesserPeon, RoleGreaterPeon}
	for i, s := range g.Seats {
		if s.Role != wantRoles[i] {
			t.Fatalf("座位 %d 身份 %s", i, s.Role)
		}
	}
	switch g.Phase {
	case PhaseAwaitingRevolution:
		if countJokers(g.Seats[3].Hand) != 2 {
			t.Fatalf("未持有兩張小丑卻出現革命選擇")
		}
	case PhaseExchange:
		if len(g.Seats[0].Hand) != 22 || len(g.Seats[3].Hand) != 18 {
			t.Fatalf("貢牌後張數 %d %d", len(g.Seats[0].Hand), len(g.Seats[3].Hand))
		}
		if len(g.Seats[1].Hand) != 21 || len(g.Seats[2].Hand) != 19 {
			t.Fatalf("小貢牌後張數 %d %d", len(g.Seats[1].Hand), len(g.Seats[2].Hand))
		}
	default:
		t.Fatalf("階段不符預期 %s", g.Phase)
	}
	settleExchange(t, g)
	for i, s := range g.Seats {
		if len(s.Hand) != 20 {
			t.Fatalf("換牌後座位 %d 應持有 20 張，實際 %d", i, len(s.Hand))
		}
	}
	if g.Turn != 0 || !g.OpeningTurn {
		t.Fatalf("應由最高位開局")
	}
}

func TestResumeNeverLeaksOtherHands(t *testing.T) {
	g := newExchangeGame(t, fourSeatRoles,
		cards(1, 2, 2, 3),
		cards(3, 3, 4, 4),
		cards(5, 6, 7, 8),
		cards(4, 9, 10, 11),
	)
	g.beginExchange()

	events, err := g.Resume(0)
	if err != nil {
		t.Fatal(err)
	}
	if events[1].Kind != EventExchangePrompt {
		t.Fatalf("尚未回贈者應再次收到提示：%v", kinds(events))
	}
	events, _ = g.Resume(3)
	if events[1].Kind != EventExchangeWaiting {
		t.Fatalf("接收者應收到等待通知：%v", kinds(events))
	}
	if _, err := g.Resume(9); !errors.Is(err, ErrUnknownSeat) {
		t.Fatalf("預期 ErrUnknownSeat，實際 %v", err)
	}

	settleExchange(t, g)
	events, err = g.Resume(2)
	if err != nil {
		t.Fatal(err)
	}
	snap := events[0].Payload.(Snapshot)
	if events[0].Kind != EventSnapshot || snap.Viewer != 2 {
		t.Fatalf("預期座位 2 收到快照")
	}
	if !reflect.DeepEqual(snap.Hand, g.Seats[2].Hand) {
		t.Fatalf("快照應包含觀看者的手牌")
	}
	for _, view := range snap.Seats {
		if view.HandSize != len(g.Seats[view.Seat].Hand) {
			t.Fatalf("座位 %d 手牌張數錯誤", view.Seat)
		}
	}
	if public := g.PublicView(); public.Hand != nil || public.Viewer != -1 {
		t.Fatalf("公開資訊不應包含手牌")
	}
}
