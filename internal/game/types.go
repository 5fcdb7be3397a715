package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Card 是 1（最強）到 12 的點數，或小丑
type Card int

// Joker 與數字牌同出時可替代任意點數，單獨排序時視為 13
const Joker Card = 13

const (
	MinRank  = 1
	MaxRank  = 12
	DeckSize = MaxRank*(MaxRank+1)/2 + 2
)

func (c Card) IsJoker() bool {
	return c == Joker
}

func (c Card) Valid() bool {
	return c >= MinRank && c <= Joker
}

func (c Card) String() string {
	if c.IsJoker() {
		return "J"
	}
	return strconv.Itoa(int(c))
}

func (c Card) MarshalJSON() ([]byte, error) {
	if c.IsJoker() {
		return []byte(`"J"`), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Card(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid card %s", data)
	}
	if s == "J" || s == "j" || s == "joker" {
		*c = Joker
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid card %q", s)
	}
	*c = Card(n)
	return nil
}

// Role 表示座位在本回合的身份
type Role int

const (
	RoleGreaterDalmuti Role = iota
	RoleLesserDalmuti
	RoleMerchant
	RoleLesserPeon
	RoleGreaterPeon
)

var roleNames = map[Role]string{
	RoleGreaterDalmuti: "greater_dalmuti",
	RoleLesserDalmuti:  "lesser_dalmuti",
	RoleMerchant:       "merchant",
	RoleLesserPeon:     "lesser_peon",
	RoleGreaterPeon:    "greater_peon",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for role, name := range roleNames {
		if name == s {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", s)
}

// Phase 表示回合目前所處的階段
type Phase string

const (
	PhaseLobby              Phase = "lobby"
	PhaseRoleAssignment     Phase = "role_assignment"
	PhaseDealing            Phase = "dealing"
	PhaseExchange           Phase = "exchange"
	PhaseAwaitingRevolution Phase = "awaiting_revolution"
	PhaseTurns              Phase = "turns"
	PhaseScoring            Phase = "scoring"
)

// Seat 表示一位玩家在本回合的座位
type Seat struct {
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Hand     []Card `json:"-"`
	Finished bool   `json:"finished"`
	Draw     int    `json:"draw,omitempty"`
}

func (s *Seat) HandSize() int {
	return len(s.Hand)
}

// Play 表示目前桌面上的牌
type Play struct {
	Seat  int    `json:"seat"`
	Rank  int    `json:"rank"`
	Count int    `json:"count"`
	Cards []Card `json:"cards"`
}

func sortCards(cards []Card) {
	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })
}

// removeCards 依張數從手牌移除 cards，任何一張不在手牌中時原手牌不變
func removeCards(hand, cards []Card) ([]Card, bool) {
	counts := make(map[Card]int, len(hand))
	for _, c := range hand {
		counts[c]++
	}
	for _, c := range cards {
		if counts[c] == 0 {
			return hand, false
		}
		counts[c]--
	}
	out := make([]Card, 0, len(hand)-len(cards))
	for _, c := range hand {
		if counts[c] > 0 {
			out = append(out, c)
			counts[c]--
		}
	}
	return out, true
}

// playRank 回傳這組牌的點數。小丑取數字牌的點數，全小丑時為 13
func playRank(cards []Card) (int, bool) {
	rank := 0
	for _, c := range cards {
		if c.IsJoker() {
			continue
		}
		if rank == 0 {
			rank = int(c)
			continue
		}
		if int(c) != rank {
			return 0, false
		}
	}
	if rank == 0 {
		return int(Joker), true
	}
	return rank, true
}

func countJokers(cards []Card) int {
	n := 0
	for _, c := range cards {
		if c.IsJoker() {
			n++
		}
	}
	return n
}
