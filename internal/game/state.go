package game

import "math/rand"

// Match 保存房間內跨回合延續的資料
type Match struct {
	rules Rules
	rng   *rand.Rand

	Round       int
	LastScores  map[string]int
	TotalScores map[string]int
}

func NewMatch(rules Rules, seed int64) *Match {
	return &Match{
		rules:       rules,
		rng:         rand.New(rand.NewSource(seed)),
		Round:       1,
		LastScores:  make(map[string]int),
		TotalScores: make(map[string]int),
	}
}

func (m *Match) Rules() Rules {
	return m.rules
}

// Game 是單一回合從入座到計分的狀態
type Game struct {
	match *Match

	Phase       Phase
	Round       int
	Seats       []*Seat
	Turn        int
	Pending     *Play
	PassCount   int
	FinishOrder []int
	OpeningTurn bool
	Revolution  bool
	TurnSeq     int
	Results     []Result

	exchanges []*exchange
	played    []Card
}

type exchange struct {
	From  int
	To    int
	Count int
	Done  bool
}

// SeatOf 回傳 name 所在的座位索引，找不到時回傳 -1
func (g *Game) SeatOf(name string) int {
	for i, s := range g.Seats {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (g *Game) seat(idx int) (*Seat, error) {
	if idx < 0 || idx >= len(g.Seats) {
		return nil, ErrUnknownSeat
	}
	return g.Seats[idx], nil
}

func (g *Game) activeCount() int {
	n := 0
	for _, s := range g.Seats {
		if !s.Finished {
			n++
		}
	}
	return n
}

// nextActive 回傳 from 之後第一個尚未完成的座位（循環）
func (g *Game) nextActive(from int) int {
	n := len(g.Seats)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if !g.Seats[idx].Finished {
			return idx
		}
	}
	return from
}

// Played 回傳本回合已打出的牌
func (g *Game) Played() []Card {
	return append([]Card(nil), g.played...)
}

func (g *Game) hasGreaterPair() bool {
	n := len(g.Seats)
	return n >= 2 && g.Seats[0].Role == RoleGreaterDalmuti && g.Seats[n-1].Role == RoleGreaterPeon
}

func (g *Game) hasLesserPair() bool {
	n := len(g.Seats)
	return n >= 4 && g.Seats[1].Role == RoleLesserDalmuti && g.Seats[n-2].Role == RoleLesserPeon
}
