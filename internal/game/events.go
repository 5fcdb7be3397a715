package game

// EventKind 表示對外通知的種類，其值同時作為傳輸訊息類型
type EventKind string

const (
	EventRoundStart       EventKind = "round_start"
	EventHand             EventKind = "hand"
	EventRevolutionPrompt EventKind = "revolution_prompt"
	EventExchangeWaiting  EventKind = "exchange_waiting"
	EventRevolution       EventKind = "revolution"
	EventTribute          EventKind = "tribute"
	EventExchangePrompt   EventKind = "exchange_prompt"
	EventExchangeDone     EventKind = "exchange_done"
	EventGameSetup        EventKind = "game_setup"
	EventTurnChanged      EventKind = "turn_changed"
	EventPlayAccepted     EventKind = "play_accepted"
	EventPassed           EventKind = "passed"
	EventTrickReset       EventKind = "trick_reset"
	EventSeatFinished     EventKind = "seat_finished"
	EventGameEnd          EventKind = "game_end"
	EventMatchEnd         EventKind = "match_end"
	EventSnapshot         EventKind = "snapshot"
)

// Event 送給 Seats 列出的座位；Seats 為空時廣播給所有人
type Event struct {
	Kind    EventKind
	Payload any
	Seats   []int
}

func (e Event) Broadcast() bool {
	return len(e.Seats) == 0
}

func broadcast(kind EventKind, payload any) Event {
	return Event{Kind: kind, Payload: payload}
}

func toSeat(seat int, kind EventKind, payload any) Event {
	return Event{Kind: kind, Payload: payload, Seats: []int{seat}}
}

type SeatDraw struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
	Role Role   `json:"role"`
	Draw int    `json:"draw,omitempty"`
}

type RoundStartPayload struct {
	Round   int        `json:"round"`
	ByScore bool       `json:"byScore"`
	Seats   []SeatDraw `json:"seats"`
}

type HandPayload struct {
	Seat  int    `json:"seat"`
	Role  Role   `json:"role"`
	Cards []Card `json:"cards"`
}

type RevolutionPromptPayload struct {
	Seat int `json:"seat"`
}

type WaitingPayload struct {
	Phase   Phase  `json:"phase"`
	Waiting []int  `json:"waiting"`
	Message string `json:"message"`
}

type RevolutionPayload struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Declared bool   `json:"declared"`
}

type TransferPayload struct {
	From     int    `json:"from"`
	FromName string `json:"fromName"`
	To       int    `json:"to"`
	ToName   string `json:"toName"`
	Count    int    `json:"count"`
}

type ExchangePromptPayload struct {
	Seat   int    `json:"seat"`
	To     int    `json:"to"`
	ToName string `json:"toName"`
	Count  int    `json:"count"`
	Hand   []Card `json:"hand"`
}

type TurnPayload struct {
	Seat        int    `json:"seat"`
	Name        string `json:"name"`
	OpeningTurn bool   `json:"openingTurn"`
	Seq         int    `json:"seq"`
}

type PlayPayload struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Cards     []Card `json:"cards"`
	Rank      int    `json:"rank"`
	Count     int    `json:"count"`
	Remaining int    `json:"remaining"`
}

type PassPayload struct {
	Seat    int    `json:"seat"`
	Name    string `json:"name"`
	Forced  bool   `json:"forced,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}

type TrickResetPayload struct {
	Leader     int    `json:"leader"`
	LeaderName string `json:"leaderName"`
}

type FinishedPayload struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type GameEndPayload struct {
	Round   int      `json:"round"`
	Results []Result `json:"results"`
}

type MatchEndPayload struct {
	Rounds    int        `json:"rounds"`
	Standings []Standing `json:"standings"`
}
