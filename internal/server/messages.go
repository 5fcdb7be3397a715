package server

import (
	"encoding/json"

	"dalmuti/internal/game"
)

// ClientMessage 定義客戶端請求的通用訊息格式
type ClientMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Passcode string `json:"passcode,omitempty"`
}

type CardsPayload struct {
	Cards []game.Card `json:"cards"`
}

type RevolutionChoicePayload struct {
	Declare bool `json:"declare"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

// ServerMessage 是伺服器端對外推送的通用訊息格式
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type AckPayload struct {
	ID      string `json:"id,omitempty"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Status      string `json:"status"`
	Locked      bool   `json:"locked"`
}

type MemberInfo struct {
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

type RosterPayload struct {
	RoomID       string       `json:"roomId"`
	Name         string       `json:"name"`
	MaxPlayers   int          `json:"maxPlayers"`
	Members      []MemberInfo `json:"members"`
	InGame       bool         `json:"inGame"`
	Round        int          `json:"round"`
	TimerEnabled bool         `json:"timerEnabled"`
}

type TurnTimerPayload struct {
	Seat       int    `json:"seat"`
	Name       string `json:"name"`
	DeadlineMs int64  `json:"deadlineMs"`
	Seconds    int    `json:"seconds"`
}

type TimerStatusPayload struct {
	Enabled bool   `json:"enabled"`
	By      string `json:"by"`
}

type ChatMessagePayload struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	System bool   `json:"system,omitempty"`
}

type InterruptPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

const (
	msgAck             = "ack"
	msgError           = "error"
	msgRoster          = "roster"
	msgTurnTimer       = "turn_timer"
	msgTurnTimeout     = "turn_timeout"
	msgTimerStatus     = "timer_status"
	msgChat            = "chat"
	msgGameInterrupted = "game_interrupted"
	msgGameAborted     = "game_aborted"
	msgResetClient     = "reset_client"
)
