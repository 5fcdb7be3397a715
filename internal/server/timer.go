package server

import (
	"time"

	"go.uber.org/zap"

	"dalmuti/internal/game"
)

// syncTimer 為目前輪到的座位重新計時，每個房間只保留一個計時器
func (r *Room) syncTimer() {
	r.cancelTurnTimer()
	if r.game == nil || r.game.Phase != game.PhaseTurns || !r.timerEnabled || r.cfg.TurnDuration <= 0 {
		return
	}
	r.timerSeat = r.game.Turn
	r.timerSeq = r.game.TurnSeq
	r.timerDeadline = time.Now().Add(r.cfg.TurnDuration)
	r.turnTimer = time.NewTimer(r.cfg.TurnDuration)
	r.timerC = r.turnTimer.C
	r.broadcast(r.turnTimerMessage())
}

func (r *Room) cancelTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
	}
	r.turnTimer = nil
	r.timerC = nil
}

func (r *Room) turnTimerMessage() ServerMessage {
	name := ""
	if r.game != nil && r.timerSeat < len(r.game.Seats) {
		name = r.game.Seats[r.timerSeat].Name
	}
	return ServerMessage{Type: msgTurnTimer, Payload: TurnTimerPayload{
		Seat:       r.timerSeat,
		Name:       name,
		DeadlineMs: r.timerDeadline.UnixMilli(),
		Seconds:    int(r.cfg.TurnDuration / time.Second),
	}}
}

// onTurnTimer 在座位仍處於同一回合時代為 pass
func (r *Room) onTurnTimer() {
	seat, seq := r.timerSeat, r.timerSeq
	r.turnTimer = nil
	r.timerC = nil
	if r.closed || r.game == nil {
		return
	}
	events, err := r.game.Timeout(seat, seq)
	if err != nil {
		r.logger.Debug("stale turn timer", zap.Int("seat", seat), zap.Int("seq", seq))
		return
	}
	if events == nil {
		return
	}
	name := r.game.Seats[seat].Name
	r.logger.Info("turn timeout auto-pass", zap.Int("seat", seat), zap.String("name", name))
	r.broadcast(ServerMessage{Type: msgTurnTimeout, Payload: game.PassPayload{Seat: seat, Name: name, Timeout: true}})
	r.afterEvents(events)
}

func (r *Room) setTimerEnabled(enabled bool, by string) {
	changed := r.timerEnabled != enabled
	r.timerEnabled = enabled
	r.broadcast(ServerMessage{Type: msgTimerStatus, Payload: TimerStatusPayload{Enabled: enabled, By: by}})
	if !changed {
		return
	}
	r.logger.Info("turn timer toggled", zap.Bool("enabled", enabled), zap.String("by", by))
	r.syncTimer()
}
