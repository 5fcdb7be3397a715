package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dalmuti/internal/game"
	"dalmuti/internal/server/store"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomClosed     = errors.New("room closed")
	ErrRoomFull       = errors.New("room is full")
	ErrDuplicateName  = errors.New("name already taken in this room")
	ErrGameInProgress = errors.New("game in progress")
	ErrBadPasscode    = errors.New("wrong passcode")
	ErrNotInRoom      = errors.New("not in a room")
	ErrAlreadyJoined  = errors.New("already in a room")
	ErrEmptyName      = errors.New("name must not be empty")
	ErrNotSeated      = errors.New("not seated in this game")
	ErrEmptyChat      = errors.New("empty chat message")
	ErrUnknownAction  = errors.New("unknown action")
)

const (
	actionJoin       = "join"
	actionReady      = "ready"
	actionUnready    = "unready"
	actionPlay       = "play"
	actionPass       = "pass"
	actionExchange   = "exchange"
	actionRevolution = "revolution"
	actionLeave      = "leave_game"
	actionChat       = "chat"
	actionDisconnect = "disconnect"
	actionNextRound  = "next_round"
	actionAbandon    = "abandon"
	actionShutdown   = "shutdown"

	maxNameLength = 24
	maxChatLength = 300
	commandBuffer = 64
)

// Sender 將訊息送往單一客戶端連線
type Sender interface {
	ID() string
	Send(msg ServerMessage)
}

// RoomConfig 保存所有房間共用的節奏與規則設定
type RoomConfig struct {
	TurnDuration time.Duration
	RoundDelay   time.Duration
	AbandonAfter time.Duration
	TimerEnabled bool
	Rules        game.Rules
	Seed         func() int64
}

func (c RoomConfig) seed() int64 {
	if c.Seed != nil {
		return c.Seed()
	}
	return time.Now().UnixNano()
}

type member struct {
	name      string
	conn      Sender
	ready     bool
	connected bool
}

type command struct {
	action    string
	conn      Sender
	requestID string
	name      string
	passcode  string
	cards     []game.Card
	declare   bool
	text      string
	game      *game.Game
	reply     chan error
}

// Room 負責管理單一牌桌。channel 以下的狀態只由 run 迴圈的 goroutine 存取
type Room struct {
	id       string
	name     string
	capacity int
	passHash []byte
	cfg      RoomConfig
	hub      *Hub
	ledger   store.Ledger
	logger   *zap.Logger

	commands  chan command
	done      chan struct{}
	closeOnce sync.Once

	members       []*member
	match         *game.Match
	game          *game.Game
	timerEnabled  bool
	turnTimer     *time.Timer
	timerC        <-chan time.Time
	timerSeat     int
	timerSeq      int
	timerDeadline time.Time
	abandonTimer  *time.Timer
	closed        bool

	summaryMu sync.Mutex
	summary   RoomSummary
}

func newRoom(id, name string, capacity int, passHash []byte, cfg RoomConfig, hub *Hub, ledger store.Ledger, logger *zap.Logger) *Room {
	r := &Room{
		id:           id,
		name:         name,
		capacity:     capacity,
		passHash:     passHash,
		cfg:          cfg,
		hub:          hub,
		ledger:       ledger,
		logger:       logger.With(zap.String("room", id)),
		commands:     make(chan command, commandBuffer),
		done:         make(chan struct{}),
		match:        game.NewMatch(cfg.Rules, cfg.seed()),
		timerEnabled: cfg.TimerEnabled,
	}
	r.publishSummary()
	return r
}

func (r *Room) ID() string {
	return r.id
}

// start 啟動 run 迴圈，逾時仍無人加入的空房間會自行關閉
func (r *Room) start() {
	r.scheduleAbandon(nil)
	go r.run()
}

func (r *Room) run() {
	for {
		select {
		case <-r.done:
			return
		case cmd := <-r.commands:
			r.handle(cmd)
		case <-r.timerC:
			r.onTurnTimer()
			r.publishSummary()
		}
	}
}

func (r *Room) submit(cmd command) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.commands <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// Join 以 name 將連線加入房間；遊戲進行中且 name 已有座位時改為重新綁定
func (r *Room) Join(conn Sender, name, passcode, requestID string) error {
	reply := make(chan error, 1)
	if !r.submit(command{action: actionJoin, conn: conn, name: name, passcode: passcode, requestID: requestID, reply: reply}) {
		return ErrRoomClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Disconnect 通知房間此連線已中斷
func (r *Room) Disconnect(conn Sender) {
	r.submit(command{action: actionDisconnect, conn: conn})
}

func (r *Room) Summary() RoomSummary {
	r.summaryMu.Lock()
	defer r.summaryMu.Unlock()
	return r.summary
}

func (r *Room) publishSummary() {
	status := "waiting"
	if r.game != nil {
		status = "playing"
	}
	r.summaryMu.Lock()
	r.summary = RoomSummary{
		ID:          r.id,
		Name:        r.name,
		PlayerCount: len(r.members),
		MaxPlayers:  r.capacity,
		Status:      status,
		Locked:      r.passHash != nil,
	}
	r.summaryMu.Unlock()
}

func (r *Room) handle(cmd command) {
	if r.closed {
		if cmd.reply != nil {
			cmd.reply <- ErrRoomClosed
		}
		return
	}
	switch cmd.action {
	case actionJoin:
		err := r.handleJoin(cmd)
		if err != nil {
			r.ack(cmd, err)
		}
		cmd.reply <- err
	case actionReady:
		r.failed(cmd, r.handleReady(cmd, true))
	case actionUnready:
		r.failed(cmd, r.handleReady(cmd, false))
	case actionPlay, actionPass, actionExchange, actionRevolution:
		r.failed(cmd, r.handleGameAction(cmd))
	case actionLeave:
		r.failed(cmd, r.handleLeave(cmd))
	case actionChat:
		r.failed(cmd, r.handleChat(cmd))
	case actionDisconnect:
		r.handleDisconnect(cmd)
	case actionNextRound:
		r.handleNextRound(cmd)
	case actionAbandon:
		r.handleAbandon(cmd)
	case actionShutdown:
		r.broadcast(ServerMessage{Type: msgGameAborted, Payload: ErrorPayload{Message: "server shutting down"}})
		r.close()
		return
	default:
		r.failed(cmd, ErrUnknownAction)
	}
	r.publishSummary()
}

// ack 回覆請求。成功由各 handler 在廣播前自行回覆，失敗由 handle 統一回覆
func (r *Room) ack(cmd command, err error) {
	if cmd.conn == nil {
		return
	}
	payload := AckPayload{ID: cmd.requestID, Action: cmd.action, Success: err == nil}
	if err != nil {
		payload.Message = err.Error()
	}
	cmd.conn.Send(ServerMessage{Type: msgAck, Payload: payload})
}

func (r *Room) failed(cmd command, err error) {
	if err != nil {
		r.ack(cmd, err)
	}
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

func (r *Room) memberByConn(conn Sender) *member {
	if conn == nil {
		return nil
	}
	for _, m := range r.members {
		if m.conn != nil && m.conn.ID() == conn.ID() {
			return m
		}
	}
	return nil
}

func (r *Room) memberByName(name string) *member {
	for _, m := range r.members {
		if m.name == name {
			return m
		}
	}
	return nil
}

func (r *Room) removeMember(target *member) {
	for i, m := range r.members {
		if m == target {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

func (r *Room) connectedCount() int {
	n := 0
	for _, m := range r.members {
		if m.connected {
			n++
		}
	}
	return n
}

func (r *Room) handleJoin(cmd command) error {
	name := normalizeName(cmd.name)
	if name == "" {
		return ErrEmptyName
	}
	if r.passHash != nil {
		if err := bcrypt.CompareHashAndPassword(r.passHash, []byte(cmd.passcode)); err != nil {
			return ErrBadPasscode
		}
	}
	if r.memberByConn(cmd.conn) != nil {
		return ErrAlreadyJoined
	}

	if m := r.memberByName(name); m != nil {
		if r.game == nil || r.game.SeatOf(name) < 0 {
			return ErrDuplicateName
		}
		return r.rebind(cmd, m)
	}
	if r.game != nil {
		return ErrGameInProgress
	}
	if len(r.members) >= r.capacity {
		return ErrRoomFull
	}

	r.members = append(r.members, &member{name: name, conn: cmd.conn, connected: true})
	r.cancelAbandon()
	r.ack(cmd, nil)
	r.logger.Info("player joined", zap.String("name", name), zap.Int("members", len(r.members)))
	r.broadcastRoster()
	return nil
}

// rebind 將座位綁到新連線，並補送接續遊戲所需的資訊
func (r *Room) rebind(cmd command, m *member) error {
	old := m.conn
	m.conn = cmd.conn
	m.connected = true
	r.cancelAbandon()
	r.ack(cmd, nil)
	if old != nil && old.ID() != cmd.conn.ID() {
		old.Send(ServerMessage{Type: msgResetClient, Payload: InterruptPayload{RoomID: r.id, Name: m.name, Reason: "connected elsewhere"}})
	}
	r.logger.Info("player reconnected", zap.String("name", m.name))
	r.broadcastRoster()

	seat := r.game.SeatOf(m.name)
	events, err := r.game.Resume(seat)
	if err != nil {
		r.logger.Warn("resume failed", zap.String("name", m.name), zap.Error(err))
		return nil
	}
	r.dispatch(events)
	if r.turnTimer != nil {
		m.conn.Send(r.turnTimerMessage())
	}
	return nil
}

func (r *Room) handleReady(cmd command, ready bool) error {
	m := r.memberByConn(cmd.conn)
	if m == nil {
		return ErrNotInRoom
	}
	if r.game != nil {
		return game.ErrWrongPhase
	}
	m.ready = ready
	r.ack(cmd, nil)
	r.broadcastRoster()
	if ready {
		r.maybeStart()
	}
	return nil
}

// maybeStart 在所有成員都在線、已準備且人數可玩時開始回合
func (r *Room) maybeStart() {
	if r.game != nil || r.closed || !r.match.Rules().Supports(len(r.members)) {
		return
	}
	for _, m := range r.members {
		if !m.ready || !m.connected {
			return
		}
	}
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.name
	}
	g, events, err := r.match.StartRound(names)
	if err != nil {
		r.abortRound(err)
		return
	}
	r.game = g
	seats := make([]string, len(g.Seats))
	for i, s := range g.Seats {
		seats[i] = s.Name + ":" + s.Role.String()
	}
	r.logger.Info("round started", zap.Int("round", g.Round), zap.Strings("seats", seats), zap.String("phase", string(g.Phase)))
	r.broadcastRoster()
	r.afterEvents(events)
}

// abortRound 放棄無法建立的回合，所有人回到大廳
func (r *Room) abortRound(err error) {
	r.logger.Error("round aborted", zap.Error(err))
	r.cancelTurnTimer()
	r.game = nil
	for _, m := range r.members {
		m.ready = false
	}
	r.broadcast(ServerMessage{Type: msgGameAborted, Payload: ErrorPayload{Message: err.Error()}})
	r.broadcastRoster()
}

func (r *Room) handleGameAction(cmd command) error {
	m := r.memberByConn(cmd.conn)
	if m == nil {
		return ErrNotInRoom
	}
	if r.game == nil {
		return game.ErrWrongPhase
	}
	seat := r.game.SeatOf(m.name)
	if seat < 0 {
		return ErrNotSeated
	}

	var (
		events []game.Event
		err    error
	)
	switch cmd.action {
	case actionPlay:
		events, err = r.game.Play(seat, cmd.cards)
	case actionPass:
		events, err = r.game.Pass(seat)
	case actionExchange:
		events, err = r.game.GiveBack(seat, cmd.cards)
	case actionRevolution:
		events, err = r.game.ChooseRevolution(seat, cmd.declare)
	}
	if err != nil {
		if !game.IsRejection(err) {
			r.logger.Warn("unexpected game error", zap.String("action", cmd.action), zap.String("name", m.name), zap.Error(err))
		}
		return err
	}
	r.ack(cmd, nil)
	r.afterEvents(events)
	return nil
}

// afterEvents 送出遊戲事件，並依新階段調整出牌計時與回合節奏
func (r *Room) afterEvents(events []game.Event) {
	r.dispatch(events)
	if r.game == nil {
		return
	}
	if r.game.Phase == game.PhaseScoring {
		r.onRoundScored()
		return
	}
	r.syncTimer()
}

func (r *Room) onRoundScored() {
	g := r.game
	r.cancelTurnTimer()
	r.logger.Info("round finished", zap.Int("round", g.Round), zap.Ints("finishOrder", g.FinishOrder))
	r.recordRound(g)
	time.AfterFunc(r.cfg.RoundDelay, func() {
		r.submit(command{action: actionNextRound, game: g})
	})
}

func (r *Room) handleNextRound(cmd command) {
	if r.game == nil || r.game != cmd.game {
		r.logger.Debug("round delay no longer applies")
		return
	}
	r.game = nil
	if ev, over := r.match.CompleteRound(); over {
		r.logger.Info("match finished", zap.Int("rounds", ev.Payload.(game.MatchEndPayload).Rounds))
		r.broadcast(ServerMessage{Type: string(ev.Kind), Payload: ev.Payload})
		for _, m := range r.members {
			m.ready = false
		}
	}
	r.pruneDisconnected()
	if r.closeIfEmpty() {
		return
	}
	r.broadcastRoster()
	r.maybeStart()
}

func (r *Room) handleLeave(cmd command) error {
	m := r.memberByConn(cmd.conn)
	if m == nil {
		return ErrNotInRoom
	}
	r.ack(cmd, nil)
	r.removeMember(m)
	if r.game != nil {
		r.resetMatch(m.name)
	}
	cmd.conn.Send(ServerMessage{Type: msgResetClient, Payload: InterruptPayload{RoomID: r.id, Name: m.name, Reason: "left the room"}})
	r.logger.Info("player left", zap.String("name", m.name))
	if r.closeIfEmpty() {
		return nil
	}
	r.broadcastRoster()
	return nil
}

// resetMatch 因有人離座而放棄目前的遊戲，排名與回合數重新計算
func (r *Room) resetMatch(leaver string) {
	r.cancelTurnTimer()
	r.cancelAbandon()
	r.game = nil
	r.match = game.NewMatch(r.cfg.Rules, r.cfg.seed())
	for _, m := range r.members {
		m.ready = false
	}
	r.pruneDisconnected()
	r.logger.Info("game interrupted", zap.String("leaver", leaver))
	r.broadcast(ServerMessage{Type: msgGameInterrupted, Payload: InterruptPayload{RoomID: r.id, Name: leaver, Reason: "player left mid-game"}})
}

func (r *Room) handleDisconnect(cmd command) {
	m := r.memberByConn(cmd.conn)
	if m == nil {
		return
	}
	if r.game == nil {
		r.removeMember(m)
		r.logger.Info("player disconnected from lobby", zap.String("name", m.name))
		if r.closeIfEmpty() {
			return
		}
		r.broadcastRoster()
		return
	}
	m.connected = false
	m.conn = nil
	r.logger.Info("player disconnected mid-game", zap.String("name", m.name))
	r.broadcastRoster()
	if r.connectedCount() == 0 {
		r.scheduleAbandon(r.game)
	}
}

func (r *Room) pruneDisconnected() {
	kept := r.members[:0]
	for _, m := range r.members {
		if m.connected {
			kept = append(kept, m)
		}
	}
	r.members = kept
}

func (r *Room) handleChat(cmd command) error {
	m := r.memberByConn(cmd.conn)
	if m == nil {
		return ErrNotInRoom
	}
	text := strings.TrimSpace(cmd.text)
	if text == "" {
		return ErrEmptyChat
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}
	r.ack(cmd, nil)
	switch strings.ToLower(text) {
	case "!timer on":
		r.setTimerEnabled(true, m.name)
	case "!timer off":
		r.setTimerEnabled(false, m.name)
	default:
		r.broadcast(ServerMessage{Type: msgChat, Payload: ChatMessagePayload{Name: m.name, Text: text}})
	}
	return nil
}

func (r *Room) scheduleAbandon(g *game.Game) {
	r.cancelAbandon()
	r.abandonTimer = time.AfterFunc(r.cfg.AbandonAfter, func() {
		r.submit(command{action: actionAbandon, game: g})
	})
}

func (r *Room) cancelAbandon() {
	if r.abandonTimer != nil {
		r.abandonTimer.Stop()
		r.abandonTimer = nil
	}
}

func (r *Room) handleAbandon(cmd command) {
	if r.game != cmd.game || r.connectedCount() > 0 {
		return
	}
	r.logger.Info("room abandoned", zap.Int("members", len(r.members)))
	r.close()
}

func (r *Room) closeIfEmpty() bool {
	if len(r.members) > 0 {
		return false
	}
	r.close()
	return true
}

func (r *Room) close() {
	r.closeOnce.Do(func() {
		r.closed = true
		r.cancelTurnTimer()
		r.cancelAbandon()
		r.game = nil
		if r.hub != nil {
			r.hub.removeRoom(r.id)
		}
		close(r.done)
		r.logger.Info("room closed")
	})
}

func (r *Room) recordRound(g *game.Game) {
	if r.ledger == nil {
		return
	}
	rec := store.RoundRecord{
		RoomID:     r.id,
		RoomName:   r.name,
		Round:      g.Round,
		Revolution: g.Revolution,
		PlayedAt:   time.Now().UTC(),
	}
	for _, res := range g.Results {
		rec.Results = append(rec.Results, store.PlayerResult{
			Position: res.Position,
			Name:     res.Name,
			Role:     res.Role.String(),
			Score:    res.Score,
			Total:    res.Total,
		})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.ledger.RecordRound(ctx, rec); err != nil {
			r.logger.Warn("record round failed", zap.Error(err))
		}
	}()
}

// dispatch 經由名單轉送遊戲事件，確保訊息送到座位目前的連線
func (r *Room) dispatch(events []game.Event) {
	for _, ev := range events {
		msg := ServerMessage{Type: string(ev.Kind), Payload: ev.Payload}
		if ev.Broadcast() {
			r.broadcast(msg)
			continue
		}
		for _, seat := range ev.Seats {
			r.sendToSeat(seat, msg)
		}
	}
}

func (r *Room) sendToSeat(seat int, msg ServerMessage) {
	if r.game == nil || seat < 0 || seat >= len(r.game.Seats) {
		return
	}
	m := r.memberByName(r.game.Seats[seat].Name)
	if m == nil || !m.connected || m.conn == nil {
		return
	}
	m.conn.Send(msg)
}

func (r *Room) broadcast(msg ServerMessage) {
	for _, m := range r.members {
		if m.connected && m.conn != nil {
			m.conn.Send(msg)
		}
	}
}

func (r *Room) broadcastRoster() {
	payload := RosterPayload{
		RoomID:       r.id,
		Name:         r.name,
		MaxPlayers:   r.capacity,
		Members:      make([]MemberInfo, len(r.members)),
		InGame:       r.game != nil,
		Round:        r.match.Round,
		TimerEnabled: r.timerEnabled,
	}
	for i, m := range r.members {
		payload.Members[i] = MemberInfo{Name: m.name, Ready: m.ready, Connected: m.connected}
	}
	r.broadcast(ServerMessage{Type: msgRoster, Payload: payload})
}
