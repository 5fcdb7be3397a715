package server

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client 封裝一條 WebSocket 連線，同一時間至多加入一個房間
type Client struct {
	id        string
	conn      *websocket.Conn
	hub       *Hub
	room      atomic.Pointer[Room]
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func NewClient(conn *websocket.Conn, hub *Hub, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn", id)),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send 將訊息排入寫出佇列，跟不上的客戶端會被斷線
func (c *Client) Send(msg ServerMessage) {
	if msg.Type == msgResetClient {
		c.detach(msg.Payload)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("send buffer full, dropping client")
		go c.close()
	}
}

func (c *Client) ReadPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Send(ServerMessage{Type: msgError, Payload: ErrorPayload{Message: "malformed message"}})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	if msg.Type == actionJoin {
		c.join(msg)
		return
	}

	cmd := command{action: msg.Type, conn: c, requestID: msg.ID}
	switch msg.Type {
	case actionReady, actionUnready, actionPass, actionLeave:
	case actionPlay, actionExchange:
		var payload CardsPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.ack(msg, err)
			return
		}
		cmd.cards = payload.Cards
	case actionRevolution:
		var payload RevolutionChoicePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.ack(msg, err)
			return
		}
		cmd.declare = payload.Declare
	case actionChat:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.ack(msg, err)
			return
		}
		cmd.text = payload.Text
	default:
		c.ack(msg, ErrUnknownAction)
		return
	}

	room := c.room.Load()
	if room == nil {
		c.ack(msg, ErrNotInRoom)
		return
	}
	if !room.submit(cmd) {
		c.room.CompareAndSwap(room, nil)
		c.ack(msg, ErrRoomClosed)
		return
	}
	if msg.Type == actionLeave {
		c.room.CompareAndSwap(room, nil)
	}
}

func (c *Client) join(msg ClientMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.ack(msg, err)
		return
	}
	if c.room.Load() != nil {
		c.ack(msg, ErrAlreadyJoined)
		return
	}
	room, ok := c.hub.RoomByID(payload.RoomID)
	if !ok {
		c.ack(msg, ErrRoomNotFound)
		return
	}
	// 由房間回覆加入結果，房間已關閉時才由這裡回覆
	err := room.Join(c, payload.Name, payload.Passcode, msg.ID)
	switch {
	case err == nil:
		c.room.Store(room)
	case errors.Is(err, ErrRoomClosed):
		c.ack(msg, err)
	}
}

// detach 在房間不再認得此連線時清除房間指標，之後即可重新加入
func (c *Client) detach(payload interface{}) {
	p, ok := payload.(InterruptPayload)
	if !ok {
		return
	}
	if room := c.room.Load(); room != nil && room.ID() == p.RoomID {
		c.room.CompareAndSwap(room, nil)
	}
}

func (c *Client) ack(msg ClientMessage, err error) {
	payload := AckPayload{ID: msg.ID, Action: msg.Type, Success: err == nil}
	if err != nil {
		payload.Message = err.Error()
	}
	c.Send(ServerMessage{Type: msgAck, Payload: payload})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		if room := c.room.Swap(nil); room != nil {
			room.Disconnect(c)
		}
	})
}
