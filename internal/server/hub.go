package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dalmuti/internal/server/store"
)

var ErrEmptyRoomName = errors.New("room name must not be empty")

// Hub 管理所有存活的房間
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	cfg    RoomConfig
	ledger store.Ledger
	logger *zap.Logger
}

func NewHub(cfg RoomConfig, ledger store.Ledger, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		ledger: ledger,
		logger: logger,
	}
}

// CreateRoom 建立房間，maxPlayers 超出可玩範圍時改用最大人數
func (h *Hub) CreateRoom(name string, maxPlayers int, passcode string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyRoomName
	}
	if maxPlayers < h.cfg.Rules.MinPlayers() || maxPlayers > h.cfg.Rules.MaxPlayers() {
		maxPlayers = h.cfg.Rules.MaxPlayers()
	}
	var passHash []byte
	if passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		passHash = hash
	}

	id := uuid.NewString()
	room := newRoom(id, name, maxPlayers, passHash, h.cfg, h, h.ledger, h.logger)
	h.mu.Lock()
	h.rooms[id] = room
	h.mu.Unlock()
	room.start()
	h.logger.Info("room created", zap.String("room", id), zap.String("name", name), zap.Int("maxPlayers", maxPlayers), zap.Bool("locked", passHash != nil))
	return room, nil
}

func (h *Hub) RoomByID(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	return room, ok
}

// Rooms 依名稱排序列出所有存活的房間
func (h *Hub) Rooms() []RoomSummary {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (h *Hub) removeRoom(id string) {
	h.mu.Lock()
	delete(h.rooms, id)
	h.mu.Unlock()
}

// Shutdown 關閉所有房間
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()
	for _, room := range rooms {
		room.submit(command{action: actionShutdown})
	}
}
