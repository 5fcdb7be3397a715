package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dalmuti/internal/server/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	Passcode   string `json:"passcode,omitempty"`
}

type createRoomResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

type api struct {
	hub    *Hub
	ledger store.Ledger
	logger *zap.Logger
}

// NewRouter 掛上大廳 API、WebSocket 端點與 webDir 下的靜態檔案
func NewRouter(hub *Hub, ledger store.Ledger, webDir string, logger *zap.Logger) http.Handler {
	a := &api{hub: hub, ledger: ledger, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", a.listRooms)
		r.Post("/rooms", a.createRoom)
		r.Get("/rooms/{roomID}", a.getRoom)
		r.Get("/results", a.recentResults)
	})
	r.Get("/ws", a.serveWS)

	staticDir := filepath.Join(webDir, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		index := filepath.Join(webDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, req)
			return
		}
		http.ServeFile(w, req, index)
	})
	return r
}

func (a *api) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.Rooms())
}

func (a *api) getRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := a.hub.RoomByID(chi.URLParam(r, "roomID"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrRoomNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, room.Summary())
}

func (a *api) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := a.hub.CreateRoom(req.Name, req.MaxPlayers, req.Passcode)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEmptyRoomName) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{Success: true, RoomID: room.ID()})
}

func (a *api) recentResults(w http.ResponseWriter, r *http.Request) {
	if a.ledger == nil {
		writeJSON(w, http.StatusOK, []store.RoundRecord{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.ledger.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error("list results", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if records == nil {
		records = []store.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(conn, a.hub, a.logger)
	go client.WritePump()
	client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
