package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dalmuti/internal/server/store"
)

type testServer struct {
	*httptest.Server
	hub    *Hub
	ledger *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>dalmuti</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(webDir, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "static", "app.js"), []byte("console.log(1)"), 0o644))

	logger := zaptest.NewLogger(t)
	ledger := store.NewMemory()
	hub := NewHub(testConfig(), ledger, logger)
	srv := httptest.NewServer(NewRouter(hub, ledger, webDir, logger))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})
	return &testServer{Server: srv, hub: hub, ledger: ledger}
}

func (s *testServer) createRoom(t *testing.T, body string) (*http.Response, createRoomResponse) {
	resp, err := http.Post(s.URL+"/api/rooms", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out createRoomResponse
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealthAndStatic(t *testing.T) {
	srv := newTestServer(t)

	for path, want := range map[string]string{
		"/health":        "ok",
		"/":              "<html>dalmuti</html>",
		"/static/app.js": "console.log(1)",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(body), path)
	}
}

func TestRoomsAPI(t *testing.T) {
	srv := newTestServer(t)

	resp, created := srv.createRoom(t, `{"name":"friday","maxPlayers":6}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, created.Success)
	require.NotEmpty(t, created.RoomID)

	resp, _ = srv.createRoom(t, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = srv.createRoom(t, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	var rooms []RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	resp.Body.Close()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomSummary{ID: created.RoomID, Name: "friday", MaxPlayers: 6, Status: "waiting"}, rooms[0])

	resp, err = http.Get(srv.URL + "/api/rooms/" + created.RoomID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/rooms/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResultsAPI(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/results")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `[]`, string(body))

	for round := 1; round <= 3; round++ {
		require.NoError(t, srv.ledger.RecordRound(context.Background(), store.RoundRecord{
			RoomID:   "r1",
			RoomName: "friday",
			Round:    round,
			PlayedAt: time.Date(2024, 1, 1, 20, round, 0, 0, time.UTC),
			Results:  []store.PlayerResult{{Position: 1, Name: "ann", Role: "greater_dalmuti", Score: 10, Total: 10 * round}},
		}))
	}

	resp, err = http.Get(srv.URL + "/api/results?limit=2")
	require.NoError(t, err)
	var records []store.RoundRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	resp.Body.Close()
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Round)
	assert.Equal(t, 2, records[1].Round)
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *testServer) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType, id string, payload interface{}) {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: msgType, ID: id, Payload: raw}))
}

// readUntil 持續讀取直到收到 kind 類型的訊息
func readUntil(t *testing.T, conn *websocket.Conn, kind string) wsMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == kind {
			return msg
		}
	}
}

func readAck(t *testing.T, conn *websocket.Conn) AckPayload {
	var ack AckPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, msgAck).Payload, &ack))
	return ack
}

func TestWebsocketJoinFlow(t *testing.T) {
	srv := newTestServer(t)
	_, created := srv.createRoom(t, `{"name":"friday","maxPlayers":4}`)

	ann := dial(t, srv)
	sendJSON(t, ann, actionReady, "0", struct{}{})
	ack := readAck(t, ann)
	assert.False(t, ack.Success)
	assert.Equal(t, ErrNotInRoom.Error(), ack.Message)

	sendJSON(t, ann, actionJoin, "1", JoinPayload{RoomID: "missing", Name: "ann"})
	ack = readAck(t, ann)
	assert.Equal(t, ErrRoomNotFound.Error(), ack.Message)

	sendJSON(t, ann, actionJoin, "2", JoinPayload{RoomID: created.RoomID, Name: "ann"})
	ack = readAck(t, ann)
	require.True(t, ack.Success, ack.Message)
	assert.Equal(t, "2", ack.ID)

	var roster RosterPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ann, msgRoster).Payload, &roster))
	require.Len(t, roster.Members, 1)
	assert.Equal(t, "ann", roster.Members[0].Name)

	bob := dial(t, srv)
	sendJSON(t, bob, actionJoin, "1", JoinPayload{RoomID: created.RoomID, Name: "ann"})
	assert.Equal(t, ErrDuplicateName.Error(), readAck(t, bob).Message)

	sendJSON(t, ann, "shuffle", "3", struct{}{})
	assert.Equal(t, ErrUnknownAction.Error(), readAck(t, ann).Message)

	sendJSON(t, ann, actionChat, "4", ChatPayload{Text: "hi"})
	var chat ChatMessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, ann, msgChat).Payload, &chat))
	assert.Equal(t, ChatMessagePayload{Name: "ann", Text: "hi"}, chat)

	require.NoError(t, ann.WriteMessage(websocket.TextMessage, []byte("{oops")))
	var errMsg ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ann, msgError).Payload, &errMsg))
	assert.Equal(t, "malformed message", errMsg.Message)

	// 唯一的連線中斷後，大廳房間清空並關閉
	require.NoError(t, ann.Close())
	assert.Eventually(t, func() bool {
		_, ok := srv.hub.RoomByID(created.RoomID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateRoomBodyIsJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewBufferString(`{"name":"x","passcode":"pw"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var out createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	room, ok := srv.hub.RoomByID(out.RoomID)
	require.True(t, ok)
	assert.True(t, room.Summary().Locked)
	assert.Equal(t, 8, room.Summary().MaxPlayers)
}

func TestResultsWithoutLedger(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(testConfig(), nil, logger)
	t.Cleanup(hub.Shutdown)
	router := NewRouter(hub, nil, t.TempDir(), logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
