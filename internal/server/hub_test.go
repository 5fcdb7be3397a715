package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dalmuti/internal/server/store"
)

func newTestHub(t *testing.T) *Hub {
	hub := NewHub(testConfig(), store.NewMemory(), zaptest.NewLogger(t))
	t.Cleanup(hub.Shutdown)
	return hub
}

func TestCreateRoomClampsCapacity(t *testing.T) {
	hub := newTestHub(t)

	cases := []struct {
		requested int
		want      int
	}{
		{requested: 5, want: 5},
		{requested: 4, want: 4},
		{requested: 0, want: 8},
		{requested: 3, want: 8},
		{requested: 12, want: 8},
	}
	for _, tc := range cases {
		room, err := hub.CreateRoom("table", tc.requested, "")
		require.NoError(t, err)
		assert.Equal(t, tc.want, room.Summary().MaxPlayers, "要求 %d 人", tc.requested)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	hub := newTestHub(t)

	_, err := hub.CreateRoom("   ", 5, "")
	assert.ErrorIs(t, err, ErrEmptyRoomName)

	room, err := hub.CreateRoom(" locked ", 5, "pw")
	require.NoError(t, err)
	summary := room.Summary()
	assert.Equal(t, "locked", summary.Name)
	assert.True(t, summary.Locked)
	assert.Equal(t, "waiting", summary.Status)

	got, ok := hub.RoomByID(room.ID())
	require.True(t, ok)
	assert.Same(t, room, got)
	_, ok = hub.RoomByID("missing")
	assert.False(t, ok)
}

func TestRoomsSortedByName(t *testing.T) {
	hub := newTestHub(t)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := hub.CreateRoom(name, 6, "")
		require.NoError(t, err)
	}
	rooms := hub.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].Name)
	assert.Equal(t, "bravo", rooms[1].Name)
	assert.Equal(t, "charlie", rooms[2].Name)
}

func TestJoinThroughRunLoop(t *testing.T) {
	hub := newTestHub(t)
	room, err := hub.CreateRoom("table", 4, "")
	require.NoError(t, err)

	ann := newFakeConn("ann")
	require.NoError(t, room.Join(ann, "ann", "", "1"))
	assert.ErrorIs(t, room.Join(newFakeConn("other"), "ann", "", "2"), ErrDuplicateName)
	assert.Eventually(t, func() bool {
		return room.Summary().PlayerCount == 1
	}, time.Second, 5*time.Millisecond)

	ack := ann.lastAck()
	assert.True(t, ack.Success)
	assert.Equal(t, "1", ack.ID)
}

func TestClosedRoomLeavesHub(t *testing.T) {
	hub := newTestHub(t)
	room, err := hub.CreateRoom("table", 4, "")
	require.NoError(t, err)

	conn := newFakeConn("ann")
	require.NoError(t, room.Join(conn, "ann", "", ""))
	room.Disconnect(conn)

	assert.Eventually(t, func() bool {
		_, ok := hub.RoomByID(room.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, room.Join(newFakeConn("bob"), "bob", "", ""), ErrRoomClosed)
}

func TestShutdownClosesRooms(t *testing.T) {
	hub := NewHub(testConfig(), store.NewMemory(), zaptest.NewLogger(t))
	room, err := hub.CreateRoom("table", 4, "")
	require.NoError(t, err)
	conn := newFakeConn("ann")
	require.NoError(t, room.Join(conn, "ann", "", ""))

	hub.Shutdown()
	assert.Eventually(t, func() bool {
		return len(hub.Rooms()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, conn.ofType(msgGameAborted), 1)
}
