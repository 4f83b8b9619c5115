package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialManager(t *testing.T, cm *ConnectionManager, userID, room string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cm.Upgrade(w, r, userID, room)
		require.NoError(t, err)
		conn.StartPumps()
	}))
	t.Cleanup(server.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestBroadcastToRoom(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	inRoom := dialManager(t, cm, "aziz", "ABC123")
	alsoInRoom := dialManager(t, cm, "malika", "ABC123")
	elsewhere := dialManager(t, cm, "bobur", "ZZZ999")

	cm.BroadcastToRoom("ABC123", map[string]string{"hello": "room"})

	for _, conn := range []*websocket.Conn{inRoom, alsoInRoom} {
		frame := readFrame(t, conn)
		assert.Equal(t, "room", frame["hello"])
	}

	elsewhere.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var v map[string]any
	assert.Error(t, elsewhere.ReadJSON(&v), "other rooms receive nothing")
}

func TestBroadcastToUser(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	target := dialManager(t, cm, "aziz", "ABC123")
	other := dialManager(t, cm, "malika", "ABC123")

	cm.BroadcastToUser("ABC123", "aziz", map[string]string{"only": "you"})

	frame := readFrame(t, target)
	assert.Equal(t, "you", frame["only"])

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var v map[string]any
	assert.Error(t, other.ReadJSON(&v), "other users receive nothing")
}

func TestStats(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	dialManager(t, cm, "aziz", "ABC123")
	dialManager(t, cm, "malika", "ABC123")

	require.Eventually(t, func() bool {
		stats := cm.Stats()
		return stats["total_connections"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	stats := cm.Stats()
	assert.Equal(t, 1, stats["active_rooms"])
}
