package battle_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
)

var (
	host  = identity.User{UID: "host-1", Name: "Aziz"}
	guest = identity.User{UID: "guest-1", Name: "Malika"}
)

func newTestCoordinator(t *testing.T) (*battle.Coordinator, *store.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	co := battle.NewCoordinator(st, battle.WithClock(clock))
	return co, st, clock
}

func readRoom(t *testing.T, st store.Store, code string) *models.Room {
	t.Helper()
	raw, err := st.Read(context.Background(), store.RoomPath(code))
	require.NoError(t, err)
	var room models.Room
	require.NoError(t, json.Unmarshal(raw, &room))
	return &room
}

// waitEvent drains the session's event stream until an event of the wanted
// type arrives.
func waitEvent(t *testing.T, sess *battle.Session, want battle.EventType) battle.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestCreateRoom(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{Difficulty: "normal"})
	require.NoError(t, err)
	require.Len(t, room.Code, 6)

	stored := readRoom(t, st, room.Code)
	assert.Equal(t, models.RoomStatusWaiting, stored.Status)
	assert.Equal(t, host.UID, stored.HostID)
	require.Len(t, stored.Players, 1)
	assert.Equal(t, host.Name, stored.Players[host.UID].Name)
	assert.NotEmpty(t, stored.Text)
	assert.Equal(t, 100, stored.Players[host.UID].Accuracy)
}

func TestJoinRoom(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{Difficulty: "easy"})
	require.NoError(t, err)

	joined, err := co.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)

	stored := readRoom(t, st, room.Code)
	assert.Equal(t, models.RoomStatusWaiting, stored.Status)
	require.Len(t, stored.Players, 2)
	assert.Equal(t, guest.Name, stored.Players[guest.UID].Name)
}

func TestJoinRoom_NotFound(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := co.JoinRoom(ctx, "NOPE12", guest)
	assert.ErrorIs(t, err, battle.ErrRoomNotFound)

	_, err = st.Read(ctx, store.RoomPath("NOPE12"))
	assert.ErrorIs(t, err, store.ErrNotFound, "failed join must not write")
}

func TestJoinRoom_RaceInProgress(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)

	for _, status := range []models.RoomStatus{models.RoomStatusStarting, models.RoomStatusRacing, models.RoomStatusFinished} {
		require.NoError(t, st.Update(ctx, store.RoomPath(room.Code), map[string]any{"status": status}))

		_, err := co.JoinRoom(ctx, room.Code, guest)
		assert.ErrorIs(t, err, battle.ErrRaceInProgress, "status %s", status)

		stored := readRoom(t, st, room.Code)
		assert.Len(t, stored.Players, 1, "failed join must not write")
	}
}

func TestJoinRoom_RejoinResetsProgress(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)
	_, err = co.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, store.PlayerPath(room.Code, guest.UID), map[string]any{
		"progress": 60, "wpm": 80,
	}))

	_, err = co.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)

	stored := readRoom(t, st, room.Code)
	assert.Equal(t, 0, stored.Players[guest.UID].Progress)
	assert.Equal(t, 0, stored.Players[guest.UID].WPM)
}

func TestLeaveRoom_NonHost(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)
	_, err = co.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)

	require.NoError(t, co.LeaveRoom(ctx, room.Code, guest.UID, false))

	stored := readRoom(t, st, room.Code)
	require.Len(t, stored.Players, 1)
	_, remains := stored.Players[host.UID]
	assert.True(t, remains)
}

func TestLeaveRoom_HostDeletesRoom(t *testing.T) {
	co, st, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)

	require.NoError(t, co.LeaveRoom(ctx, room.Code, host.UID, true))

	_, err = st.Read(ctx, store.RoomPath(room.Code))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitProgress_OnlyWhileRacing(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)

	_, err = co.SubmitProgress(ctx, room, host.UID, "olma")
	assert.ErrorIs(t, err, battle.ErrNotRacing)
}

func TestSubmitProgress_WritesOwnEntryOnly(t *testing.T) {
	co, st, clock := newTestCoordinator(t)
	ctx := context.Background()

	room, err := co.CreateRoom(ctx, host, models.RaceSettings{})
	require.NoError(t, err)
	_, err = co.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)

	start := clock.Now().UnixMilli()
	require.NoError(t, st.Update(ctx, store.RoomPath(room.Code), map[string]any{
		"status": models.RoomStatusRacing, "startTime": start,
	}))
	racing := readRoom(t, st, room.Code)

	clock.Advance(30 * time.Second)
	half := racing.Text[:len(racing.Text)/2]
	upd, err := co.SubmitProgress(ctx, racing, guest.UID, half)
	require.NoError(t, err)
	assert.Greater(t, upd.Progress, 0)
	assert.Greater(t, upd.WPM, 0)
	assert.False(t, upd.Finished)

	stored := readRoom(t, st, room.Code)
	assert.Equal(t, upd.Progress, stored.Players[guest.UID].Progress)
	assert.Equal(t, 0, stored.Players[host.UID].Progress, "must not touch other players")
}
