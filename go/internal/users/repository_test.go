package users

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
)

func newTestRepo(t *testing.T) (*Repository, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewRepository(store.NewMemoryStore(), clock), clock
}

func TestSignIn_CreatesProfile(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()

	user, err := repo.SignIn(ctx, identity.User{UID: "u1", Name: "Aziz", Email: "aziz@example.com"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UnixMilli(), user.RegisteredAt)
	assert.Equal(t, 0, user.Score)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Aziz", got.Name)
}

func TestSignIn_RefreshesChangedIdentity(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignIn(ctx, identity.User{UID: "u1", Name: "Aziz"})
	require.NoError(t, err)

	user, err := repo.SignIn(ctx, identity.User{UID: "u1", Name: "Azizbek", PhotoURL: "https://img/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "Azizbek", user.Name)
	assert.Equal(t, "https://img/x.png", user.PhotoURL)
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecordGame_Aggregates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignIn(ctx, identity.User{UID: "u1", Name: "Aziz"})
	require.NoError(t, err)

	user, err := repo.RecordGame(ctx, "u1", models.GameHistory{
		WPM: 80, Accuracy: 96, Mode: "time 30", Score: 40, Difficulty: "normal",
	})
	require.NoError(t, err)
	assert.Equal(t, 40, user.Score)
	assert.Equal(t, 1, user.GamesPlayed)
	assert.Equal(t, 80, user.AvgWPM)
	assert.Equal(t, 80, user.MaxWPM)
	assert.Equal(t, 96, user.Accuracy)
	assert.Equal(t, 30, user.TotalTime)
	require.Len(t, user.GameHistory, 1)

	user, err = repo.RecordGame(ctx, "u1", models.GameHistory{
		WPM: 60, Accuracy: 90, Mode: "time 60", Score: 30, Difficulty: "normal",
	})
	require.NoError(t, err)
	assert.Equal(t, 70, user.Score)
	assert.Equal(t, 2, user.GamesPlayed)
	assert.Equal(t, 70, user.AvgWPM, "moving average of 80 and 60")
	assert.Equal(t, 80, user.MaxWPM, "max survives a slower game")
	assert.Equal(t, 93, user.Accuracy)
	assert.Equal(t, 90, user.TotalTime)
	require.Len(t, user.GameHistory, 2)
}

func TestSetPresence(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SignIn(ctx, identity.User{UID: "u1", Name: "Aziz"})
	require.NoError(t, err)

	require.NoError(t, repo.SetPresence(ctx, "u1", models.PresenceOnline))
	user, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOnline, user.Status)

	require.NoError(t, repo.SetPresence(ctx, "u1", models.PresenceOffline))
	user, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOffline, user.Status)
}

func TestAll(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, id := range []identity.User{{UID: "u1", Name: "Aziz"}, {UID: "u2", Name: "Malika"}} {
		_, err := repo.SignIn(ctx, id)
		require.NoError(t, err)
	}

	all, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
