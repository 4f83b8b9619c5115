package friends

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

func newTestService(t *testing.T) (*Service, *users.Repository) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st := store.NewMemoryStore()
	repo := users.NewRepository(st, clock)
	svc := NewService(st, repo, clock)

	ctx := context.Background()
	for _, id := range []identity.User{
		{UID: "aziz", Name: "Aziz"},
		{UID: "malika", Name: "Malika"},
		{UID: "bobur", Name: "Bobur"},
	} {
		_, err := repo.SignIn(ctx, id)
		require.NoError(t, err)
	}
	return svc, repo
}

func TestSendRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SendRequest(ctx, "aziz", "malika")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	reqs, err := svc.Requests(ctx, "malika")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	req := reqs[id]
	assert.Equal(t, "aziz", req.UID)
	assert.Equal(t, "Aziz", req.Name)
	assert.Equal(t, models.FriendRequestPending, req.Status)

	// The sender's own inbox stays empty.
	mine, err := svc.Requests(ctx, "aziz")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestSendRequest_ToSelf(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SendRequest(context.Background(), "aziz", "aziz")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendRequest_UnknownRecipient(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SendRequest(context.Background(), "aziz", "nobody")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestAccept_CreatesReciprocalFriendship(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SendRequest(ctx, "aziz", "malika")
	require.NoError(t, err)
	require.NoError(t, svc.Accept(ctx, "malika", id))

	malikas, err := svc.List(ctx, "malika")
	require.NoError(t, err)
	require.Len(t, malikas, 1)
	assert.Equal(t, "aziz", malikas[0].UID)

	azizs, err := svc.List(ctx, "aziz")
	require.NoError(t, err)
	require.Len(t, azizs, 1)
	assert.Equal(t, "malika", azizs[0].UID)

	reqs, err := svc.Requests(ctx, "malika")
	require.NoError(t, err)
	assert.Empty(t, reqs, "accepted request is removed")

	_, err = svc.SendRequest(ctx, "aziz", "malika")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestReject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SendRequest(ctx, "aziz", "malika")
	require.NoError(t, err)
	require.NoError(t, svc.Reject(ctx, "malika", id))

	reqs, err := svc.Requests(ctx, "malika")
	require.NoError(t, err)
	assert.Empty(t, reqs)

	friends, err := svc.List(ctx, "malika")
	require.NoError(t, err)
	assert.Empty(t, friends)

	assert.ErrorIs(t, svc.Reject(ctx, "malika", id), ErrRequestNotFound)
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SendRequest(ctx, "aziz", "malika")
	require.NoError(t, err)
	require.NoError(t, svc.Accept(ctx, "malika", id))

	require.NoError(t, svc.Remove(ctx, "aziz", "malika"))

	for _, uid := range []string{"aziz", "malika"} {
		friends, err := svc.List(ctx, uid)
		require.NoError(t, err)
		assert.Empty(t, friends)
	}

	// Removing a non-existent friendship is a no-op.
	require.NoError(t, svc.Remove(ctx, "aziz", "bobur"))
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	matched, err := svc.Search(ctx, "LI")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Malika", matched[0].Name)

	matched, err = svc.Search(ctx, "b")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Bobur", matched[0].Name)

	matched, err = svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, matched)
}
