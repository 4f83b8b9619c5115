package friends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

var (
	ErrRequestNotFound = errors.New("friend request not found")
	ErrSelfRequest     = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends  = errors.New("already friends")
)

// Service manages friend requests and friend lists. Requests live under
// the recipient's profile at users/{uid}/friendRequests/{id}; accepted
// friendships are written reciprocally under both users.
type Service struct {
	store store.Store
	users *users.Repository
	clock clockwork.Clock
	log   zerolog.Logger
}

func NewService(st store.Store, repo *users.Repository, clock clockwork.Clock) *Service {
	return &Service{
		store: st,
		users: repo,
		clock: clock,
		log:   log.With().Str("component", "friends").Logger(),
	}
}

func requestPath(uid, requestID string) string {
	return store.Join("users", uid, "friendRequests", requestID)
}

func friendPath(uid, friendUID string) string {
	return store.Join("users", uid, "friends", friendUID)
}

// SendRequest places a pending request under the recipient's profile
// and returns its id.
func (s *Service) SendRequest(ctx context.Context, fromUID, toUID string) (string, error) {
	if fromUID == toUID {
		return "", ErrSelfRequest
	}
	if _, err := s.friend(ctx, fromUID, toUID); err == nil {
		return "", ErrAlreadyFriends
	}

	sender, err := s.users.Get(ctx, fromUID)
	if err != nil {
		return "", fmt.Errorf("load sender: %w", err)
	}
	if _, err := s.users.Get(ctx, toUID); err != nil {
		return "", fmt.Errorf("load recipient: %w", err)
	}

	id := uuid.NewString()
	req := models.FriendRequest{
		UID:       sender.UID,
		Name:      sender.Name,
		PhotoURL:  sender.PhotoURL,
		Status:    models.FriendRequestPending,
		Timestamp: s.clock.Now().UnixMilli(),
	}
	if err := s.store.Write(ctx, requestPath(toUID, id), req); err != nil {
		return "", fmt.Errorf("write friend request: %w", err)
	}

	s.log.Info().Str("from", fromUID).Str("to", toUID).Str("request", id).Msg("friend request sent")
	return id, nil
}

// Accept turns a pending request into a reciprocal friendship and
// removes the request.
func (s *Service) Accept(ctx context.Context, uid, requestID string) error {
	req, err := s.request(ctx, uid, requestID)
	if err != nil {
		return err
	}

	recipient, err := s.users.Get(ctx, uid)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	sender, err := s.users.Get(ctx, req.UID)
	if err != nil {
		return fmt.Errorf("load sender: %w", err)
	}

	since := s.clock.Now().UnixMilli()
	entries := []struct {
		owner  string
		friend *models.User
	}{
		{uid, sender},
		{req.UID, recipient},
	}
	for _, e := range entries {
		f := models.Friend{
			UID:      e.friend.UID,
			Name:     e.friend.Name,
			PhotoURL: e.friend.PhotoURL,
			Since:    since,
		}
		if err := s.store.Write(ctx, friendPath(e.owner, f.UID), f); err != nil {
			return fmt.Errorf("write friend entry: %w", err)
		}
	}

	if err := s.store.Delete(ctx, requestPath(uid, requestID)); err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}

	s.log.Info().Str("uid", uid).Str("friend", req.UID).Msg("friend request accepted")
	return nil
}

// Reject discards a pending request.
func (s *Service) Reject(ctx context.Context, uid, requestID string) error {
	if _, err := s.request(ctx, uid, requestID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, requestPath(uid, requestID)); err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	s.log.Info().Str("uid", uid).Str("request", requestID).Msg("friend request rejected")
	return nil
}

// Remove deletes the friendship from both sides.
func (s *Service) Remove(ctx context.Context, uid, friendUID string) error {
	for _, p := range []string{friendPath(uid, friendUID), friendPath(friendUID, uid)} {
		if err := s.store.Delete(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove friend entry: %w", err)
		}
	}
	return nil
}

// Requests lists the user's pending requests keyed by request id.
func (s *Service) Requests(ctx context.Context, uid string) (map[string]models.FriendRequest, error) {
	raw, err := s.store.Read(ctx, store.Join("users", uid, "friendRequests"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read friend requests: %w", err)
	}
	var reqs map[string]models.FriendRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return nil, fmt.Errorf("decode friend requests: %w", err)
	}
	return reqs, nil
}

// List returns the user's friends, newest first.
func (s *Service) List(ctx context.Context, uid string) ([]models.Friend, error) {
	raw, err := s.store.Read(ctx, store.Join("users", uid, "friends"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read friends: %w", err)
	}
	var byUID map[string]models.Friend
	if err := json.Unmarshal(raw, &byUID); err != nil {
		return nil, fmt.Errorf("decode friends: %w", err)
	}

	friends := make([]models.Friend, 0, len(byUID))
	for _, f := range byUID {
		friends = append(friends, f)
	}
	sort.Slice(friends, func(i, j int) bool {
		if friends[i].Since != friends[j].Since {
			return friends[i].Since > friends[j].Since
		}
		return friends[i].UID < friends[j].UID
	})
	return friends, nil
}

// Search finds users whose name contains the query, case insensitively.
func (s *Service) Search(ctx context.Context, query string) ([]models.User, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	all, err := s.users.All(ctx)
	if err != nil {
		return nil, err
	}
	var matched []models.User
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Name), query) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}

func (s *Service) request(ctx context.Context, uid, requestID string) (*models.FriendRequest, error) {
	raw, err := s.store.Read(ctx, requestPath(uid, requestID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read friend request: %w", err)
	}
	var req models.FriendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode friend request: %w", err)
	}
	return &req, nil
}

func (s *Service) friend(ctx context.Context, uid, friendUID string) (*models.Friend, error) {
	raw, err := s.store.Read(ctx, friendPath(uid, friendUID))
	if err != nil {
		return nil, err
	}
	var f models.Friend
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode friend entry: %w", err)
	}
	return &f, nil
}
