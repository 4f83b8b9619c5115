package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
)

// ErrUserNotFound is returned when no profile exists for a uid.
var ErrUserNotFound = errors.New("user not found")

// Repository manages user profile documents at users/{uid}.
type Repository struct {
	store store.Store
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewRepository creates a repository over the given store.
func NewRepository(st store.Store, clock clockwork.Clock) *Repository {
	return &Repository{store: st, clock: clock, log: log.Logger}
}

// Get retrieves a user profile.
func (r *Repository) Get(ctx context.Context, uid string) (*models.User, error) {
	raw, err := r.store.Read(ctx, store.UserPath(uid))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read user %s: %w", uid, err)
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", uid, err)
	}
	return &user, nil
}

// SignIn creates the profile on first sign-in and refreshes name/photo on
// later ones, if they changed at the provider.
func (r *Repository) SignIn(ctx context.Context, id identity.User) (*models.User, error) {
	user, err := r.Get(ctx, id.UID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user = &models.User{
			UID:          id.UID,
			Name:         id.Name,
			Email:        id.Email,
			PhotoURL:     id.PhotoURL,
			RegisteredAt: r.clock.Now().UnixMilli(),
		}
		if err := r.store.Write(ctx, store.UserPath(id.UID), user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", id.UID, err)
		}
		r.log.Info().Str("uid", id.UID).Str("name", id.Name).Msg("user registered")
		return user, nil

	case err != nil:
		return nil, err
	}

	if user.Name != id.Name || user.PhotoURL != id.PhotoURL {
		user.Name = id.Name
		user.PhotoURL = id.PhotoURL
		if err := r.store.Write(ctx, store.UserPath(id.UID), user); err != nil {
			return nil, fmt.Errorf("refresh user %s: %w", id.UID, err)
		}
	}
	return user, nil
}

// RecordGame folds one finished solo test into the profile: score grows by
// the game's score, averages move, maxima and totals accumulate, and the
// game is appended to the history.
func (r *Repository) RecordGame(ctx context.Context, uid string, game models.GameHistory) (*models.User, error) {
	user, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	played := user.GamesPlayed + 1
	user.Score += game.Score
	user.AvgWPM = movingAverage(user.AvgWPM, played, game.WPM)
	user.Accuracy = movingAverage(user.Accuracy, played, game.Accuracy)
	if game.WPM > user.MaxWPM {
		user.MaxWPM = game.WPM
	}
	user.GamesPlayed = played
	user.TotalTime += durationSeconds(game.Mode)
	user.GameHistory = append(user.GameHistory, game)

	if err := r.store.Write(ctx, store.UserPath(uid), user); err != nil {
		return nil, fmt.Errorf("record game for %s: %w", uid, err)
	}

	r.log.Info().
		Str("uid", uid).
		Int("wpm", game.WPM).
		Int("score", user.Score).
		Msg("game recorded")
	return user, nil
}

// SetPresence flips the user's online/offline status.
func (r *Repository) SetPresence(ctx context.Context, uid string, status models.PresenceStatus) error {
	err := r.store.Update(ctx, store.UserPath(uid), map[string]any{"status": status})
	if err != nil {
		return fmt.Errorf("set presence for %s: %w", uid, err)
	}
	return nil
}

// All reads every user profile. Used by search and the leaderboard; the
// whole users tree is small enough to scan.
func (r *Repository) All(ctx context.Context) ([]models.User, error) {
	raw, err := r.store.Read(ctx, "users")
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	var byUID map[string]models.User
	if err := json.Unmarshal(raw, &byUID); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]models.User, 0, len(byUID))
	for _, u := range byUID {
		users = append(users, u)
	}
	return users, nil
}

// movingAverage folds the newest value into a running average over n games.
func movingAverage(avg, n, value int) int {
	if n <= 0 {
		return value
	}
	return int(math.Round((float64(avg)*float64(n-1) + float64(value)) / float64(n)))
}

// durationSeconds extracts the test duration from a mode label like
// "time 30". Unrecognized modes contribute nothing.
func durationSeconds(mode string) int {
	var secs int
	if _, err := fmt.Sscanf(mode, "time %d", &secs); err != nil {
		return 0
	}
	return secs
}
