package leaderboard

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

// DefaultSize is how many entries the leaderboard shows.
const DefaultSize = 50

// Entry is one ranked row.
type Entry struct {
	Rank        int    `json:"rank"`
	UID         string `json:"uid"`
	Name        string `json:"name"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Score       int    `json:"score"`
	AvgWPM      int    `json:"avgWPM"`
	MaxWPM      int    `json:"maxWPM"`
	Accuracy    int    `json:"accuracy"`
	GamesPlayed int    `json:"gamesPlayed"`
}

// Service ranks user profiles by total score. Banned users are skipped.
type Service struct {
	users *users.Repository
	log   zerolog.Logger
}

func NewService(repo *users.Repository) *Service {
	return &Service{
		users: repo,
		log:   log.With().Str("component", "leaderboard").Logger(),
	}
}

// Top returns the highest-scoring n users. n <= 0 means DefaultSize.
func (s *Service) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultSize
	}
	all, err := s.users.All(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.Banned {
			continue
		}
		ranked = append(ranked, u)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UID < ranked[j].UID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]Entry, len(ranked))
	for i, u := range ranked {
		entries[i] = Entry{
			Rank:        i + 1,
			UID:         u.UID,
			Name:        u.Name,
			PhotoURL:    u.PhotoURL,
			Score:       u.Score,
			AvgWPM:      u.AvgWPM,
			MaxWPM:      u.MaxWPM,
			Accuracy:    u.Accuracy,
			GamesPlayed: u.GamesPlayed,
		}
	}
	return entries, nil
}

// RankOf returns the user's position on the full board, or 0 when the
// user is absent or banned.
func (s *Service) RankOf(ctx context.Context, uid string) (int, error) {
	entries, err := s.Top(ctx, 1<<30)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.UID == uid {
			return e.Rank, nil
		}
	}
	return 0, nil
}
