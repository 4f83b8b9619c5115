package typing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/users"
)

// Service finishes solo tests and records clean results on the
// player's profile. Flagged results are returned to the caller so the
// UI can still show them, but never recorded.
type Service struct {
	users *users.Repository
	clock clockwork.Clock
	log   zerolog.Logger
}

func NewService(repo *users.Repository, clock clockwork.Clock) *Service {
	return &Service{
		users: repo,
		clock: clock,
		log:   log.With().Str("component", "typing").Logger(),
	}
}

// Complete finishes the test and, if it passes the anti-cheat checks,
// folds the result into the user's aggregates and history.
func (s *Service) Complete(ctx context.Context, uid string, t *Test) (Result, error) {
	res, err := t.Finish()
	if errors.Is(err, ErrCheatDetected) {
		return res, err
	}
	if err != nil {
		return res, err
	}

	if _, err := s.users.RecordGame(ctx, uid, res.Game(s.clock.Now())); err != nil {
		return res, fmt.Errorf("record test result: %w", err)
	}
	s.log.Info().Str("uid", uid).Int("wpm", res.WPM).Int("score", res.Score).Msg("test completed")
	return res, nil
}
