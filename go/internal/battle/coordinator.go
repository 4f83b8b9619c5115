package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
)

// CountdownDuration is how long the host-driven countdown runs between
// status "starting" and "racing".
const CountdownDuration = 5 * time.Second

// Coordinator owns the lifecycle of battle rooms: creation, joining, the
// host countdown, live progress relay, and completion. There is no server
// process behind it; every transition is one client's local decision written
// optimistically into the shared room document, and all other clients react
// to the resulting snapshot.
type Coordinator struct {
	store    store.Store
	clock    clockwork.Clock
	reporter ProgressReporter
	log      zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock substitutes the clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithProgressReporter substitutes the per-keystroke progress relay.
func WithProgressReporter(r ProgressReporter) Option {
	return func(co *Coordinator) { co.reporter = r }
}

// WithLogger substitutes the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(st store.Store, opts ...Option) *Coordinator {
	co := &Coordinator{
		store: st,
		clock: clockwork.NewRealClock(),
		log:   log.Logger,
	}
	for _, opt := range opts {
		opt(co)
	}
	if co.reporter == nil {
		co.reporter = NewStoreReporter(st)
	}
	return co
}

// CreateRoom generates a room code, initializes the room document with the
// caller as host and sole player, and writes it to the store. The code is
// random and not checked against existing rooms; a collision overwrites the
// older room, which the evicted participants observe as the room vanishing.
func (co *Coordinator) CreateRoom(ctx context.Context, user identity.User, settings models.RaceSettings) (*models.Room, error) {
	code := NewRoomCode()
	room := &models.Room{
		Code:      code,
		HostID:    user.UID,
		Status:    models.RoomStatusWaiting,
		Text:      GeneratePassage(settings.Difficulty),
		Players:   map[string]models.BattlePlayer{user.UID: newPlayer(user)},
		CreatedAt: co.clock.Now().UnixMilli(),
		Settings:  settings,
	}

	if err := co.store.Write(ctx, store.RoomPath(code), room); err != nil {
		return nil, fmt.Errorf("create room %s: %w", code, err)
	}

	co.log.Info().
		Str("code", code).
		Str("host", user.UID).
		Str("difficulty", settings.Difficulty).
		Msg("room created")
	return room, nil
}

// JoinRoom adds the caller as a player to an existing waiting room. Joining
// a code with no room fails with ErrRoomNotFound; joining a room that has
// left "waiting" fails with ErrRaceInProgress. Re-joining a room the caller
// is already in overwrites the player entry, resetting its progress.
func (co *Coordinator) JoinRoom(ctx context.Context, code string, user identity.User) (*models.Room, error) {
	raw, err := co.store.Read(ctx, store.RoomPath(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", code, err)
	}

	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, ErrRaceInProgress
	}

	player := newPlayer(user)
	if err := co.store.Write(ctx, store.PlayerPath(code, user.UID), player); err != nil {
		return nil, fmt.Errorf("join room %s: %w", code, err)
	}

	if room.Players == nil {
		room.Players = make(map[string]models.BattlePlayer)
	}
	room.Players[user.UID] = player

	co.log.Info().Str("code", code).Str("uid", user.UID).Msg("joined room")
	return &room, nil
}

// LeaveRoom removes the caller from the room. A host leaving deletes the
// whole room document; every remaining participant observes the document
// vanish and must treat that as forced eviction. A non-host leaving removes
// only its own player entry.
func (co *Coordinator) LeaveRoom(ctx context.Context, code, uid string, isHost bool) error {
	if isHost {
		if err := co.store.Delete(ctx, store.RoomPath(code)); err != nil {
			return fmt.Errorf("delete room %s: %w", code, err)
		}
		co.log.Info().Str("code", code).Str("uid", uid).Msg("host left; room deleted")
		return nil
	}

	if err := co.store.Delete(ctx, store.PlayerPath(code, uid)); err != nil {
		return fmt.Errorf("leave room %s: %w", code, err)
	}
	co.log.Info().Str("code", code).Str("uid", uid).Msg("left room")
	return nil
}

// StartRace moves the room to "starting". Host-only by protocol convention;
// nothing in the store enforces it. The actual countdown runs on the host's
// session, which writes "racing" when its local timer fires.
func (co *Coordinator) StartRace(ctx context.Context, code string) error {
	err := co.store.Update(ctx, store.RoomPath(code), map[string]any{
		"status": models.RoomStatusStarting,
	})
	if err != nil {
		return fmt.Errorf("start race %s: %w", code, err)
	}
	co.log.Info().Str("code", code).Msg("race starting")
	return nil
}

// beginRace is the host countdown's terminal write: status "racing" plus
// the shared start timestamp every client computes elapsed time from.
func (co *Coordinator) beginRace(ctx context.Context, code string) error {
	err := co.store.Update(ctx, store.RoomPath(code), map[string]any{
		"status":    models.RoomStatusRacing,
		"startTime": co.clock.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("begin race %s: %w", code, err)
	}
	co.log.Info().Str("code", code).Msg("race begun")
	return nil
}

// SubmitProgress recomputes the caller's live stats from the input typed so
// far and relays them to the caller's own player entry. It never writes to
// another player's entry.
func (co *Coordinator) SubmitProgress(ctx context.Context, room *models.Room, uid, input string) (ProgressUpdate, error) {
	if room == nil || room.Status != models.RoomStatusRacing {
		return ProgressUpdate{}, ErrNotRacing
	}

	var elapsed time.Duration
	if room.StartTime > 0 {
		elapsed = co.clock.Now().Sub(time.UnixMilli(room.StartTime))
	}

	upd := ProgressUpdate{
		Progress: Progress(input, room.Text),
		WPM:      WPM(input, elapsed),
		Accuracy: Accuracy(input, room.Text),
		Finished: Finished(input, room.Text),
	}

	if err := co.reporter.Report(ctx, room.Code, uid, upd); err != nil {
		return ProgressUpdate{}, err
	}
	return upd, nil
}

// FinishRace writes the terminal status. Conditional-set semantics: a room
// already observed finished is left alone, so the duplicate declarations
// that the distributed completion check can produce stay write-free.
func (co *Coordinator) FinishRace(ctx context.Context, room *models.Room) error {
	if room == nil || room.Status == models.RoomStatusFinished {
		return nil
	}
	err := co.store.Update(ctx, store.RoomPath(room.Code), map[string]any{
		"status": models.RoomStatusFinished,
	})
	if err != nil {
		return fmt.Errorf("finish race %s: %w", room.Code, err)
	}
	co.log.Info().Str("code", room.Code).Msg("race finished")
	return nil
}

func newPlayer(user identity.User) models.BattlePlayer {
	return models.BattlePlayer{
		UID:      user.UID,
		Name:     user.Name,
		PhotoURL: user.PhotoURL,
		Accuracy: 100,
	}
}
