package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/store"
)

// Session is one client's live view of a room. It holds a local projection
// rebuilt from every snapshot the subscription delivers, and it performs the
// transitions this client is responsible for: the countdown write when it is
// the host, and the distributed completion declaration when it observes all
// players finished.
type Session struct {
	co   *Coordinator
	code string
	self identity.User
	log  zerolog.Logger

	ctx context.Context

	mu           sync.Mutex
	room         *models.Room
	wasMember    bool
	selfFinished bool
	declared     bool
	countdown    clockwork.Timer
	closed       bool

	events chan Event
	unsub  store.UnsubscribeFunc
	stopCd chan struct{}
}

// OpenSession subscribes to the room and starts delivering events. The
// caller should already be a member (via CreateRoom or JoinRoom). Close
// must be called when leaving the room view, so a stale countdown cannot
// write "racing" into a room this client already left.
func (co *Coordinator) OpenSession(ctx context.Context, code string, self identity.User) (*Session, error) {
	s := &Session{
		co:     co,
		code:   code,
		self:   self,
		log:    co.log.With().Str("code", code).Str("uid", self.UID).Logger(),
		ctx:    ctx,
		events: make(chan Event, 16),
		stopCd: make(chan struct{}),
	}

	unsub, err := co.store.Subscribe(ctx, store.RoomPath(code), s.onSnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe to room %s: %w", code, err)
	}
	s.unsub = unsub
	return s, nil
}

// Events is the stream of observed room changes. Slow consumers lose
// intermediate events, never the room state itself: every event carries the
// full current snapshot.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Room returns the latest room snapshot, or nil before the first one (or
// after eviction).
func (s *Session) Room() *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SubmitInput relays the caller's current input. Every call produces one
// store write. When the input completes the passage this session starts
// counting itself as finished for completion detection, without waiting for
// its own write to round-trip.
func (s *Session) SubmitInput(ctx context.Context, input string) error {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()

	upd, err := s.co.SubmitProgress(ctx, room, s.self.UID, input)
	if err != nil {
		return err
	}

	if upd.Finished {
		s.mu.Lock()
		s.selfFinished = true
		declare := !s.declared && RaceComplete(room, s.self.UID)
		if declare {
			s.declared = true
		}
		s.mu.Unlock()

		if declare {
			if err := s.co.FinishRace(ctx, room); err != nil {
				s.log.Error().Err(err).Msg("declaring race finished")
			}
		}
	}
	return nil
}

// Start moves the room into "starting". Host-only by convention; the
// countdown itself is driven by this session observing the status change.
func (s *Session) Start(ctx context.Context) error {
	return s.co.StartRace(ctx, s.code)
}

// Leave removes this client from the room. A host leave deletes the room
// outright, which the other participants observe as eviction; confirm=false
// makes a host leave a no-op, pending the user's confirmation. The session
// is closed either way except for the unconfirmed host case.
func (s *Session) Leave(ctx context.Context, confirm bool) error {
	s.mu.Lock()
	isHost := s.room != nil && s.room.HostID == s.self.UID
	s.mu.Unlock()

	if isHost && !confirm {
		return nil
	}

	s.Close()
	return s.co.LeaveRoom(ctx, s.code, s.self.UID, isHost)
}

// Close cancels the subscription and any in-flight countdown timer. Safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.mu.Unlock()

	close(s.stopCd)
	s.unsub()
	// No snapshot callback can be mid-send here: sends happen under mu with
	// the closed flag checked first.
	close(s.events)
}

// onSnapshot is the subscription callback: replace the local view with the
// snapshot, emit the derived events, and run the transitions this client
// owns.
func (s *Session) onSnapshot(snap store.Snapshot) {
	var next *models.Room
	if snap.Exists {
		next = &models.Room{}
		if err := json.Unmarshal(snap.Data, next); err != nil {
			s.log.Error().Err(err).Msg("decoding room snapshot")
			return
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	selfID := ""
	if s.selfFinished {
		selfID = s.self.UID
	}
	tr := reduce(s.room, next, s.wasMember, selfID)

	s.room = next
	if next != nil {
		if _, ok := next.Players[s.self.UID]; ok {
			s.wasMember = true
		}
	}
	if tr.evicted {
		s.wasMember = false
	}

	startCountdown := tr.startCountdown && next.HostID == s.self.UID && s.countdown == nil
	if startCountdown {
		s.countdown = s.co.clock.NewTimer(CountdownDuration)
	}

	declare := tr.declareFinish && !s.declared
	if declare {
		s.declared = true
	}

	for _, ev := range tr.events {
		select {
		case s.events <- ev:
		default:
			s.log.Warn().Str("event", string(ev.Type)).Msg("event dropped; consumer is behind")
		}
	}
	timer := s.countdown
	s.mu.Unlock()

	if startCountdown {
		go s.runCountdown(timer)
	}
	if declare {
		if err := s.co.FinishRace(s.ctx, next); err != nil {
			s.log.Error().Err(err).Msg("declaring race finished")
		}
	}
}

// runCountdown waits out the host countdown and writes "racing". The timer
// is cancelled, not merely ignored, when the session closes.
func (s *Session) runCountdown(timer clockwork.Timer) {
	select {
	case <-timer.Chan():
	case <-s.stopCd:
		return
	}

	if err := s.co.beginRace(s.ctx, s.code); err != nil {
		s.log.Error().Err(err).Msg("countdown write failed")
	}
}

// transition is the output of the snapshot reducer: the events to surface
// and the writes this client is now responsible for.
type transition struct {
	events         []Event
	startCountdown bool
	declareFinish  bool
	evicted        bool
}

// reduce is the pure projection step: given the previous local view and the
// new snapshot, produce the next view's events. selfID is non-empty only
// when this client already knows it finished, so completion detection may
// count it before its own write round-trips.
func reduce(prev, next *models.Room, wasMember bool, selfID string) transition {
	var tr transition

	if next == nil {
		// The room document vanished. If this client still believed it was
		// a member, that is forced eviction back to the lobby.
		if wasMember {
			tr.evicted = true
			tr.events = append(tr.events, Event{Type: EventEvicted})
		}
		return tr
	}

	statusChanged := prev == nil || prev.Status != next.Status
	if statusChanged {
		switch next.Status {
		case models.RoomStatusStarting:
			tr.events = append(tr.events, Event{Type: EventCountdownStarted, Room: next})
			tr.startCountdown = true
		case models.RoomStatusRacing:
			tr.events = append(tr.events, Event{Type: EventRaceStarted, Room: next})
		case models.RoomStatusFinished:
			tr.events = append(tr.events, Event{
				Type:    EventRaceFinished,
				Room:    next,
				Results: FinalRanking(next),
			})
		}
	}

	tr.events = append(tr.events, Event{Type: EventRoomUpdated, Room: next})

	if next.Status == models.RoomStatusRacing && RaceComplete(next, selfID) {
		tr.declareFinish = true
	}
	return tr
}
