package typing

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/models"
)

var (
	ErrNotStarted      = errors.New("test has not started")
	ErrAlreadyFinished = errors.New("test already finished")
	// ErrCheatDetected is returned by Finish when the result was discarded.
	ErrCheatDetected = errors.New("cheat detected, result discarded")
)

// Durations the timer mode supports, in seconds.
var Durations = []int{15, 30, 60, 120}

// Config selects duration and passage difficulty for a solo test.
type Config struct {
	Duration   int    // seconds, one of Durations
	Difficulty string // easy, normal, hard
}

// Result is the outcome of a completed solo test.
type Result struct {
	WPM      int
	Accuracy int
	Score    int
	Elapsed  time.Duration
	Mode       string
	Difficulty string
	Cheated    CheatReason
}

// Game converts the result into a profile history entry.
func (r Result) Game(now time.Time) models.GameHistory {
	return models.GameHistory{
		WPM:        r.WPM,
		Accuracy:   r.Accuracy,
		Score:      r.Score,
		Mode:       r.Mode,
		Difficulty: r.Difficulty,
		Timestamp:  now.UnixMilli(),
	}
}

// Test is a single solo typing test. It is not safe for concurrent use;
// a test belongs to one client.
type Test struct {
	clock   clockwork.Clock
	log     zerolog.Logger
	cfg     Config
	passage string

	input     string
	startedAt time.Time
	started   bool
	finished  bool
	lastKeyAt time.Time
	intervals []float64 // ms between consecutive keystrokes
	resets    int
}

// Option configures a Test.
type Option func(*Test)

func WithClock(c clockwork.Clock) Option {
	return func(t *Test) { t.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Test) { t.log = l }
}

// NewTest starts a fresh test over a generated passage.
func NewTest(cfg Config, opts ...Option) *Test {
	t := &Test{
		clock:   clockwork.NewRealClock(),
		log:     log.Logger,
		cfg:     cfg,
		passage: battle.GeneratePassage(cfg.Difficulty),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Passage returns the target text.
func (t *Test) Passage() string { return t.passage }

// Resets reports how many times the test restarted itself, which
// happens on paste detection.
func (t *Test) Resets() int { return t.resets }

// Type records the full input after a keystroke. The timer starts on
// the first keystroke. Pasting, seen as the input growing by more than
// a few runes at once, resets the test with a fresh passage.
func (t *Test) Type(input string) error {
	if t.finished {
		return ErrAlreadyFinished
	}
	now := t.clock.Now()

	if len([]rune(input))-len([]rune(t.input)) > pasteJumpRunes {
		t.log.Warn().Int("jump", len(input)-len(t.input)).Msg("paste detected, resetting test")
		t.reset()
		return nil
	}

	if !t.started {
		t.started = true
		t.startedAt = now
	} else {
		t.intervals = append(t.intervals, float64(now.Sub(t.lastKeyAt).Milliseconds()))
	}
	t.lastKeyAt = now
	t.input = input
	return nil
}

// Remaining returns how much of the timer is left, zero once expired.
func (t *Test) Remaining() time.Duration {
	if !t.started {
		return time.Duration(t.cfg.Duration) * time.Second
	}
	left := time.Duration(t.cfg.Duration)*time.Second - t.clock.Since(t.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Finish closes the test and computes the result. A result flagged by
// the anti-cheat checks is returned alongside ErrCheatDetected so the
// caller can show it but must not record it.
func (t *Test) Finish() (Result, error) {
	if !t.started {
		return Result{}, ErrNotStarted
	}
	if t.finished {
		return Result{}, ErrAlreadyFinished
	}
	t.finished = true

	elapsed := t.clock.Since(t.startedAt)
	if max := time.Duration(t.cfg.Duration) * time.Second; elapsed > max {
		elapsed = max
	}

	wpm := battle.WPM(t.input, elapsed)
	res := Result{
		WPM:        wpm,
		Accuracy:   battle.Accuracy(t.input, t.passage),
		Score:      wpm / 2,
		Elapsed:    elapsed,
		Mode:       fmt.Sprintf("time %d", t.cfg.Duration),
		Difficulty: t.cfg.Difficulty,
	}

	if reason := detectCheat(t.intervals, wpm); reason != CheatNone {
		res.Cheated = reason
		res.Score = 0
		t.log.Warn().Str("reason", string(reason)).Int("wpm", wpm).Msg("test result discarded")
		return res, ErrCheatDetected
	}
	return res, nil
}

func (t *Test) reset() {
	t.passage = battle.GeneratePassage(t.cfg.Difficulty)
	t.input = ""
	t.started = false
	t.startedAt = time.Time{}
	t.lastKeyAt = time.Time{}
	t.intervals = nil
	t.resets++
}
