package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/typing"
)

// TestHandler runs solo typing tests over a WebSocket so keystroke
// timing, and with it the anti-cheat checks, happens on the server.
type TestHandler struct {
	connections *ConnectionManager
	typing      *typing.Service
	identity    identity.Provider
}

// NewTestHandler creates a handler over the given typing service.
func NewTestHandler(cm *ConnectionManager, svc *typing.Service, provider identity.Provider) *TestHandler {
	return &TestHandler{
		connections: cm,
		typing:      svc,
		identity:    provider,
	}
}

// RegisterRoutes attaches the solo test endpoint to the mux.
func (h *TestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/test", h.HandleTest)
}

// testCommand is a frame received from the browser during a solo test.
type testCommand struct {
	Type  string `json:"type"` // key, finish
	Input string `json:"input,omitempty"`
}

// testEvent is a frame pushed to the browser during a solo test.
type testEvent struct {
	Type        string      `json:"type"` // Passage, Tick, Finished, Error
	Passage     string      `json:"passage,omitempty"`
	RemainingMs int64       `json:"remainingMs,omitempty"`
	Resets      int         `json:"resets,omitempty"`
	Result      *testResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type testResult struct {
	WPM      int    `json:"wpm"`
	Accuracy int    `json:"accuracy"`
	Score    int    `json:"score"`
	Mode     string `json:"mode"`
	Cheated  string `json:"cheated,omitempty"`
}

// HandleTest upgrades the request and runs one solo test for the caller.
// Duration and difficulty come from query parameters.
func (h *TestHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || !validDuration(duration) {
		http.Error(w, "duration must be one of 15, 30, 60, 120", http.StatusBadRequest)
		return
	}
	difficulty := r.URL.Query().Get("difficulty")

	user, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	conn, err := h.connections.Upgrade(w, r, user.UID, "solo")
	if err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("failed to upgrade WebSocket connection")
		return
	}

	test := typing.NewTest(typing.Config{Duration: duration, Difficulty: difficulty})
	ctx := context.Background()

	conn.OnMessage = func(data []byte) { h.handleCommand(ctx, conn, user.UID, test, data) }
	conn.StartPumps()

	conn.WriteJSON(testEvent{
		Type:        "Passage",
		Passage:     test.Passage(),
		RemainingMs: (time.Duration(duration) * time.Second).Milliseconds(),
	})
}

func (h *TestHandler) handleCommand(ctx context.Context, conn *Connection, uid string, test *typing.Test, data []byte) {
	var cmd testCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		conn.WriteJSON(testEvent{Type: "Error", Error: "malformed command"})
		return
	}

	switch cmd.Type {
	case "key":
		resetsBefore := test.Resets()
		if err := test.Type(cmd.Input); err != nil {
			conn.WriteJSON(testEvent{Type: "Error", Error: err.Error()})
			return
		}
		ev := testEvent{Type: "Tick", RemainingMs: test.Remaining().Milliseconds()}
		if test.Resets() > resetsBefore {
			// A paste reset swaps the passage; the client needs the new one.
			ev.Type = "Passage"
			ev.Passage = test.Passage()
			ev.Resets = test.Resets()
		}
		conn.WriteJSON(ev)
	case "finish":
		res, err := h.typing.Complete(ctx, uid, test)
		if err != nil && !errors.Is(err, typing.ErrCheatDetected) {
			conn.WriteJSON(testEvent{Type: "Error", Error: err.Error()})
			return
		}
		conn.WriteJSON(testEvent{Type: "Finished", Result: &testResult{
			WPM:      res.WPM,
			Accuracy: res.Accuracy,
			Score:    res.Score,
			Mode:     res.Mode,
			Cheated:  string(res.Cheated),
		}})
		conn.Close()
	default:
		conn.WriteJSON(testEvent{Type: "Error", Error: "unknown command: " + cmd.Type})
	}
}

func validDuration(d int) bool {
	for _, v := range typing.Durations {
		if v == d {
			return true
		}
	}
	return false
}
