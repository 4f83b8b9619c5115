package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/models"
)

// RaceHandler bridges WebSocket connections to battle sessions: session
// events flow out to the socket, client commands flow into the session.
type RaceHandler struct {
	connections *ConnectionManager
	coordinator *battle.Coordinator
	identity    identity.Provider
}

// NewRaceHandler creates a handler over the given coordinator.
func NewRaceHandler(cm *ConnectionManager, co *battle.Coordinator, provider identity.Provider) *RaceHandler {
	return &RaceHandler{
		connections: cm,
		coordinator: co,
		identity:    provider,
	}
}

// RegisterRoutes attaches the WebSocket endpoints to the mux.
func (h *RaceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/race", h.HandleRace)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

// HandleStats reports active connection counts per room.
func (h *RaceHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connections.Stats())
}

// clientCommand is a frame received from the browser.
type clientCommand struct {
	Type    string `json:"type"` // start, input, leave
	Input   string `json:"input,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`
}

// serverEvent is a frame pushed to the browser.
type serverEvent struct {
	Type    battle.EventType      `json:"type"`
	Room    *models.Room          `json:"room,omitempty"`
	Results []models.BattlePlayer `json:"results,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// HandleRace upgrades the request, joins the caller into the room named
// by the code query parameter and runs the session until either side
// disconnects.
func (h *RaceHandler) HandleRace(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	user, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	ctx := context.Background()
	if _, err := h.coordinator.JoinRoom(ctx, code, user); err != nil {
		switch {
		case errors.Is(err, battle.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		case errors.Is(err, battle.ErrRaceInProgress):
			http.Error(w, "race already in progress", http.StatusConflict)
		default:
			log.Error().Err(err).Str("room", code).Msg("failed to join room")
			http.Error(w, "failed to join room", http.StatusInternalServerError)
		}
		return
	}

	sess, err := h.coordinator.OpenSession(ctx, code, user)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("failed to open session")
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		return
	}

	conn, err := h.connections.Upgrade(w, r, user.UID, code)
	if err != nil {
		sess.Close()
		log.Error().Err(err).Str("room", code).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn.OnMessage = func(data []byte) { h.handleCommand(ctx, conn, sess, data) }
	conn.OnClose = func() {
		sess.Close()
		// A vanished socket means the player dropped; free their slot.
		if err := h.coordinator.LeaveRoom(ctx, code, user.UID, false); err != nil && !errors.Is(err, battle.ErrRoomNotFound) {
			log.Warn().Err(err).Str("room", code).Str("uid", user.UID).Msg("failed to leave room on disconnect")
		}
	}
	conn.StartPumps()

	go h.pumpEvents(conn, sess)
}

func (h *RaceHandler) pumpEvents(conn *Connection, sess *battle.Session) {
	for ev := range sess.Events() {
		frame := serverEvent{Type: ev.Type, Room: ev.Room, Results: ev.Results}
		if !conn.WriteJSON(frame) {
			conn.Close()
			return
		}
		if ev.Type == battle.EventEvicted {
			conn.Close()
			return
		}
	}
}

func (h *RaceHandler) handleCommand(ctx context.Context, conn *Connection, sess *battle.Session, data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		conn.WriteJSON(serverEvent{Type: "Error", Error: "malformed command"})
		return
	}

	var err error
	switch cmd.Type {
	case "start":
		err = sess.Start(ctx)
	case "input":
		err = sess.SubmitInput(ctx, cmd.Input)
	case "leave":
		err = sess.Leave(ctx, cmd.Confirm)
		if err == nil {
			conn.Close()
		}
	default:
		conn.WriteJSON(serverEvent{Type: "Error", Error: "unknown command: " + cmd.Type})
		return
	}
	if err != nil {
		conn.WriteJSON(serverEvent{Type: "Error", Error: err.Error()})
	}
}
