package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/friends"
	"github.com/tezroqyoz/typebattle/go/internal/identity"
	"github.com/tezroqyoz/typebattle/go/internal/leaderboard"
	"github.com/tezroqyoz/typebattle/go/internal/models"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

// APIHandler serves the JSON endpoints backing the browser client:
// sign-in, profiles, room creation, friends and the leaderboard.
type APIHandler struct {
	users       *users.Repository
	friends     *friends.Service
	leaderboard *leaderboard.Service
	coordinator *battle.Coordinator
	identity    identity.Provider
}

func NewAPIHandler(
	repo *users.Repository,
	fr *friends.Service,
	lb *leaderboard.Service,
	co *battle.Coordinator,
	provider identity.Provider,
) *APIHandler {
	return &APIHandler{
		users:       repo,
		friends:     fr,
		leaderboard: lb,
		coordinator: co,
		identity:    provider,
	}
}

// RegisterRoutes attaches all API endpoints to the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/signin", h.handleSignIn)
	mux.HandleFunc("GET /api/me", h.handleMe)
	mux.HandleFunc("GET /api/profile", h.handleProfile)
	mux.HandleFunc("POST /api/presence", h.handlePresence)
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("GET /api/search", h.handleSearch)
	mux.HandleFunc("GET /api/friends", h.handleFriendList)
	mux.HandleFunc("GET /api/friends/requests", h.handleFriendRequests)
	mux.HandleFunc("POST /api/friends/request", h.handleFriendRequest)
	mux.HandleFunc("POST /api/friends/accept", h.handleFriendAccept)
	mux.HandleFunc("POST /api/friends/reject", h.handleFriendReject)
	mux.HandleFunc("POST /api/friends/remove", h.handleFriendRemove)
}

func (h *APIHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	user, err := h.users.SignIn(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("uid", id.UID).Msg("sign-in failed")
		http.Error(w, "sign-in failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	user, err := h.users.Get(r.Context(), id.UID)
	if errors.Is(err, users.ErrUserNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "uid is required", http.StatusBadRequest)
		return
	}
	user, err := h.users.Get(r.Context(), uid)
	if errors.Is(err, users.ErrUserNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) handlePresence(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	var body struct {
		Status models.PresenceStatus `json:"status"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Status != models.PresenceOnline && body.Status != models.PresenceOffline {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	if err := h.users.SetPresence(r.Context(), id.UID, body.Status); err != nil {
		http.Error(w, "failed to update presence", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	var settings models.RaceSettings
	if !readJSON(w, r, &settings) {
		return
	}
	room, err := h.coordinator.CreateRoom(r.Context(), id, settings)
	if err != nil {
		log.Error().Err(err).Str("uid", id.UID).Msg("failed to create room")
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *APIHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := 0
	if limit := r.URL.Query().Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		n = v
	}
	entries, err := h.leaderboard.Top(r.Context(), n)
	if err != nil {
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	matched, err := h.friends.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, matched)
}

func (h *APIHandler) handleFriendList(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	list, err := h.friends.List(r.Context(), id.UID)
	if err != nil {
		http.Error(w, "failed to load friends", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) handleFriendRequests(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	reqs, err := h.friends.Requests(r.Context(), id.UID)
	if err != nil {
		http.Error(w, "failed to load friend requests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *APIHandler) handleFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	var body struct {
		To string `json:"to"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	reqID, err := h.friends.SendRequest(r.Context(), id.UID, body.To)
	switch {
	case errors.Is(err, friends.ErrSelfRequest), errors.Is(err, friends.ErrAlreadyFriends):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, users.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, "failed to send friend request", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"request": reqID})
	}
}

func (h *APIHandler) handleFriendAccept(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.friends.Accept)
}

func (h *APIHandler) handleFriendReject(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.friends.Reject)
}

func (h *APIHandler) resolveRequest(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, uid, requestID string) error) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	var body struct {
		Request string `json:"request"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	err = resolve(r.Context(), id.UID, body.Request)
	switch {
	case errors.Is(err, friends.ErrRequestNotFound):
		http.Error(w, "request not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, "failed to resolve friend request", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *APIHandler) handleFriendRemove(w http.ResponseWriter, r *http.Request) {
	id, err := userFromRequest(r, h.identity)
	if err != nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}
	var body struct {
		UID string `json:"uid"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if err := h.friends.Remove(r.Context(), id.UID, body.UID); err != nil {
		http.Error(w, "failed to remove friend", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}
