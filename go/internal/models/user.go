package models

// PresenceStatus is a user's live connection state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// GameHistory is one completed solo test, appended to the user's profile.
type GameHistory struct {
	WPM        int    `json:"wpm"`
	Accuracy   int    `json:"accuracy"`
	Timestamp  int64  `json:"timestamp"` // unix millis
	Mode       string `json:"mode"`      // e.g. "time 30"
	Score      int    `json:"score"`
	Difficulty string `json:"difficulty"`
}

// User is a user profile document stored at users/{uid}.
type User struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	PhotoURL     string         `json:"photoURL,omitempty"`
	RegisteredAt int64          `json:"registeredAt"`
	Score        int            `json:"score"`
	GamesPlayed  int            `json:"gamesPlayed"`
	AvgWPM       int            `json:"avgWPM,omitempty"`
	MaxWPM       int            `json:"maxWPM,omitempty"`
	Accuracy     int            `json:"accuracy,omitempty"`
	TotalTime    int            `json:"totalTime,omitempty"` // seconds spent in tests
	Banned       bool           `json:"banned,omitempty"`
	GameHistory  []GameHistory  `json:"gameHistory,omitempty"`
	Status       PresenceStatus `json:"status,omitempty"`
}

// FriendRequestStatus is the state of a pending friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is stored under users/{uid}/friendRequests/{requestId}.
type FriendRequest struct {
	UID       string              `json:"uid"`
	Name      string              `json:"name"`
	PhotoURL  string              `json:"photoURL,omitempty"`
	Status    FriendRequestStatus `json:"status"`
	Timestamp int64               `json:"timestamp"` // unix millis
}

// Friend is stored under users/{uid}/friends/{friendUid}.
type Friend struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
	Since    int64  `json:"since"` // unix millis
}
