package models

// RoomStatus defines the lifecycle status of a battle room.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusStarting RoomStatus = "starting"
	RoomStatusRacing   RoomStatus = "racing"
	RoomStatusFinished RoomStatus = "finished"
)

// RaceSettings holds per-room race configuration.
type RaceSettings struct {
	Difficulty string `json:"difficulty"`
	// Duration is the race length in seconds; 0 means race to completion
	// of the passage text.
	Duration int `json:"duration"`
}

// BattlePlayer is one participant's live race state, embedded in Room.Players.
// Identity fields are a snapshot taken at join time and are not re-synced.
type BattlePlayer struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Accuracy int    `json:"accuracy"`
	Finished bool   `json:"finished"`
	Rank     int    `json:"rank,omitempty"`
}

// Room is the shared coordination document for one multiplayer race,
// addressed by its short code. Every participant subscribes to the same
// document and derives its local view purely from the latest snapshot.
type Room struct {
	Code      string                  `json:"code"`
	HostID    string                  `json:"hostId"`
	Status    RoomStatus              `json:"status"`
	Text      string                  `json:"text"`
	StartTime int64                   `json:"startTime,omitempty"` // unix millis, set on waiting->racing
	Players   map[string]BattlePlayer `json:"players"`
	CreatedAt int64                   `json:"createdAt"` // unix millis, informational
	Settings  RaceSettings            `json:"settings"`
}
