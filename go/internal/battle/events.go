package battle

import "github.com/tezroqyoz/typebattle/go/internal/models"

// EventType identifies a session event.
type EventType string

const (
	// EventRoomUpdated fires on every new room snapshot.
	EventRoomUpdated EventType = "RoomUpdated"
	// EventCountdownStarted fires when the room enters "starting".
	EventCountdownStarted EventType = "CountdownStarted"
	// EventRaceStarted fires when the room enters "racing".
	EventRaceStarted EventType = "RaceStarted"
	// EventRaceFinished fires when the room enters "finished"; Results
	// carries the final ranking.
	EventRaceFinished EventType = "RaceFinished"
	// EventEvicted fires when the room document vanished while this client
	// still considered itself a member. The client must fall back to the
	// lobby; this is not an error of any call it made.
	EventEvicted EventType = "Evicted"
)

// Event is one observed change in the session's view of the room.
type Event struct {
	Type    EventType
	Room    *models.Room          // nil for Evicted
	Results []models.BattlePlayer // final ranking, RaceFinished only
}
