package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezroqyoz/typebattle/go/internal/models"
)

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestReduce_FirstSnapshot(t *testing.T) {
	next := &models.Room{Status: models.RoomStatusWaiting, Players: map[string]models.BattlePlayer{"a": {UID: "a"}}}

	tr := reduce(nil, next, false, "")

	assert.Equal(t, []EventType{EventRoomUpdated}, eventTypes(tr.events))
	assert.False(t, tr.startCountdown)
	assert.False(t, tr.declareFinish)
}

func TestReduce_StatusAdvances(t *testing.T) {
	waiting := &models.Room{Status: models.RoomStatusWaiting}
	starting := &models.Room{Status: models.RoomStatusStarting}
	racing := &models.Room{Status: models.RoomStatusRacing, Players: map[string]models.BattlePlayer{"a": {UID: "a"}}}

	tr := reduce(waiting, starting, true, "")
	assert.Equal(t, []EventType{EventCountdownStarted, EventRoomUpdated}, eventTypes(tr.events))
	assert.True(t, tr.startCountdown)

	tr = reduce(starting, racing, true, "")
	assert.Equal(t, []EventType{EventRaceStarted, EventRoomUpdated}, eventTypes(tr.events))
}

func TestReduce_UnchangedStatusOnlyUpdates(t *testing.T) {
	prev := &models.Room{Status: models.RoomStatusRacing, Players: map[string]models.BattlePlayer{"a": {UID: "a"}}}
	next := &models.Room{Status: models.RoomStatusRacing, Players: map[string]models.BattlePlayer{"a": {UID: "a", Progress: 50}}}

	tr := reduce(prev, next, true, "")
	assert.Equal(t, []EventType{EventRoomUpdated}, eventTypes(tr.events))
	assert.False(t, tr.declareFinish)
}

func TestReduce_Finished(t *testing.T) {
	racing := &models.Room{Status: models.RoomStatusRacing}
	finished := &models.Room{
		Status: models.RoomStatusFinished,
		Players: map[string]models.BattlePlayer{
			"a": {UID: "a", WPM: 70, Finished: true},
			"b": {UID: "b", WPM: 90, Finished: true},
		},
	}

	tr := reduce(racing, finished, true, "")
	require.Equal(t, []EventType{EventRaceFinished, EventRoomUpdated}, eventTypes(tr.events))
	require.Len(t, tr.events[0].Results, 2)
	assert.Equal(t, "b", tr.events[0].Results[0].UID, "results ranked by wpm")
}

func TestReduce_DeclareFinishWhenAllDone(t *testing.T) {
	racing := &models.Room{
		Status: models.RoomStatusRacing,
		Players: map[string]models.BattlePlayer{
			"a": {UID: "a", Finished: true},
			"b": {UID: "b", Finished: true},
		},
	}

	tr := reduce(racing, racing, true, "")
	assert.True(t, tr.declareFinish)
}

func TestReduce_SelfCountsAsFinished(t *testing.T) {
	racing := &models.Room{
		Status: models.RoomStatusRacing,
		Players: map[string]models.BattlePlayer{
			"a": {UID: "a", Finished: true},
			"b": {UID: "b", Finished: false}, // own write not round-tripped yet
		},
	}

	tr := reduce(racing, racing, true, "b")
	assert.True(t, tr.declareFinish)

	tr = reduce(racing, racing, true, "")
	assert.False(t, tr.declareFinish)
}

func TestReduce_Eviction(t *testing.T) {
	prev := &models.Room{Status: models.RoomStatusWaiting, Players: map[string]models.BattlePlayer{"a": {UID: "a"}}}

	tr := reduce(prev, nil, true, "")
	assert.True(t, tr.evicted)
	assert.Equal(t, []EventType{EventEvicted}, eventTypes(tr.events))

	// Never a member: the vanishing room is not an eviction.
	tr = reduce(nil, nil, false, "")
	assert.False(t, tr.evicted)
	assert.Empty(t, tr.events)
}
