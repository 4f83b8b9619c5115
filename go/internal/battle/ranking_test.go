package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezroqyoz/typebattle/go/internal/models"
)

func roomWithPlayers(players map[string]models.BattlePlayer) *models.Room {
	return &models.Room{
		Code:    "AAA111",
		HostID:  "a",
		Status:  models.RoomStatusRacing,
		Players: players,
	}
}

func TestLiveOrder_ByProgress(t *testing.T) {
	room := roomWithPlayers(map[string]models.BattlePlayer{
		"a": {UID: "a", Progress: 40, WPM: 90},
		"b": {UID: "b", Progress: 80, WPM: 50},
		"c": {UID: "c", Progress: 60, WPM: 70},
	})

	order := LiveOrder(room)
	require.Len(t, order, 3)
	assert.Equal(t, "b", order[0].UID)
	assert.Equal(t, "c", order[1].UID)
	assert.Equal(t, "a", order[2].UID)
}

func TestFinalRanking_ByWPM(t *testing.T) {
	room := roomWithPlayers(map[string]models.BattlePlayer{
		"a": {UID: "a", Progress: 40, WPM: 90, Finished: true},
		"b": {UID: "b", Progress: 80, WPM: 50, Finished: true},
	})

	ranking := FinalRanking(room)
	require.Len(t, ranking, 2)
	assert.Equal(t, "a", ranking[0].UID)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.Equal(t, "b", ranking[1].UID)
	assert.Equal(t, 2, ranking[1].Rank)
}

// The live view orders by progress, the results by WPM. A player who
// completed the passage later can still win on WPM; both orderings must
// hold at once.
func TestRankingDivergence(t *testing.T) {
	room := roomWithPlayers(map[string]models.BattlePlayer{
		"slowstarter": {UID: "slowstarter", Progress: 90, WPM: 95, Finished: true},
		"frontrunner": {UID: "frontrunner", Progress: 100, WPM: 60, Finished: true},
	})

	live := LiveOrder(room)
	final := FinalRanking(room)

	assert.Equal(t, "frontrunner", live[0].UID)
	assert.Equal(t, "slowstarter", final[0].UID)
	assert.NotEqual(t, live[0].UID, final[0].UID)
}

func TestRaceComplete(t *testing.T) {
	assert.False(t, RaceComplete(nil, ""))
	assert.False(t, RaceComplete(roomWithPlayers(map[string]models.BattlePlayer{}), ""))

	partial := roomWithPlayers(map[string]models.BattlePlayer{
		"a": {UID: "a", Finished: true},
		"b": {UID: "b", Finished: false},
	})
	assert.False(t, RaceComplete(partial, ""))

	// The caller may count itself finished before its write round-trips.
	assert.True(t, RaceComplete(partial, "b"))

	done := roomWithPlayers(map[string]models.BattlePlayer{
		"a": {UID: "a", Finished: true},
		"b": {UID: "b", Finished: true},
	})
	assert.True(t, RaceComplete(done, ""))
}
