package battle

import (
	"sort"

	"github.com/tezroqyoz/typebattle/go/internal/models"
)

// LiveOrder is the in-race standings: players sorted by progress descending.
// This is "who is furthest along", not who will win. Ties break on uid so
// the ordering is stable across snapshots.
func LiveOrder(room *models.Room) []models.BattlePlayer {
	players := collect(room)
	sort.Slice(players, func(i, j int) bool {
		if players[i].Progress != players[j].Progress {
			return players[i].Progress > players[j].Progress
		}
		return players[i].UID < players[j].UID
	})
	return players
}

// FinalRanking is the results ordering: players sorted by WPM descending,
// with Rank assigned 1..n. A player who finished last by progress order can
// still rank first here; the divergence from LiveOrder is intentional.
func FinalRanking(room *models.Room) []models.BattlePlayer {
	players := collect(room)
	sort.Slice(players, func(i, j int) bool {
		if players[i].WPM != players[j].WPM {
			return players[i].WPM > players[j].WPM
		}
		return players[i].UID < players[j].UID
	})
	for i := range players {
		players[i].Rank = i + 1
	}
	return players
}

// RaceComplete reports whether every player in the snapshot has finished.
// The player identified by selfID counts as finished regardless, because a
// caller invokes this right after its own finishing keystroke, before that
// write has round-tripped through the store.
func RaceComplete(room *models.Room, selfID string) bool {
	if room == nil || len(room.Players) == 0 {
		return false
	}
	for uid, p := range room.Players {
		if uid == selfID {
			continue
		}
		if !p.Finished {
			return false
		}
	}
	return true
}

func collect(room *models.Room) []models.BattlePlayer {
	players := make([]models.BattlePlayer, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, p)
	}
	return players
}
