package battle

import "errors"

var (
	// ErrRoomNotFound is returned when joining a code with no room behind it.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRaceInProgress is returned when joining a room that is no longer
	// accepting players.
	ErrRaceInProgress = errors.New("race already in progress")

	// ErrNotRacing is returned when progress is submitted outside a running
	// race.
	ErrNotRacing = errors.New("race is not running")
)
