package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned by Read when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// Snapshot is the full current value of a subscribed path, delivered to the
// subscriber on every change anywhere under that path. Exists is false when
// the document has been deleted (or never existed).
type Snapshot struct {
	Path   string
	Data   json.RawMessage
	Exists bool
}

// Unmarshal decodes the snapshot into v. It is an error to call it on a
// snapshot that does not exist.
func (s Snapshot) Unmarshal(v any) error {
	if !s.Exists {
		return ErrNotFound
	}
	return json.Unmarshal(s.Data, v)
}

// SubscribeFunc receives snapshots for a subscribed path. Callbacks for one
// subscription are delivered in order, one at a time.
type SubscribeFunc func(Snapshot)

// UnsubscribeFunc cancels a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Store is a path-addressable tree of JSON documents with push-based change
// notification. Paths are slash-separated, e.g. "rooms/A1B2C3" or
// "rooms/A1B2C3/players/uid". There are no transactions across paths and no
// conditional writes; concurrent writes to the same path are last-write-wins.
type Store interface {
	// Read returns the document at path, or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write fully replaces the document at path.
	Write(ctx context.Context, path string, value any) error

	// Update merges the given fields into the document at path, leaving
	// sibling fields untouched.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the document at path and everything beneath it.
	Delete(ctx context.Context, path string) error

	// Subscribe registers fn for path. fn fires immediately with the current
	// snapshot, then again on every subsequent change under path.
	Subscribe(ctx context.Context, path string, fn SubscribeFunc) (UnsubscribeFunc, error)
}

// Join builds a slash-separated path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split breaks a path into its segments.
func Split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// RoomPath returns the document path for a battle room.
func RoomPath(code string) string {
	return Join("rooms", code)
}

// PlayerPath returns the sub-path for one player inside a room document.
func PlayerPath(code, uid string) string {
	return Join("rooms", code, "players", uid)
}

// UserPath returns the document path for a user profile.
func UserPath(uid string) string {
	return Join("users", uid)
}
