package identity

import (
	"context"
	"errors"
)

// ErrNotSignedIn is returned when no user is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// User is the identity snapshot the rest of the system works with. It is
// captured once (at join, at registration) and not re-synced afterwards.
type User struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Provider is the external identity provider: an opaque source of a stable
// user id plus display name and avatar.
type Provider interface {
	CurrentUser(ctx context.Context) (User, error)
}

// Static is a fixed-identity provider for tests and the local demo.
type Static struct {
	User User
}

func (s Static) CurrentUser(_ context.Context) (User, error) {
	if s.User.UID == "" {
		return User{}, ErrNotSignedIn
	}
	return s.User, nil
}
