package gateway

import (
	"net/http"
	"strings"

	"github.com/tezroqyoz/typebattle/go/internal/identity"
)

// userFromRequest resolves the caller's identity from an ID token passed
// as a Bearer header or a token query parameter. When no token is
// present it falls back to the configured provider, which lets the local
// demo run without a sign-in flow.
func userFromRequest(r *http.Request, fallback identity.Provider) (identity.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token != "" {
		return identity.TokenProvider{Token: token}.CurrentUser(r.Context())
	}
	if fallback != nil {
		return fallback.CurrentUser(r.Context())
	}
	return identity.User{}, identity.ErrNotSignedIn
}
