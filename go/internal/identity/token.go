package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider derives the current user from a Google-issued ID token. The
// token's signature is taken on trust from the sign-in flow that produced
// it; this provider only extracts the identity claims (sub, name, picture,
// email).
type TokenProvider struct {
	Token string
}

type idTokenClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

func (p TokenProvider) CurrentUser(_ context.Context) (User, error) {
	if p.Token == "" {
		return User{}, ErrNotSignedIn
	}

	var claims idTokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(p.Token, &claims); err != nil {
		return User{}, fmt.Errorf("parse id token: %w", err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("id token has no subject claim")
	}

	name := claims.Name
	if name == "" {
		name = "Anonymous"
	}
	return User{
		UID:      claims.Subject,
		Name:     name,
		PhotoURL: claims.Picture,
		Email:    claims.Email,
	}, nil
}
