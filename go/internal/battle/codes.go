package battle

import (
	"crypto/rand"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// NewRoomCode generates a short human-typeable room code: six uppercase
// alphanumeric characters. Uniqueness is by construction only; the code is
// not checked against existing rooms before use.
func NewRoomCode() string {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken, at which point there is nothing sensible to fall back to.
		panic(err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
