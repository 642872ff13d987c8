// Package tokenpkg issues and verifies the bearer tokens that identify account owners.
package tokenpkg

import "time"

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for a specific owner and duration.
	CreateToken(ownerID int64, duration time.Duration) (string, *Payload, error)
	// VerifyToken checks if the token is valid or not.
	VerifyToken(token string) (*Payload, error)
}

// Token types accepted by New.
const (
	TypePaseto = "paseto"
	TypeJWT    = "jwt"
)

// New returns the Maker of the given type.
func New(tokenType, symmetricKey string) (Maker, error) {
	if tokenType == TypeJWT {
		return NewJWTMaker(symmetricKey)
	}

	return NewPasetoMaker(symmetricKey)
}
