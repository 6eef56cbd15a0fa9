package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/tourbook/tourbook-server/internal/id"
)

const (
	resetTokenLength = 64

	// ResetTokenTTL is how long a password-reset token stays valid.
	ResetTokenTTL = 10 * time.Minute
)

// NewResetToken returns a random reset token and the hash to store.
// Only the plaintext is ever sent to the user.
func NewResetToken() (plain, hashed string, err error) {
	plain, err = id.Token(resetTokenLength)
	if err != nil {
		return "", "", err
	}
	return plain, HashResetToken(plain), nil
}

// HashResetToken returns the hex SHA-256 of a reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
