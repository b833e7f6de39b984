package jobs

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const callbackTokenBytes = 32

// NewCallbackToken returns a fresh 256-bit secret, hex encoded.
func NewCallbackToken() (string, error) {
	b := make([]byte, callbackTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating callback token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// VerifyCallbackToken compares a presented token with the stored one in
// constant time. A job without a stored token accepts nothing.
func VerifyCallbackToken(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
