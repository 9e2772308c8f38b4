package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

var (
	// ErrNotConfigured means the server has no key to compare against.
	ErrNotConfigured = errors.New("api key is not configured")
	// ErrInvalidKey covers both a missing and a wrong key.
	ErrInvalidKey = errors.New("invalid api key")
)

// KeyVerifier checks the x-api-key header of write requests.
type KeyVerifier struct {
	plain []byte
	hash  []byte
}

// NewKeyVerifier accepts a plain key, a bcrypt hash, or both. The hash wins.
func NewKeyVerifier(plain, bcryptHash string) *KeyVerifier {
	v := &KeyVerifier{}
	if trimmed := strings.TrimSpace(bcryptHash); trimmed != "" {
		v.hash = []byte(trimmed)
		return v
	}
	if trimmed := strings.TrimSpace(plain); trimmed != "" {
		v.plain = []byte(trimmed)
	}
	return v
}

func (v *KeyVerifier) Configured() bool {
	return v != nil && (len(v.hash) > 0 || len(v.plain) > 0)
}

// Verify returns nil when presented matches the configured key.
func (v *KeyVerifier) Verify(presented string) error {
	if !v.Configured() {
		return ErrNotConfigured
	}
	candidate := []byte(strings.TrimSpace(presented))
	if len(candidate) == 0 {
		return ErrInvalidKey
	}
	if len(v.hash) > 0 {
		if bcrypt.CompareHashAndPassword(v.hash, candidate) != nil {
			return ErrInvalidKey
		}
		return nil
	}
	if subtle.ConstantTimeCompare(v.plain, candidate) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// HashKey produces the value for API_KEY_BCRYPT.
func HashKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("api key is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}
