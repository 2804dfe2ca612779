// Package auth issues and resolves the two credential kinds the API accepts:
// app keys (plaintext, shown in the dashboard, used by SDKs) and personal
// tokens (hashed at rest, used by CLIs and CI).
package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AppKeyPrefix marks SDK ingestion credentials. App keys are stored in
	// plaintext so the dashboard can display them, and resolved by exact match.
	AppKeyPrefix = "dp_live_"
	appKeyLen    = 32

	// TokenPrefix marks personal API tokens. Only a bcrypt hash is stored;
	// lookup goes through the leading characters, then a hash comparison.
	TokenPrefix    = "dpt_"
	tokenLen       = 40
	tokenPrefixLen = 8
)

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewAppKey generates a fresh app API key.
func NewAppKey() (string, error) {
	suffix, err := randomString(appKeyLen)
	if err != nil {
		return "", fmt.Errorf("generate app key: %w", err)
	}
	return AppKeyPrefix + suffix, nil
}

// NewPersonalToken generates a personal token, returning the raw token (shown
// to the caller exactly once), its lookup prefix, and the bcrypt hash to
// store.
func NewPersonalToken() (raw, prefix, hash string, err error) {
	suffix, err := randomString(tokenLen)
	if err != nil {
		return "", "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = TokenPrefix + suffix

	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash token: %w", err)
	}
	return raw, raw[:tokenPrefixLen], string(hashed), nil
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(buf), nil
}
