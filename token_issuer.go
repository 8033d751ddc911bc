package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenIssuer produces the single-use, time-bounded secrets embedded in
// email validation links. Tokens are sourced from crypto/rand and encoded
// URL-safe so they can travel in a path segment.
type TokenIssuer struct {
	byteLength int
	delay      time.Duration
}

// NewTokenIssuer builds an issuer from the configured entropy and delay.
// Non-positive values fall back to package defaults.
func NewTokenIssuer(byteLength int, delay time.Duration) *TokenIssuer {
	if byteLength <= 0 {
		byteLength = DefaultValidationTokenLength
	}
	if delay <= 0 {
		delay = DefaultValidationDelay
	}
	return &TokenIssuer{
		byteLength: byteLength,
		delay:      delay,
	}
}

// Issue returns a fresh URL-safe random token
func (t *TokenIssuer) Issue() (string, error) {
	buf := make([]byte, t.byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for validation token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ExpiryFor computes the absolute expiry for a token issued at the given
// instant. Fixed delay, no jitter, no per-account override.
func (t *TokenIssuer) ExpiryFor(issuedAt time.Time) time.Time {
	return issuedAt.Add(t.delay)
}

// Delay exposes the configured validity window
func (t *TokenIssuer) Delay() time.Duration {
	return t.delay
}
