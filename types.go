package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	SessionFromToken(token string) (Session, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// IdentityProvider ensure we have a store to retrieve auth identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds the account subsystem options
type Config interface {
	// GetSigningKey is the HMAC key used to sign session tokens
	GetSigningKey() string
	// GetTokenExpiration is the session token lifetime in hours
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string

	// GetValidationTokenLength is the validation token entropy in bytes
	GetValidationTokenLength() int
	// GetValidationDelay is how long an email validation token stays usable
	GetValidationDelay() time.Duration
	// GetUsernameMinLength gates registration usernames
	GetUsernameMinLength() int
	// GetPasswordMinLength gates registration and password change
	GetPasswordMinLength() int

	// GetSiteHost is the public host prefixed to validation links
	GetSiteHost() string
	// GetValidationPath is the URL path segment for validation links
	GetValidationPath() string
	// GetPasswordResetPath is the URL path segment for reset links
	GetPasswordResetPath() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
