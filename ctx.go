package accounts

import (
	"context"
)

var credentialCtxKey = &contextKey{"credential"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Credential in the given context
func WithContext(r context.Context, cred *Credential) context.Context {
	return context.WithValue(r, credentialCtxKey, cred)
}

// FromContext finds the credential from the context.
func FromContext(ctx context.Context) (*Credential, bool) {
	raw, ok := ctx.Value(credentialCtxKey).(*Credential)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}
