package accounts

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced alongside categorized errors so callers can render
// a specific message without string matching.
const (
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed  = "TOKEN_ALREADY_USED"
	TextCodeEmailNotValidated = "EMAIL_NOT_VALIDATED"
	TextCodeAccountInactive   = "ACCOUNT_INACTIVE"
	TextCodeInvalidData       = "INVALID_VALIDATION_DATA"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the generic bad-credentials error. It is
// returned both for unknown identifiers and wrong passwords so callers can
// never tell which of the two failed.
var ErrMismatchedHashAndPassword = errors.New("bad username or password")

// ErrTooManyLoginAttempts means the credential is cooling down
var ErrTooManyLoginAttempts = errors.New("too many login attempts")

// ErrUnableToDecodeSession unable to decode JWT from session token
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// ErrEmailNotValidated blocks login until the address is validated. It is
// deliberately distinct from ErrMismatchedHashAndPassword.
var ErrEmailNotValidated = goerrors.New("email address has not been validated", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotValidated)

// ErrAccountInactive blocks login for deactivated credentials
var ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive)

// ErrAccountSuspended blocks login for suspended credentials
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_SUSPENDED")

// ErrSessionTokenExpired is returned when a session JWT is past its expiry
var ErrSessionTokenExpired = goerrors.New("session token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrImmutableClaimMutation is returned when a claims decorator rewrites
// an identity claim it must not touch
var ErrImmutableClaimMutation = goerrors.New("claims decorator mutated an immutable claim", goerrors.CategoryInternal).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION")

// ErrSessionTokenMalformed is returned for undecodable session JWTs
var ErrSessionTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryBadInput).
	WithTextCode("TOKEN_MALFORMED")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenExpired
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedTokenError checks for tokens that could not be decoded
func IsMalformedTokenError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ErrSessionTokenMalformed.TextCode
	}

	return errors.Is(err, ErrUnableToDecodeSession)
}

// IsBadCredentialsError checks for the generic login failure
func IsBadCredentialsError(err error) bool {
	return errors.Is(err, ErrMismatchedHashAndPassword)
}
