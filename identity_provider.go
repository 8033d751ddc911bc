package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// CredentialStore is the slice of the credentials repository the provider
// needs to verify logins
type CredentialStore interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Credential, error)
	TrackAttemptedLogin(ctx context.Context, cred *Credential) error
	TrackSuccessfulLogin(ctx context.Context, cred *Credential) error
}

// AccountLookup resolves the account attached to a credential
type AccountLookup interface {
	GetByCredentialID(ctx context.Context, credentialID uuid.UUID) (*Account, error)
}

// MaxLoginAttempts is the maximum number of failed attempts a credential
// gets in a cooldown period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// CredentialProvider verifies passwords and enforces the login gate.
// The gate is ordered: wrong password first, then email validation, then
// active status. A caller with bad credentials learns nothing about the
// account's validation state.
type CredentialProvider struct {
	store    CredentialStore
	accounts AccountLookup
	logger   Logger
}

// NewCredentialProvider will create a new CredentialProvider
func NewCredentialProvider(store CredentialStore, accounts AccountLookup) *CredentialProvider {
	return &CredentialProvider{
		store:    store,
		accounts: accounts,
		logger:   defLogger{},
	}
}

func (p *CredentialProvider) WithLogger(l Logger) *CredentialProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// VerifyIdentity finds the credential, compares the password, and checks
// the account gates before returning an identity
func (p *CredentialProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	cred, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve credential during verification")
	}

	if cred == nil {
		return nil, ErrIdentityNotFound
	}

	if cred.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*cred.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			cred.LoginAttempts = 0
		}
	}

	// too many attempts in the given window, cool off!
	if cred.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, cred.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, cred); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSuccessfulLogin(ctx, cred); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	if err := p.ensureLoginEligible(ctx, cred); err != nil {
		return nil, err
	}

	return NewIdentityFromCredential(cred), nil
}

func (p *CredentialProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	cred, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if cred == nil {
		return nil, ErrIdentityNotFound
	}

	if err := p.ensureLoginEligible(ctx, cred); err != nil {
		return nil, err
	}

	return NewIdentityFromCredential(cred), nil
}

// ensureLoginEligible applies the post-password gates in order: email
// validation first, active flag second. Superusers skip the validation
// check but never the active check.
func (p *CredentialProvider) ensureLoginEligible(ctx context.Context, cred *Credential) error {
	if !cred.IsSuperuser {
		account, err := p.accounts.GetByCredentialID(ctx, cred.ID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// credential without an account record cannot be validated
				return ErrEmailNotValidated
			}
			return errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
		}

		if !account.EmailValidated {
			return ErrEmailNotValidated
		}
	}

	if !cred.IsActive {
		return ErrAccountInactive
	}

	return nil
}
