package accounts

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountType classifies the account that extends a credential.
type AccountType string

const (
	AccountAdmin     AccountType = "admin"
	AccountBusiness  AccountType = "business"
	AccountDeveloper AccountType = "developer"
	AccountPrivate   AccountType = "private"
	AccountStaff     AccountType = "staff"
	AccountRecharge  AccountType = "recharge"
	AccountExtra     AccountType = "extra"
	AccountVendor    AccountType = "vendor"
	AccountPartner   AccountType = "partner"
)

// IsValid checks if the type is one of the predefined classifications
func (t AccountType) IsValid() bool {
	switch t {
	case AccountAdmin, AccountBusiness, AccountDeveloper, AccountPrivate,
		AccountStaff, AccountRecharge, AccountExtra, AccountVendor, AccountPartner:
		return true
	default:
		return false
	}
}

// ParseAccountType safely parses a string into an AccountType
func ParseAccountType(raw string) (AccountType, bool) {
	t := AccountType(raw)
	return t, t.IsValid()
}

// AllAccountTypes returns every predefined classification
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountAdmin,
		AccountBusiness,
		AccountDeveloper,
		AccountPrivate,
		AccountStaff,
		AccountRecharge,
		AccountExtra,
		AccountVendor,
		AccountPartner,
	}
}

// Credential is the authenticatable identity record
type Credential struct {
	bun.BaseModel  `bun:"table:credentials,alias:cred"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	IsActive       bool       `bun:"is_active" json:"is_active,omitempty"`
	IsSuperuser    bool       `bun:"is_superuser" json:"is_superuser,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins the credential's first and last name
func (c *Credential) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Account extends a Credential with profile data and email validation state.
// Every credential owns exactly one account; both are created in the same
// transaction by RegisterAccountHandler.
type Account struct {
	bun.BaseModel         `bun:"table:accounts,alias:acct"`
	ID                    uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	CredentialID          uuid.UUID   `bun:"credential_id,notnull,unique,type:uuid" json:"credential_id,omitempty"`
	Credential            *Credential `bun:"rel:belongs-to,join:credential_id=id" json:"credential,omitempty"`
	AccountUUID           uuid.UUID   `bun:"account_uuid,notnull,unique,type:uuid" json:"account_uuid,omitempty"`
	Type                  AccountType `bun:"account_type,notnull" json:"account_type,omitempty"`
	EmailValidationToken  *string     `bun:"email_validation_token,nullzero" json:"-"`
	ValidationTokenExpire *time.Time  `bun:"validation_token_expire,nullzero" json:"validation_token_expire,omitempty"`
	EmailValidated        bool        `bun:"email_validated" json:"email_validated,omitempty"`
	IsActive              bool        `bun:"is_active" json:"is_active,omitempty"`
	DateOfBirth           *time.Time  `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	Phone                 string      `bun:"phone_number" json:"phone_number,omitempty"`
	Newsletter            bool        `bun:"newsletter" json:"newsletter,omitempty"`
	CreatedAt             *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt             *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt             *time.Time  `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ValidationPending reports whether the account has an outstanding token
func (a *Account) ValidationPending() bool {
	return !a.EmailValidated && a.EmailValidationToken != nil
}

// TokenMatches compares a submitted token against the stored one in
// constant time. A missing stored token never matches.
func (a *Account) TokenMatches(token string) bool {
	if a.EmailValidationToken == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*a.EmailValidationToken), []byte(token)) == 1
}

// TokenExpired reports whether the stored expiry is strictly in the past.
// The exact expiry instant still validates.
func (a *Account) TokenExpired(now time.Time) bool {
	if a.ValidationTokenExpire == nil {
		return true
	}
	return now.After(*a.ValidationTokenExpire)
}

// PasswordResetStatus is the status of a reset request
type PasswordResetStatus = string

const (
	// ResetUnknownStatus is the unknown status
	ResetUnknownStatus PasswordResetStatus = "unknown"
	// ResetRequestedStatus means the reset link was issued and not yet used
	ResetRequestedStatus PasswordResetStatus = "requested"
	// ResetExpiredStatus means the reset window lapsed
	ResetExpiredStatus PasswordResetStatus = "expired"
	// ResetChangedStatus means the password was changed through the reset
	ResetChangedStatus PasswordResetStatus = "changed"
)

// PasswordReset tracks a single-use password reset request
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	CredentialID  *uuid.UUID  `bun:"credential_id,notnull,type:uuid" json:"credential_id,omitempty"`
	Credential    *Credential `bun:"rel:has-one,join:credential_id=id" json:"credential,omitempty"`
	Status        string      `bun:"status,notnull" json:"status,omitempty"`
	Email         string      `bun:"email,notnull" json:"email,omitempty"`
	ResetAt       *time.Time  `bun:"reset_at,nullzero" json:"reset_at,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time  `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// MarkPasswordReset builds the update record that closes a reset request
func MarkPasswordReset(id uuid.UUID) *PasswordReset {
	r := &PasswordReset{}
	r.ID = id
	r.Status = ResetChangedStatus
	n := time.Now()
	r.ResetAt = &n
	return r
}
