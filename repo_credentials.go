package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setCredentialActiveSQL = `UPDATE "credentials" AS "cred"
SET
	"is_active" = ?
WHERE
	"cred"."deleted_at" IS NULL
AND (
	"cred"."id" = ?
) RETURNING *;`

var resetCredentialPasswordSQL = `UPDATE "credentials" AS "cred"
SET
	"password_hash" = ?
WHERE
	"cred"."deleted_at" IS NULL
AND (
	"cred"."id" = ?
) RETURNING *;`

// Credentials is the store for authenticatable identities
type Credentials interface {
	repository.Repository[*Credential]

	TrackAttemptedLogin(ctx context.Context, cred *Credential) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, cred *Credential) error
	TrackSuccessfulLogin(ctx context.Context, cred *Credential) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, cred *Credential) error

	Create(ctx context.Context, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error)

	// SetActive flips the login eligibility gate. The write is idempotent
	// so a partially applied validation can be repaired by retrying.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type credentials struct {
	repository.Repository[*Credential]
	db *bun.DB
}

var (
	_ Credentials                        = (*credentials)(nil)
	_ repository.Repository[*Credential] = (*credentials)(nil)
)

func NewCredentialsRepository(db *bun.DB) Credentials {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &credentials{
		Repository: repo,
		db:         db,
	}
}

func (r *credentials) Create(ctx context.Context, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *credentials) CreateTx(ctx context.Context, tx bun.IDB, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error) {
	prepareCredentialDefaults(record)
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

// GetByIdentifier resolves a credential by id, email, or username, trying
// the most specific column first.
func (r *credentials) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	return r.GetByIdentifierTx(ctx, r.db, identifier, criteria...)
}

func (r *credentials) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Credential, error) {
	options := resolveCredentialIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Credential{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (r *credentials) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.SetActiveTx(ctx, r.db, id, active)
}

func (r *credentials) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	res, err := r.Repository.RawTx(ctx, tx, setCredentialActiveSQL, active, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (r *credentials) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.ResetPasswordTx(ctx, r.db, id, passwordHash)
}

func (r *credentials) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := r.Repository.RawTx(ctx, tx, resetCredentialPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (r *credentials) TrackSuccessfulLogin(ctx context.Context, cred *Credential) error {
	return r.TrackSuccessfulLoginTx(ctx, r.db, cred)
}

func (r *credentials) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, cred *Credential) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "credentials" AS "cred"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("cred".id = ?)
			AND "cred"."deleted_at" IS NULL;
	`, loggedInAt, cred.ID).Exec(ctx)

	return err
}

func (r *credentials) TrackAttemptedLogin(ctx context.Context, cred *Credential) error {
	return r.TrackAttemptedLoginTx(ctx, r.db, cred)
}

func (r *credentials) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, cred *Credential) error {
	attemptedAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "credentials" AS "cred"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			("cred".id = ?)
			AND "cred"."deleted_at" IS NULL;
	`, cred.LoginAttempts+1, attemptedAt, cred.ID).Exec(ctx)

	return err
}

func prepareCredentialDefaults(record *Credential) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Username == "" && record.Email != "" {
		record.Username = usernameFromEmail(record.Email)
	}
}

func usernameFromEmail(email string) string {
	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}
	return email
}

type identifierOption struct {
	column string
	value  string
}

func resolveCredentialIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
