package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setValidationTokenSQL = `UPDATE "accounts" AS "acct"
SET
	"email_validation_token" = ?,
	"validation_token_expire" = ?
WHERE
	"acct"."deleted_at" IS NULL
AND (
	"acct"."account_uuid" = ?
) RETURNING *;`

var setAccountActiveSQL = `UPDATE "accounts" AS "acct"
SET
	"is_active" = ?
WHERE
	"acct"."deleted_at" IS NULL
AND (
	"acct"."id" = ?
) RETURNING *;`

// consumeValidationTokenSQL is a compare-and-set: the row is only touched
// while the stored token still equals the submitted one, so two racing
// consume requests can never both report success.
var consumeValidationTokenSQL = `UPDATE "accounts" AS "acct"
SET
	"email_validated" = TRUE,
	"is_active" = TRUE,
	"email_validation_token" = NULL
WHERE
	"acct"."deleted_at" IS NULL
AND "acct"."account_uuid" = ?
AND "acct"."email_validation_token" = ?
RETURNING *;`

// Accounts is the store for profile/extension records
type Accounts interface {
	repository.Repository[*Account]

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	// GetByAccountUUID resolves by the opaque URL-facing identifier,
	// never by the primary key.
	GetByAccountUUID(ctx context.Context, accountUUID uuid.UUID) (*Account, error)
	GetByAccountUUIDTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID) (*Account, error)

	GetByCredentialID(ctx context.Context, credentialID uuid.UUID) (*Account, error)
	GetByCredentialIDTx(ctx context.Context, tx bun.IDB, credentialID uuid.UUID) (*Account, error)

	// SetActive flips the account's active flag without touching its
	// validation state.
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error)
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*Account, error)

	// SetValidationToken replaces any outstanding token, invalidating it
	SetValidationTokenTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID, token string, expire time.Time) (*Account, error)

	// ConsumeValidationToken applies the conditional activation write and
	// reports whether exactly one row changed.
	ConsumeValidationTokenTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID, token string) (*Account, bool, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "account_uuid"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *accountsRepo) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *accountsRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *accountsRepo) GetByAccountUUID(ctx context.Context, accountUUID uuid.UUID) (*Account, error) {
	return r.GetByAccountUUIDTx(ctx, r.db, accountUUID)
}

func (r *accountsRepo) GetByAccountUUIDTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Relation("Credential").
		Where("?TableAlias.account_uuid = ?", accountUUID.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_uuid": accountUUID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *accountsRepo) GetByCredentialID(ctx context.Context, credentialID uuid.UUID) (*Account, error) {
	return r.GetByCredentialIDTx(ctx, r.db, credentialID)
}

func (r *accountsRepo) GetByCredentialIDTx(ctx context.Context, tx bun.IDB, credentialID uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.credential_id = ?", credentialID.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"credential_id": credentialID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *accountsRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error) {
	return r.SetActiveTx(ctx, r.db, id, active)
}

func (r *accountsRepo) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*Account, error) {
	res, err := r.Repository.RawTx(ctx, tx, setAccountActiveSQL, active, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (r *accountsRepo) SetValidationTokenTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID, token string, expire time.Time) (*Account, error) {
	res, err := r.Repository.RawTx(ctx, tx, setValidationTokenSQL, token, expire, accountUUID.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"account_uuid": accountUUID.String(),
			})
	}

	return res[0], nil
}

func (r *accountsRepo) ConsumeValidationTokenTx(ctx context.Context, tx bun.IDB, accountUUID uuid.UUID, token string) (*Account, bool, error) {
	res, err := r.Repository.RawTx(ctx, tx, consumeValidationTokenSQL, accountUUID.String(), token)
	if err != nil {
		return nil, false, err
	}

	// zero rows means the token was already consumed or never matched;
	// the caller treats that as a non-fatal idempotent outcome
	if len(res) != 1 {
		return nil, false, nil
	}

	return res[0], true, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.AccountUUID == uuid.Nil {
		record.AccountUUID = uuid.New()
	}

	if record.Type == "" {
		record.Type = AccountPrivate
	}
}
