package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is assumed for phone numbers submitted without a
// country prefix
var DefaultPhoneRegion = "US"

type UpdateProfileMessage struct {
	AccountUUID uuid.UUID  `json:"account_uuid"`
	// OwnerID must be the credential id from the authenticated session;
	// the handler refuses to touch an account the caller does not own.
	OwnerID     uuid.UUID  `json:"owner_id"`
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Newsletter  *bool      `json:"newsletter,omitempty"`
	OnResponse  func(*UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "account.profile_update" }

type UpdateProfileResponse struct {
	Updated bool              `json:"updated"`
	Account *Account          `json:"account,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// UpdateProfileHandler mutates the profile fields of an account on behalf
// of its owner. Validation state, account type, and the account_uuid are
// never touched here.
type UpdateProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	resp := &UpdateProfileResponse{
		Errors: map[string]string{},
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByAccountUUIDTx(ctx, tx, event.AccountUUID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				resp.Errors["account"] = "account not found"
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for profile update")
		}

		if account.CredentialID != event.OwnerID {
			// report the same way as a missing account
			resp.Errors["account"] = "account not found"
			return nil
		}

		// explicit column lists: zero values (cleared phone, newsletter
		// opt-out) must still write, and untouched columns must stay put
		update := &Account{ID: account.ID}
		var cols []string

		if event.Phone != nil {
			normalized, err := NormalizePhone(*event.Phone)
			if err != nil {
				resp.Errors["phone"] = "invalid phone number"
				return nil
			}
			update.Phone = normalized
			cols = append(cols, "phone_number")
		}

		if event.DateOfBirth != nil {
			update.DateOfBirth = event.DateOfBirth
			cols = append(cols, "date_of_birth")
		}

		if event.Newsletter != nil {
			update.Newsletter = *event.Newsletter
			cols = append(cols, "newsletter")
		}

		if len(cols) > 0 {
			if _, err := tx.NewUpdate().
				Model(update).
				Column(cols...).
				WherePK().
				Exec(ctx); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile update")
			}
		}

		changed := len(cols) > 0

		if event.FirstName != nil || event.LastName != nil {
			credUpdate := &Credential{ID: account.CredentialID}
			var credCols []string
			if event.FirstName != nil {
				credUpdate.FirstName = *event.FirstName
				credCols = append(credCols, "first_name")
			}
			if event.LastName != nil {
				credUpdate.LastName = *event.LastName
				credCols = append(credCols, "last_name")
			}
			if _, err := tx.NewUpdate().
				Model(credUpdate).
				Column(credCols...).
				WherePK().
				Exec(ctx); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist name update")
			}
			changed = true
		}

		if changed {
			account, err = h.repo.Accounts().GetByAccountUUIDTx(ctx, tx, event.AccountUUID)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account after update")
			}
		}

		resp.Updated = changed
		resp.Account = account

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute profile update")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// NormalizePhone parses and reformats a phone number to E.164. An empty
// string clears the field.
func NormalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("phone number is not valid", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"phone": raw})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
