package accounts

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Username        string     `json:"username"`
	Password        string     `json:"password"`
	PasswordConfirm string     `json:"password_confirm"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	AccountType     string     `json:"account_type"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Newsletter      bool       `json:"newsletter"`
	UseHashid       bool
	OnResponse      func(*RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountResponse reports the outcome of a registration attempt.
// Field-level problems land in Errors keyed by input field; they are part
// of the expected flow, never an application error.
type RegisterAccountResponse struct {
	Created    bool              `json:"created"`
	Credential *Credential       `json:"credential,omitempty"`
	Account    *Account          `json:"account,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// RegisterAccountHandler creates a deactivated Credential and its Account
// in a single transaction. No validation token is issued here; issuance is
// deferred to ValidationRequestHandler so resends never recreate the
// identity.
type RegisterAccountHandler struct {
	repo     RepositoryManager
	cfg      Config
	activity ActivitySink
	logger   Logger
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, cfg Config) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		cfg:      cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	resp := &RegisterAccountResponse{
		Errors: map[string]string{},
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if errs := h.validateMessage(event); len(errs) > 0 {
		resp.Errors = errs
		h.logger.Debug("registration rejected with field errors: %v", errs)
		h.respond(event, resp)
		return nil
	}

	cred := &Credential{}
	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := tx.NewSelect().
			Model((*Credential)(nil)).
			Where("?TableAlias.username = ?", event.Username).
			Exists(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
		if taken {
			resp.Errors["username"] = "a user with this username is already in use"
		}

		taken, err = tx.NewSelect().
			Model((*Credential)(nil)).
			Where("?TableAlias.email = ?", event.Email).
			Exists(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}
		if taken {
			resp.Errors["email"] = "this email is already in use"
		}

		if len(resp.Errors) > 0 {
			return nil
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			if errors.Is(err, ErrNoEmptyString) {
				resp.Errors["password"] = "password must not be empty"
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		cred.PasswordHash = hash
		cred.Email = event.Email
		cred.Username = event.Username
		cred.FirstName = event.FirstName
		cred.LastName = event.LastName
		cred.IsActive = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				cred.ID = id
			}
		}

		if cred, err = h.repo.Credentials().CreateTx(ctx, tx, cred); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create credential")
		}

		account.CredentialID = cred.ID
		account.Phone = event.Phone
		account.DateOfBirth = event.DateOfBirth
		account.Newsletter = event.Newsletter
		if t, ok := ParseAccountType(event.AccountType); ok {
			account.Type = t
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if len(resp.Errors) > 0 {
		h.respond(event, resp)
		return nil
	}

	resp.Created = true
	resp.Credential = cred
	resp.Account = account

	h.recordActivity(ctx, cred, account)
	h.respond(event, resp)

	return nil
}

func (h *RegisterAccountHandler) validateMessage(event RegisterAccountMessage) map[string]string {
	err := validation.ValidateStruct(&event,
		validation.Field(&event.Username,
			validation.Required,
			validation.Length(h.cfg.GetUsernameMinLength(), 0),
		),
		validation.Field(&event.Email, validation.Required, is.Email),
		validation.Field(&event.Password,
			validation.Required,
			validation.Length(h.cfg.GetPasswordMinLength(), 0),
		),
		validation.Field(&event.PasswordConfirm,
			validation.Required,
			validation.By(func(any) error {
				if event.Password != event.PasswordConfirm {
					return errors.New("passwords do not match")
				}
				return nil
			}),
		),
		validation.Field(&event.FirstName, validation.Required),
		validation.Field(&event.LastName, validation.Required),
	)

	return fieldErrorMap(err)
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, cred *Credential, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventRegistration,
		Actor: ActorRef{
			ID:   cred.ID.String(),
			Type: "user",
		},
		UserID: cred.ID.String(),
		Metadata: map[string]any{
			"account_uuid": account.AccountUUID.String(),
			"account_type": string(account.Type),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}

func (h *RegisterAccountHandler) respond(event RegisterAccountMessage, resp *RegisterAccountResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}

// fieldErrorMap flattens ozzo validation errors into a per-field map
func fieldErrorMap(err error) map[string]string {
	if err == nil {
		return nil
	}

	out := map[string]string{}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["_"] = err.Error()
	return out
}
