package accounts

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	Identifier         string `json:"identifier" doc:"Credential id, email, or username of the authenticated owner."`
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
	OnResponse         func(*ChangePasswordResponse)
}

func (e ChangePasswordMessage) Type() string { return "account.password_change" }

type ChangePasswordResponse struct {
	Changed bool              `json:"changed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ChangePasswordHandler rotates a credential's password after verifying
// the current one. Only the owner can call this; the Identifier comes from
// the authenticated session, never from user input.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	cfg      Config
	activity ActivitySink
	logger   Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, cfg Config) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		cfg:      cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	resp := &ChangePasswordResponse{
		Errors: map[string]string{},
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if errs := h.validateMessage(event); len(errs) > 0 {
		resp.Errors = errs
		h.respond(event, resp)
		return nil
	}

	var credID string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cred, err := h.repo.Credentials().GetByIdentifierTx(ctx, tx, event.Identifier)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.New("credential not found for password change", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential for password change")
		}

		if err := ComparePasswordAndHash(event.CurrentPassword, cred.PasswordHash); err != nil {
			resp.Errors["current_password"] = "current password is incorrect"
			return nil
		}

		hash, err := HashPassword(event.NewPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
		}

		if err := h.repo.Credentials().ResetPasswordTx(ctx, tx, cred.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		credID = cred.ID.String()
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute password change")
	}

	if len(resp.Errors) > 0 {
		h.respond(event, resp)
		return nil
	}

	resp.Changed = true
	h.recordActivity(ctx, credID)
	h.respond(event, resp)

	return nil
}

func (h *ChangePasswordHandler) validateMessage(event ChangePasswordMessage) map[string]string {
	err := validation.ValidateStruct(&event,
		validation.Field(&event.Identifier, validation.Required),
		validation.Field(&event.CurrentPassword, validation.Required),
		validation.Field(&event.NewPassword,
			validation.Required,
			validation.Length(h.cfg.GetPasswordMinLength(), 0),
		),
		validation.Field(&event.NewPasswordConfirm,
			validation.Required,
			validation.By(func(any) error {
				if event.NewPassword != event.NewPasswordConfirm {
					return errors.New("passwords do not match")
				}
				return nil
			}),
		),
	)

	return fieldErrorMap(err)
}

func (h *ChangePasswordHandler) recordActivity(ctx context.Context, credID string) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor: ActorRef{
			ID:   credID,
			Type: "user",
		},
		UserID:     credID,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password change: %v", err)
	}
}

func (h *ChangePasswordHandler) respond(event ChangePasswordMessage, resp *ChangePasswordResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
