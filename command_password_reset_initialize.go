package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PasswordResetMailTemplate is the template name handed to the Notifier
// for reset links
const PasswordResetMailTemplate = "password_reset"

// PasswordResetMailTitle is the subject line for reset mail
const PasswordResetMailTitle = "Reset your password"

type InitializePasswordResetMessage struct {
	Email      string `json:"email" doc:"Address the reset link should go to."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetResponse always reports EmailSent=true for a
// well-formed request, whether or not the address is known. An unknown
// address must be indistinguishable from a known one to the caller.
type InitializePasswordResetResponse struct {
	Reset     *PasswordReset
	EmailSent bool
}

// InitializePasswordResetHandler records a reset request and asks the
// Notifier to deliver the link.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	cfg      Config
	notifier Notifier
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, cfg Config) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		cfg:      cfg,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the collaborator that delivers the reset mail.
func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	reset := &PasswordReset{}
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cred, err := h.repo.Credentials().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// report the same outcome as a known address
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential for password reset")
		}

		reset.CredentialID = &cred.ID
		reset.Email = event.Email
		reset.Status = ResetRequestedStatus
		if createdReset, err := h.repo.PasswordResets().CreateTx(ctx, tx, reset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		} else {
			resp.Reset = createdReset
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if resp.Reset != nil {
		h.deliver(ctx, resp.Reset)
	}

	resp.EmailSent = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) deliver(ctx context.Context, reset *PasswordReset) {
	msg := Notification{
		TemplateName: PasswordResetMailTemplate,
		Title:        PasswordResetMailTitle,
		Recipient:    reset.Email,
		Context: map[string]any{
			"site_host": h.cfg.GetSiteHost(),
			"reset_url": buildPasswordResetURL(h.cfg, reset.ID.String()),
		},
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, msg); err != nil {
		h.logger.Error("password reset mail delivery failed for %s: %v", reset.Email, err)
	}
}
