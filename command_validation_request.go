package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ValidationMailTemplate is the template name handed to the Notifier for
// validation links
const ValidationMailTemplate = "email_validation"

// ValidationMailTitle is the subject line for validation mail
const ValidationMailTitle = "Validate your email address"

type ValidationRequestMessage struct {
	AccountUUID uuid.UUID `json:"account_uuid" doc:"Opaque account identifier, as exposed in URLs."`
	OnResponse  func(*ValidationRequestResponse)
}

func (e ValidationRequestMessage) Type() string { return "account.validation_request" }

type ValidationRequestResponse struct {
	Found         bool     `json:"found" doc:"Whether the account exists."`
	Skipped       bool     `json:"skipped" doc:"True when the address was already validated; nothing was issued."`
	Sent          bool     `json:"sent" doc:"Whether the notification was handed off successfully."`
	ValidationURL string   `json:"validation_url,omitempty"`
	Account       *Account `json:"account,omitempty"`
}

// ValidationRequestHandler issues a fresh validation token for an account
// and asks the Notifier to deliver the link. Re-issuing replaces the
// outstanding token, so the previous link stops working. Requesting
// validation for an already validated address is an idempotent no-op.
type ValidationRequestHandler struct {
	repo     RepositoryManager
	issuer   *TokenIssuer
	cfg      Config
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewValidationRequestHandler creates a handler with sane defaults.
func NewValidationRequestHandler(repo RepositoryManager, cfg Config) *ValidationRequestHandler {
	return &ValidationRequestHandler{
		repo:     repo,
		cfg:      cfg,
		issuer:   NewTokenIssuer(cfg.GetValidationTokenLength(), cfg.GetValidationDelay()),
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithNotifier sets the collaborator that delivers the validation mail.
func (h *ValidationRequestHandler) WithNotifier(n Notifier) *ValidationRequestHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit validation events.
func (h *ValidationRequestHandler) WithActivitySink(sink ActivitySink) *ValidationRequestHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ValidationRequestHandler) WithLogger(logger Logger) *ValidationRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ValidationRequestHandler) WithClock(clock func() time.Time) *ValidationRequestHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ValidationRequestHandler) Execute(ctx context.Context, event ValidationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during validation request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ValidationRequestHandler) execute(ctx context.Context, event ValidationRequestMessage) error {
	resp := &ValidationRequestResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account
	var token string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByAccountUUIDTx(ctx, tx, event.AccountUUID)
		if err != nil {
			// an unknown account is part of the expected flow, not an application error
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for validation")
		}

		resp.Found = true
		resp.Account = account

		if account.EmailValidated {
			resp.Skipped = true
			return nil
		}

		token, err = h.issuer.Issue()
		if err != nil {
			return err
		}

		expire := h.issuer.ExpiryFor(h.now())
		if _, err := h.repo.Accounts().SetValidationTokenTx(ctx, tx, account.AccountUUID, token, expire); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist validation token")
		}

		account.EmailValidationToken = &token
		account.ValidationTokenExpire = &expire

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute validation request")
	}

	if !resp.Found || resp.Skipped {
		h.respond(event, resp)
		return nil
	}

	resp.ValidationURL = buildValidationURL(h.cfg, account.AccountUUID.String(), token)
	resp.Sent = h.deliver(ctx, account, resp.ValidationURL)

	h.recordActivity(ctx, account)
	h.respond(event, resp)

	return nil
}

// deliver hands the validation mail to the notifier. A failed delivery is
// logged and reported as Sent=false; the caller simply requests a resend.
func (h *ValidationRequestHandler) deliver(ctx context.Context, account *Account, validationURL string) bool {
	recipient := ""
	fullName := ""
	if account.Credential != nil {
		recipient = account.Credential.Email
		fullName = account.Credential.FullName()
	}

	msg := Notification{
		TemplateName: ValidationMailTemplate,
		Title:        ValidationMailTitle,
		Recipient:    recipient,
		Context: map[string]any{
			"site_host":      h.cfg.GetSiteHost(),
			"full_name":      fullName,
			"validation_url": validationURL,
		},
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, msg); err != nil {
		h.logger.Error("validation mail delivery failed for account %s: %v", account.AccountUUID, err)
		return false
	}

	return true
}

func (h *ValidationRequestHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventValidationRequested,
		Actor: ActorRef{
			ID:   account.CredentialID.String(),
			Type: "user",
		},
		UserID: account.CredentialID.String(),
		Metadata: map[string]any{
			"account_uuid": account.AccountUUID.String(),
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during validation request: %v", err)
	}
}

func (h *ValidationRequestHandler) respond(event ValidationRequestMessage, resp *ValidationRequestResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
