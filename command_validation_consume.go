package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User-facing outcome messages for token consumption. Invalid identifier,
// unknown account, and mismatched token all collapse into the same message
// so the endpoint never leaks which part was wrong.
const (
	ValidationMsgValidated = "Email validated"
	ValidationMsgExpired   = "Token has expired"
	ValidationMsgInvalid   = "Invalid data"
	ValidationMsgMissing   = "Invalid data. Account or token missing"
)

type ValidationConsumeMessage struct {
	AccountUUID uuid.UUID `json:"account_uuid"`
	Token       string    `json:"token"`
	OnResponse  func(*ValidationConsumeResponse)
}

func (e ValidationConsumeMessage) Type() string { return "account.validation_consume" }

type ValidationConsumeResponse struct {
	Validated bool     `json:"validated"`
	// AlreadyValidated marks the idempotent double-consume outcome: the
	// account is fine, this particular request just changed nothing.
	AlreadyValidated bool     `json:"already_validated,omitempty"`
	Message          string   `json:"message"`
	Account          *Account `json:"account,omitempty"`
}

// ValidationConsumeHandler redeems a validation token. The activating
// write is conditioned on (account_uuid, token) still matching, so of two
// racing requests at most one reports success; the loser sees a no-op.
// The token is accepted up to and including its expiry instant and only
// strictly later reports expiry. An expired token is left in place; a
// resend replaces it.
type ValidationConsumeHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewValidationConsumeHandler creates a handler with sane defaults.
func NewValidationConsumeHandler(repo RepositoryManager) *ValidationConsumeHandler {
	return &ValidationConsumeHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit validation events.
func (h *ValidationConsumeHandler) WithActivitySink(sink ActivitySink) *ValidationConsumeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ValidationConsumeHandler) WithLogger(logger Logger) *ValidationConsumeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ValidationConsumeHandler) WithClock(clock func() time.Time) *ValidationConsumeHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ValidationConsumeHandler) Execute(ctx context.Context, event ValidationConsumeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during validation consume",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ValidationConsumeHandler) execute(ctx context.Context, event ValidationConsumeMessage) error {
	resp := &ValidationConsumeResponse{
		Message: ValidationMsgInvalid,
	}

	// fail closed before touching storage
	if event.AccountUUID == uuid.Nil || event.Token == "" {
		resp.Message = ValidationMsgMissing
		h.respond(event, resp)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByAccountUUIDTx(ctx, tx, event.AccountUUID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// same message as a token mismatch, no existence leak
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for validation")
		}

		if !account.TokenMatches(event.Token) {
			if account.EmailValidated {
				resp.AlreadyValidated = true
			}
			return nil
		}

		if account.TokenExpired(h.now()) {
			// the token stays in place; only an explicit resend replaces it
			resp.Message = ValidationMsgExpired
			return nil
		}

		updated, applied, err := h.repo.Accounts().ConsumeValidationTokenTx(ctx, tx, event.AccountUUID, event.Token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply validation update")
		}

		if !applied {
			// lost the race against a concurrent consume
			resp.AlreadyValidated = true
			return nil
		}

		if err := h.repo.Credentials().SetActiveTx(ctx, tx, account.CredentialID, true); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate credential")
		}

		updated.CredentialID = account.CredentialID
		updated.Credential = account.Credential
		account = updated

		resp.Validated = true
		resp.Message = ValidationMsgValidated
		resp.Account = account

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute validation consume")
	}

	if resp.Validated {
		h.recordActivity(ctx, account)
	}

	h.respond(event, resp)

	return nil
}

func (h *ValidationConsumeHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventValidationConsumed,
		Actor: ActorRef{
			ID:   account.CredentialID.String(),
			Type: "user",
		},
		UserID:    account.CredentialID.String(),
		FromState: StatePending,
		ToState:   StateActive,
		Metadata: map[string]any{
			"account_uuid": account.AccountUUID.String(),
		},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during validation consume: %v", err)
	}
}

func (h *ValidationConsumeHandler) respond(event ValidationConsumeMessage, resp *ValidationConsumeResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
