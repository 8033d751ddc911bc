package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_ACCOUNT_STATE"
)

// ErrInvalidTransition is returned when a requested state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from an archived account.
var ErrTerminalState = goerrors.New("account state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// AccountState is the derived lifecycle position of an account. It is not
// stored; it is computed from the validation flags and token fields so the
// transition rules and the persisted booleans can never disagree.
type AccountState string

const (
	// StateUnverified: registered, email not validated, no token outstanding
	StateUnverified AccountState = "unverified"
	// StatePending: email not validated, a validation token is outstanding
	StatePending AccountState = "pending"
	// StateActive: email validated and login eligible
	StateActive AccountState = "active"
	// StateSuspended: email validated but deactivated by an operator
	StateSuspended AccountState = "suspended"
	// StateArchived: soft deleted, terminal
	StateArchived AccountState = "archived"
)

// StateOf derives the lifecycle state from the persisted flags
func StateOf(a *Account) AccountState {
	switch {
	case a == nil:
		return ""
	case a.DeletedAt != nil:
		return StateArchived
	case a.EmailValidated && a.IsActive:
		return StateActive
	case a.EmailValidated:
		return StateSuspended
	case a.EmailValidationToken != nil:
		return StatePending
	default:
		return StateUnverified
	}
}

// TransitionHook is executed after a lifecycle transition is persisted.
type TransitionHook func(ctx context.Context, from, to AccountState, account *Account) error

// LifecycleOption customizes the lifecycle manager.
type LifecycleOption func(*AccountLifecycle)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(l *AccountLifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithLifecycleActivitySink sets the sink used to publish lifecycle events.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(l *AccountLifecycle) {
		l.activitySink = normalizeActivitySink(sink)
	}
}

// WithLifecycleLogger overrides the logger used for sink failures.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *AccountLifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTransitionHook registers a hook run after each persisted transition.
func WithTransitionHook(h TransitionHook) LifecycleOption {
	return func(l *AccountLifecycle) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

// AccountLifecycle owns the transition graph for account states. The email
// validation flow moves accounts forward through it; Suspend and Reinstate
// are the only operator-facing transitions. There is no path back to
// unverified or pending once an address has been validated.
type AccountLifecycle struct {
	repo         RepositoryManager
	transitions  map[AccountState]map[AccountState]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	hooks        []TransitionHook
}

// NewAccountLifecycle returns the default lifecycle manager backed by the
// provided repositories.
func NewAccountLifecycle(repo RepositoryManager, opts ...LifecycleOption) *AccountLifecycle {
	l := &AccountLifecycle{
		repo: repo,
		transitions: map[AccountState]map[AccountState]struct{}{
			StateUnverified: {
				StatePending:  {},
				StateArchived: {},
			},
			StatePending: {
				StatePending:  {}, // reissue replaces the outstanding token
				StateActive:   {},
				StateArchived: {},
			},
			StateActive: {
				StateSuspended: {},
				StateArchived:  {},
			},
			StateSuspended: {
				StateActive:   {},
				StateArchived: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// CanTransition reports whether moving from one state to another is legal
func (l *AccountLifecycle) CanTransition(from, to AccountState) error {
	if from == StateArchived {
		return ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	targets, ok := l.transitions[from]
	if !ok {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	if _, ok := targets[to]; !ok {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	return nil
}

// Suspend deactivates a validated account without touching its validation
// state.
func (l *AccountLifecycle) Suspend(ctx context.Context, actor ActorRef, account *Account) (*Account, error) {
	return l.setActive(ctx, actor, account, false, StateSuspended)
}

// Reinstate re-activates a suspended account.
func (l *AccountLifecycle) Reinstate(ctx context.Context, actor ActorRef, account *Account) (*Account, error) {
	return l.setActive(ctx, actor, account, true, StateActive)
}

func (l *AccountLifecycle) setActive(ctx context.Context, actor ActorRef, account *Account, active bool, target AccountState) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "account is nil",
		})
	}

	from := StateOf(account)
	if err := l.CanTransition(from, target); err != nil {
		return nil, err
	}

	updated, err := l.repo.Accounts().SetActive(ctx, account.ID, active)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist account state transition")
	}

	// flip the credential gate alongside the account, retry-safe
	if err := l.repo.Credentials().SetActive(ctx, account.CredentialID, active); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update credential active flag")
	}

	account.IsActive = active
	if updated != nil {
		updated.EmailValidated = account.EmailValidated
		updated.CredentialID = account.CredentialID
		account = updated
	}

	for _, hook := range l.hooks {
		if err := hook(ctx, from, target, account); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "account transition hook failed")
		}
	}

	l.record(ctx, actor, account, from, target)

	return account, nil
}

func (l *AccountLifecycle) record(ctx context.Context, actor ActorRef, account *Account, from, to AccountState) {
	event := ActivityEvent{
		EventType: ActivityEventAccountStatusChanged,
		Actor:     actor,
		UserID:    account.CredentialID.String(),
		FromState: from,
		ToState:   to,
		Metadata: map[string]any{
			"account_uuid": account.AccountUUID.String(),
		},
		OccurredAt: l.now(),
	}

	if err := normalizeActivitySink(l.activitySink).Record(ctx, event); err != nil {
		l.logger.Warn("activity sink error during account transition: %v", err)
	}
}
