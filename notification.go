package accounts

import (
	"context"
	"fmt"

	"github.com/goliatone/go-print"
)

// Notification is the payload handed to a Notifier. The template name and
// context are opaque to the lifecycle handlers; the sender decides how to
// render and deliver.
type Notification struct {
	TemplateName string         `json:"template_name"`
	Title        string         `json:"title"`
	Recipient    string         `json:"recipient"`
	Context      map[string]any `json:"context"`
}

// Notifier delivers rendered messages to an address. Implementations are
// external collaborators; delivery failures are logged by the lifecycle
// handlers and never surfaced as hard errors.
type Notifier interface {
	Send(ctx context.Context, msg Notification) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, msg Notification) error

// Send implements Notifier
func (f NotifierFunc) Send(ctx context.Context, msg Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LogNotifier writes notifications to the logger instead of delivering
// them. Useful in development and tests.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier builds a LogNotifier, falling back to the default logger
func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier
func (n *LogNotifier) Send(_ context.Context, msg Notification) error {
	n.logger.Info("notification to=%s title=%q template=%s", msg.Recipient, msg.Title, msg.TemplateName)
	n.logger.Debug("notification context: %s", print.MaybePrettyJSON(msg.Context))
	return nil
}

var _ Notifier = (*LogNotifier)(nil)

func buildValidationURL(cfg Config, accountUUID, token string) string {
	return fmt.Sprintf("%s/%s/%s/%s", cfg.GetSiteHost(), cfg.GetValidationPath(), accountUUID, token)
}

func buildPasswordResetURL(cfg Config, resetID string) string {
	return fmt.Sprintf("%s/%s/%s", cfg.GetSiteHost(), cfg.GetPasswordResetPath(), resetID)
}
