package accounts

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// EmailSender delivers a rendered message. Implementations wrap whatever
// mail transport the host application uses.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// EmailSenderFunc adapts a function into an EmailSender.
type EmailSenderFunc func(ctx context.Context, recipient, subject, body string) error

// Send satisfies the EmailSender interface.
func (f EmailSenderFunc) Send(ctx context.Context, recipient, subject, body string) error {
	if f == nil {
		return nil
	}
	return f(ctx, recipient, subject, body)
}

// TemplateNotifier renders notification templates and hands the result to
// an EmailSender. Template names map to files, e.g. "email_validation"
// renders email_validation.html.
type TemplateNotifier struct {
	engine *django.Engine
	sender EmailSender
	logger Logger
}

// NewTemplateNotifier builds a notifier that loads templates from dir.
func NewTemplateNotifier(dir string, sender EmailSender) (*TemplateNotifier, error) {
	engine := django.New(dir, ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load notification templates")
	}

	return &TemplateNotifier{
		engine: engine,
		sender: sender,
		logger: defLogger{},
	}, nil
}

// NewTemplateNotifierFS builds a notifier that loads templates from an
// http.FileSystem, useful with embedded template trees.
func NewTemplateNotifierFS(fs http.FileSystem, sender EmailSender) (*TemplateNotifier, error) {
	engine := django.NewFileSystem(fs, ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load notification templates")
	}

	return &TemplateNotifier{
		engine: engine,
		sender: sender,
		logger: defLogger{},
	}, nil
}

// WithLogger overrides the logger used by the notifier.
func (t *TemplateNotifier) WithLogger(logger Logger) *TemplateNotifier {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Send renders the notification's template and delivers it.
func (t *TemplateNotifier) Send(ctx context.Context, msg Notification) error {
	if t.sender == nil {
		return goerrors.New("notifier has no email sender configured", goerrors.CategoryInternal)
	}

	var body bytes.Buffer
	if err := t.engine.Render(&body, msg.TemplateName, msg.Context); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render notification template").
			WithMetadata(map[string]any{"template": msg.TemplateName})
	}

	if err := t.sender.Send(ctx, msg.Recipient, msg.Title, body.String()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver notification").
			WithMetadata(map[string]any{
				"template":  msg.TemplateName,
				"recipient": msg.Recipient,
			})
	}

	t.logger.Debug("notification %s delivered to %s", msg.TemplateName, msg.Recipient)

	return nil
}

var _ Notifier = (*TemplateNotifier)(nil)
