package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxfleet/internal/accounts"
	"github.com/teemow/inboxfleet/internal/browser"
	"github.com/teemow/inboxfleet/internal/clipboard"
	"github.com/teemow/inboxfleet/internal/gmail"
	"github.com/teemow/inboxfleet/internal/google"
	"github.com/teemow/inboxfleet/internal/instrumentation"
	"github.com/teemow/inboxfleet/internal/logging"
	"github.com/teemow/inboxfleet/internal/password"
)

// Registry is the account store the commands operate on.
type Registry interface {
	Path() string
	List() ([]accounts.Account, error)
	Get(email string) (accounts.Account, error)
	Lookup(selector string) (accounts.Account, error)
	Add(email string, token *oauth2.Token) (accounts.Account, error)
	Remove(email string) error
	Token(email string) (*oauth2.Token, error)
	UpdateToken(email string, token *oauth2.Token) error
	Check() (*accounts.CheckReport, error)
}

// CredentialFinder locates the OAuth client file.
type CredentialFinder interface {
	Find() (string, error)
}

// Deps are the collaborators of an App. Registry, Credentials, Auth, Sender
// and Prompter are required.
type Deps struct {
	Registry    Registry
	Credentials CredentialFinder
	Auth        google.AuthSession
	Sender      gmail.MailSender
	Browser     browser.Opener
	Clipboard   clipboard.Writer
	Prompter    *Prompter

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger

	// Interactive enables confirmation prompts.
	Interactive bool
	// OpenBrowser allows opening the password change page.
	OpenBrowser bool
	// Parallel bounds concurrent sends; values below 1 mean sequential.
	Parallel int
	// PasswordLength is the length of generated passwords.
	PasswordLength int
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// App runs the inboxfleet commands.
type App struct {
	registry    Registry
	credentials CredentialFinder
	auth        google.AuthSession
	sender      gmail.MailSender
	browser     browser.Opener
	clipboard   clipboard.Writer
	prompter    *Prompter
	out         io.Writer

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger

	interactive    bool
	openBrowser    bool
	parallel       int
	passwordLength int
	now            func() time.Time
}

// New validates deps and builds an App.
func New(deps Deps) (*App, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("app: registry is required")
	case deps.Credentials == nil:
		return nil, errors.New("app: credential finder is required")
	case deps.Auth == nil:
		return nil, errors.New("app: auth session is required")
	case deps.Sender == nil:
		return nil, errors.New("app: mail sender is required")
	case deps.Prompter == nil:
		return nil, errors.New("app: prompter is required")
	}

	a := &App{
		registry:       deps.Registry,
		credentials:    deps.Credentials,
		auth:           deps.Auth,
		sender:         deps.Sender,
		browser:        deps.Browser,
		clipboard:      deps.Clipboard,
		prompter:       deps.Prompter,
		out:            deps.Prompter.Out(),
		metrics:        deps.Metrics,
		audit:          deps.Audit,
		logger:         deps.Logger,
		interactive:    deps.Interactive,
		openBrowser:    deps.OpenBrowser && deps.Browser != nil,
		parallel:       deps.Parallel,
		passwordLength: deps.PasswordLength,
		now:            deps.Now,
	}
	if a.metrics == nil {
		a.metrics = &instrumentation.Metrics{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = logging.WithService(a.logger, "app")
	if a.parallel < 1 {
		a.parallel = 1
	}
	if a.passwordLength <= 0 {
		a.passwordLength = password.DefaultLength
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Prompter returns the prompter shared with the interactive menu.
func (a *App) Prompter() *Prompter {
	return a.prompter
}

// startCommand starts the span of a command and its audit record. done ends
// both; the audit record carries the span's trace id.
func (a *App) startCommand(ctx context.Context, command string) (context.Context, *instrumentation.Invocation, func(err error)) {
	ctx, span := instrumentation.StartSpan(ctx, "inboxfleet."+command,
		attribute.String(instrumentation.SpanAttrCommand, command))
	inv := instrumentation.NewInvocation(command).WithSpanContext(ctx)
	return ctx, inv, func(err error) {
		instrumentation.EndSpan(span, err)
		a.audit.Log(ctx, inv.Complete(err))
	}
}
