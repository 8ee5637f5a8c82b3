package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxfleet/internal/accounts"
	"github.com/teemow/inboxfleet/internal/app"
	"github.com/teemow/inboxfleet/internal/browser"
	"github.com/teemow/inboxfleet/internal/clipboard"
	"github.com/teemow/inboxfleet/internal/config"
	"github.com/teemow/inboxfleet/internal/gmail"
	"github.com/teemow/inboxfleet/internal/google"
	"github.com/teemow/inboxfleet/internal/instrumentation"
	"github.com/teemow/inboxfleet/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// runtime is everything a command needs, built once per invocation.
type runtime struct {
	ctx      context.Context
	app      *app.App
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
}

// run loads the configuration, builds the App and calls fn. extra are config
// overrides from command specific flags. Ctrl-C cancels the context passed
// to fn.
func (o *globalOptions) run(cmd *cobra.Command, extra map[string]any, fn func(r *runtime) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overrides := o.overrides(cmd)
	maps.Copy(overrides, extra)

	r, err := newRuntime(ctx, cmd, config.Options{File: o.configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	defer r.close()

	return fn(r)
}

func newRuntime(ctx context.Context, cmd *cobra.Command, opts config.Options) (*runtime, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Output = cmd.ErrOrStderr()
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	out := cmd.OutOrStdout()
	opener := browser.New()
	sessionOpts := []google.SessionOption{
		google.WithTimeout(cfg.Auth.Timeout),
		google.WithOutput(out),
		google.WithSessionLogger(logger),
	}
	if cfg.Auth.Browser {
		sessionOpts = append(sessionOpts, google.WithBrowser(opener))
	}

	var copier clipboard.Writer
	if cfg.Password.Clipboard {
		copier = clipboard.New()
	}

	a, err := app.New(app.Deps{
		Registry:       accounts.NewRegistry(cfg.Store.Dir, accounts.WithLogger(logger)),
		Credentials:    google.NewCredentialLocator(cfg.Credentials.Dir, cfg.Credentials.File),
		Auth:           google.NewLoopbackSession(sessionOpts...),
		Sender:         gmail.NewSender(gmail.WithLogger(logger)),
		Browser:        opener,
		Clipboard:      copier,
		Prompter:       app.NewPrompter(cmd.InOrStdin(), out),
		Metrics:        provider.Metrics(),
		Audit:          provider.AuditLogger(logger),
		Logger:         logger,
		Interactive:    app.IsInteractive(),
		OpenBrowser:    cfg.Auth.Browser,
		Parallel:       cfg.Send.Parallel,
		PasswordLength: cfg.Password.Length,
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	logger.Debug("configuration loaded",
		logging.Path(cfg.Store.Dir),
		slog.Bool("instrumentation", provider.Enabled()))

	return &runtime{ctx: ctx, app: a, cfg: cfg, logger: logger, provider: provider}, nil
}

// close flushes telemetry. It uses its own deadline since the command
// context may already be cancelled.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}
