package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxfleet/internal/accounts"
	"github.com/teemow/inboxfleet/internal/google"
	"github.com/teemow/inboxfleet/internal/instrumentation"
	"github.com/teemow/inboxfleet/internal/logging"
)

// ErrSendFailures is returned by SendTest when at least one account failed.
var ErrSendFailures = errors.New("test email failed for some accounts")

// SendResult is the outcome of the test send for one account.
type SendResult struct {
	Email     string
	Refreshed bool
	Err       error
}

// OK reports whether the message was accepted.
func (r SendResult) OK() bool {
	return r.Err == nil
}

// SendTest sends a test email to to from every registered account. A failing
// account does not stop the others; results keep registry order. Up to
// the configured number of accounts are processed concurrently.
func (a *App) SendTest(ctx context.Context, to string) (results []SendResult, err error) {
	ctx, _, done := a.startCommand(ctx, instrumentation.OperationSend)
	defer func() { done(err) }()

	to, err = accounts.NormalizeEmail(to)
	if err != nil {
		return nil, err
	}

	list, err := a.registry.List()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No accounts registered. Please add accounts first.")
		return nil, nil
	}

	fmt.Fprintf(a.out, "Sending test emails to %s from %d account(s)...\n", to, len(list))

	// The OAuth client file is only needed when a token has to be refreshed.
	credentials := sync.OnceValues(a.credentials.Find)

	results = make([]SendResult, len(list))
	var g errgroup.Group
	g.SetLimit(a.parallel)
	for i, account := range list {
		g.Go(func() error {
			results[i] = a.sendOne(ctx, account.Email, to, credentials)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(a.out, "✓ Test email sent from %s to %s\n", r.Email, to)
			continue
		}
		failed++
		fmt.Fprintf(a.out, "✗ %s: %v\n", r.Email, r.Err)
	}
	fmt.Fprintf(a.out, "Results: %d/%d emails sent successfully\n", len(results)-failed, len(results))

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", ErrSendFailures, failed, len(results))
	}
	return results, nil
}

func (a *App) sendOne(ctx context.Context, email, to string, credentials func() (string, error)) SendResult {
	result := SendResult{Email: email}
	logger := logging.WithAccount(a.logger, email)

	token, err := a.registry.Token(email)
	if err != nil {
		logger.Warn("cannot load token", logging.Err(err))
		result.Err = err
		return result
	}

	if !token.Valid() {
		refreshToken := token.RefreshToken
		token, err = a.refresh(ctx, email, token, credentials)
		if err != nil {
			logger.Warn("token refresh failed",
				slog.String("refresh_token", logging.SanitizeToken(refreshToken)),
				logging.Err(err))
			result.Err = err
			return result
		}
		result.Refreshed = true
		logger.Debug("token refreshed",
			slog.String("access_token", logging.SanitizeToken(token.AccessToken)),
			slog.Time("expiry", token.Expiry))
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend,
		instrumentation.AccountAttr(logging.AnonymizeEmail(email)))
	start := a.now()
	err = a.sender.SendTestEmail(ctx, token, email, to)
	instrumentation.EndSpan(span, err)
	a.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationSend,
		instrumentation.Status(err), email, a.now().Sub(start))

	if err != nil {
		logger.Warn("send failed", logging.Err(err))
		result.Err = err
		return result
	}
	logger.Info("test email sent", logging.Duration(a.now().Sub(start)))
	return result
}

// refresh renews an expired token and stores the new one.
func (a *App) refresh(ctx context.Context, email string, token *oauth2.Token, credentials func() (string, error)) (*oauth2.Token, error) {
	path, err := credentials()
	if err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationRefresh,
		instrumentation.AccountAttr(logging.AnonymizeEmail(email)))
	fresh, err := a.auth.Refresh(ctx, path, token)
	instrumentation.EndSpan(span, err)
	if err != nil {
		result := instrumentation.OAuthResultFailure
		var authErr *google.AuthorizationError
		if errors.As(err, &authErr) && authErr.NeedsReauthorization() {
			result = instrumentation.OAuthResultExpired
		}
		a.metrics.RecordOAuthTokenRefresh(ctx, result)
		return nil, err
	}
	a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	err = a.registry.UpdateToken(email, fresh)
	a.metrics.RecordRegistryOperation(ctx, instrumentation.OperationUpdate, instrumentation.Status(err))
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
