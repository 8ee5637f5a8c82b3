package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxfleet/internal/accounts"
	"github.com/teemow/inboxfleet/internal/instrumentation"
	"github.com/teemow/inboxfleet/internal/logging"
)

// Token states reported by List.
const (
	TokenValid   = "valid"
	TokenExpired = "expired"
	TokenRevoked = "no refresh token"
	TokenMissing = "missing"
	TokenCorrupt = "corrupt"
)

// AccountStatus is a registered account with the state of its token file.
type AccountStatus struct {
	Index   int       `json:"index"`
	Email   string    `json:"email"`
	AddedAt time.Time `json:"added_at"`
	Token   string    `json:"token"`
}

// List returns every registered account with its token state. Expired tokens
// that can be refreshed are still usable and reported as TokenExpired.
func (a *App) List(ctx context.Context) ([]AccountStatus, error) {
	list, err := a.registry.List()
	a.metrics.RecordRegistryOperation(ctx, instrumentation.OperationList, instrumentation.Status(err))
	if err != nil {
		return nil, err
	}

	statuses := make([]AccountStatus, 0, len(list))
	for i, account := range list {
		statuses = append(statuses, AccountStatus{
			Index:   i + 1,
			Email:   account.Email,
			AddedAt: account.AddedAt,
			Token:   a.tokenState(account.Email),
		})
	}
	return statuses, nil
}

func (a *App) tokenState(email string) string {
	token, err := a.registry.Token(email)
	var notFound *accounts.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return TokenMissing
	case err != nil:
		return TokenCorrupt
	case token.Valid():
		return TokenValid
	case token.RefreshToken == "":
		return TokenRevoked
	default:
		return TokenExpired
	}
}

// PrintAccounts renders statuses as a table or as JSON.
func PrintAccounts(w io.Writer, statuses []AccountStatus, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, "No accounts registered yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tEMAIL\tADDED\tTOKEN")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Index, s.Email, s.AddedAt.Local().Format(time.DateTime), s.Token)
	}
	return tw.Flush()
}

// ShowAccounts prints the account table and returns the number of accounts.
func (a *App) ShowAccounts(ctx context.Context) (int, error) {
	statuses, err := a.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(statuses), PrintAccounts(a.out, statuses, false)
}

// Add authorizes email in the browser and registers it. Already registered
// addresses are rejected before the browser flow starts.
func (a *App) Add(ctx context.Context, email string) (account accounts.Account, err error) {
	ctx, inv, done := a.startCommand(ctx, instrumentation.OperationAdd)
	inv.WithAccount(email)
	defer func() { done(err) }()

	email, err = accounts.NormalizeEmail(email)
	if err != nil {
		return accounts.Account{}, err
	}
	var notFound *accounts.NotFoundError
	if _, err := a.registry.Get(email); err == nil {
		return accounts.Account{}, &accounts.DuplicateAccountError{Email: email}
	} else if !errors.As(err, &notFound) {
		return accounts.Account{}, err
	}

	credentials, err := a.credentials.Find()
	if err != nil {
		return accounts.Account{}, err
	}

	token, err := a.authorize(ctx, credentials, email)
	if err != nil {
		return accounts.Account{}, err
	}

	account, err = a.registry.Add(email, token)
	a.metrics.RecordRegistryOperation(ctx, instrumentation.OperationAdd, instrumentation.Status(err))
	if err != nil {
		return accounts.Account{}, err
	}

	fmt.Fprintf(a.out, "✓ Added %s\n", account.Email)
	return account, nil
}

func (a *App) authorize(ctx context.Context, credentials, email string) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationAuthorize,
		instrumentation.AccountAttr(logging.AnonymizeEmail(email)))

	start := a.now()
	token, err := a.auth.Authorize(ctx, credentials, email)
	instrumentation.EndSpan(span, err)

	a.metrics.RecordOAuthAuth(ctx, oauthResult(err))
	a.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, instrumentation.OperationAuthorize,
		instrumentation.Status(err), email, a.now().Sub(start))
	return token, err
}

// Remove unregisters email and deletes its token file.
func (a *App) Remove(ctx context.Context, email string) (err error) {
	ctx, inv, done := a.startCommand(ctx, instrumentation.OperationRemove)
	inv.WithAccount(email)
	defer func() { done(err) }()

	err = a.registry.Remove(email)
	a.metrics.RecordRegistryOperation(ctx, instrumentation.OperationRemove, instrumentation.Status(err))
	if err != nil {
		return err
	}

	normalized, _ := accounts.NormalizeEmail(email)
	fmt.Fprintf(a.out, "✓ Removed %s\n", normalized)
	return nil
}

// ConfirmRemove asks before removing email when running interactively.
// Non-interactive runs remove without asking.
func (a *App) ConfirmRemove(ctx context.Context, email string) error {
	if a.interactive {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Are you sure you want to remove %s?", email))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}
	}
	return a.Remove(ctx, email)
}

// ErrInconsistent is returned by Check when the registry and the token files
// disagree.
var ErrInconsistent = errors.New("registry and token files are inconsistent")

// Check prints the divergences between the registry and the token files.
// It returns ErrInconsistent if there are any, or if a token file is corrupt.
func (a *App) Check(ctx context.Context) (err error) {
	ctx, _, done := a.startCommand(ctx, instrumentation.OperationCheck)
	defer func() { done(err) }()

	report, err := a.registry.Check()
	a.metrics.RecordRegistryOperation(ctx, instrumentation.OperationCheck, instrumentation.Status(err))
	if err != nil {
		return err
	}

	for _, account := range report.MissingTokens {
		fmt.Fprintf(a.out, "✗ %s is registered but has no token file; remove it and add it again\n", account.Email)
	}
	for _, account := range report.CorruptTokens {
		fmt.Fprintf(a.out, "✗ %s has a corrupt token file; remove it and add it again\n", account.Email)
	}
	for _, file := range report.OrphanTokens {
		if file.Email == "" {
			fmt.Fprintf(a.out, "✗ %s belongs to no readable account; delete the file\n", file.Path)
			continue
		}
		fmt.Fprintf(a.out, "✗ %s is not registered (%s); delete the file\n", file.Email, file.Path)
	}

	if !report.Consistent() || len(report.CorruptTokens) > 0 {
		return ErrInconsistent
	}
	fmt.Fprintf(a.out, "✓ Registry %s is consistent\n", a.registry.Path())
	return nil
}

func oauthResult(err error) string {
	if err != nil {
		return instrumentation.OAuthResultFailure
	}
	return instrumentation.OAuthResultSuccess
}
