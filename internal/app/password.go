package app

import (
	"context"
	"fmt"

	"github.com/teemow/inboxfleet/internal/instrumentation"
	"github.com/teemow/inboxfleet/internal/logging"
	"github.com/teemow/inboxfleet/internal/password"
)

// ChangePassword generates a new password for the account selected by a
// 1-based index or an email, prints it, copies it to the clipboard when one is
// configured, prints instructions, and offers to open
// the Google password change page. The page is only opened when allowBrowser
// is set, browser opening is enabled and an interactive user confirms.
func (a *App) ChangePassword(ctx context.Context, selector string, allowBrowser bool) (pw string, err error) {
	ctx, inv, done := a.startCommand(ctx, instrumentation.OperationPassword)
	defer func() { done(err) }()

	account, err := a.registry.Lookup(selector)
	if err != nil {
		return "", err
	}
	inv.WithAccount(account.Email)

	pw, err = password.Generate(a.passwordLength, password.DefaultPolicy())
	if err != nil {
		return "", err
	}

	url := password.ChangePasswordURL(account.Email)
	fmt.Fprintf(a.out, "Generated password for %s:\n\n    %s\n\n", account.Email, pw)
	a.copyPassword(pw)
	fmt.Fprintln(a.out, "To change the password:")
	fmt.Fprintln(a.out, "1. Copy the password above")
	fmt.Fprintln(a.out, "2. Open the password change page:", url)
	fmt.Fprintln(a.out, "3. Sign in with your current password")
	fmt.Fprintln(a.out, "4. Paste the new password and confirm")
	fmt.Fprintln(a.out, "Devices and apps using this account may need the new password too.")

	if !allowBrowser || !a.openBrowser || !a.interactive {
		return pw, nil
	}

	ok, err := a.prompter.Confirm("Open the password change page in your browser?")
	if err != nil {
		return "", err
	}
	if !ok {
		return pw, nil
	}
	if err := a.browser.Open(url); err != nil {
		a.logger.Warn("could not open browser", logging.Err(err))
		fmt.Fprintf(a.out, "Could not open a browser, please visit %s manually.\n", url)
		return pw, nil
	}
	fmt.Fprintf(a.out, "✓ Opened %s\n", url)
	return pw, nil
}

func (a *App) copyPassword(pw string) {
	if a.clipboard == nil {
		return
	}
	if err := a.clipboard.WriteAll(pw); err != nil {
		a.logger.Warn("could not copy password to clipboard", logging.Err(err))
		fmt.Fprintln(a.out, "Could not copy to clipboard. Please copy the password manually.")
		return
	}
	fmt.Fprintln(a.out, "✓ Password copied to clipboard")
}
