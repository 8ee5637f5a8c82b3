package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teemow/inboxfleet/internal/accounts"
)

// menuActions is the command surface the menu drives. App satisfies it;
// tests provide a stub.
type menuActions interface {
	ShowAccounts(ctx context.Context) (int, error)
	Add(ctx context.Context, email string) (accounts.Account, error)
	Remove(ctx context.Context, email string) error
	SendTest(ctx context.Context, to string) ([]SendResult, error)
	ChangePassword(ctx context.Context, selector string, allowBrowser bool) (string, error)
}

const menuText = `
Options:
1. List accounts
2. Add account
3. Remove account
4. Send test email from all accounts
5. Change password helper
6. Exit`

// RunMenu runs the interactive menu until the user chooses exit, input ends
// or ctx is cancelled. Command errors are printed and the menu continues.
func RunMenu(ctx context.Context, a menuActions, p *Prompter) error {
	out := p.Out()
	fmt.Fprintln(out, "inboxfleet - manage Gmail accounts and send test emails")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(out, menuText)
		choice, err := p.Ask("Choose an option")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch choice {
		case "1":
			_, err = a.ShowAccounts(ctx)
		case "2":
			err = menuAdd(ctx, a, p)
		case "3":
			err = menuRemove(ctx, a, p)
		case "4":
			err = menuSend(ctx, a, p)
		case "5":
			err = menuChangePassword(ctx, a, p)
		case "6", "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		default:
			fmt.Fprintf(out, "Unknown option %q, choose 1-6.\n", choice)
			continue
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func menuAdd(ctx context.Context, a menuActions, p *Prompter) error {
	email, err := p.Ask("Enter Gmail address")
	if err != nil {
		return err
	}
	_, err = a.Add(ctx, email)
	return err
}

func menuRemove(ctx context.Context, a menuActions, p *Prompter) error {
	n, err := a.ShowAccounts(ctx)
	if err != nil || n == 0 {
		return err
	}

	email, err := p.Ask("Enter email to remove")
	if err != nil {
		return err
	}
	ok, err := p.Confirm(fmt.Sprintf("Are you sure you want to remove %s?", email))
	if err != nil || !ok {
		return err
	}
	return a.Remove(ctx, email)
}

func menuSend(ctx context.Context, a menuActions, p *Prompter) error {
	n, err := a.ShowAccounts(ctx)
	if err != nil || n == 0 {
		return err
	}

	to, err := p.Ask("Enter recipient email address")
	if err != nil {
		return err
	}
	_, err = a.SendTest(ctx, to)
	return err
}

func menuChangePassword(ctx context.Context, a menuActions, p *Prompter) error {
	n, err := a.ShowAccounts(ctx)
	if err != nil || n == 0 {
		return err
	}

	selector, err := p.Ask("Enter account number or email for password change")
	if err != nil {
		return err
	}
	_, err = a.ChangePassword(ctx, selector, true)
	return err
}
