// Package app implements the inboxfleet commands on top of the account
// registry, the OAuth session and the Gmail sender.
//
// An App is built once at startup with all of its collaborators and is
// shared by the cobra commands and the interactive menu:
//
//	a, err := app.New(app.Deps{
//		Registry:    registry,
//		Credentials: google.NewCredentialLocator(cfg.Credentials.Dir, cfg.Credentials.File),
//		Auth:        google.NewLoopbackSession(),
//		Sender:      gmail.NewSender(),
//		Browser:     browser.New(),
//		Clipboard:   clipboard.New(),
//		Prompter:    app.NewPrompter(os.Stdin, os.Stdout),
//	})
//
// User-facing results are written to the prompter's output; diagnostics go to
// the logger.
package app
