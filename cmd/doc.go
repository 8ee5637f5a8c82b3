// Package cmd implements the command-line interface for inboxfleet.
//
// This package provides the following commands:
//   - list: Show registered accounts and the state of their tokens
//   - add: Authorize a Gmail account in the browser and register it
//   - remove: Unregister an account and delete its token
//   - send-test: Send a test email from every registered account
//   - change-password: Generate a password and open the Google change page
//   - check: Report divergences between the registry and the token files
//   - version: Display version information
//
// The same operations are available as flags on the root command
// (--list, --add, --remove, --send-test, --change-password, --check). Without
// arguments an interactive menu is started.
package cmd
