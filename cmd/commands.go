package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxfleet/internal/app"
	"github.com/teemow/inboxfleet/internal/config"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		Long:  `List every registered account with the date it was added and the state of its token.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(r *runtime) error {
				statuses, err := r.app.List(r.ctx)
				if err != nil {
					return err
				}
				return app.PrintAccounts(cmd.OutOrStdout(), statuses, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the accounts as JSON")
	return cmd
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <email>",
		Short: "Authorize a Gmail account and register it",
		Long: `Open the Google consent page for the account, wait for the browser to
return to a local callback, and store the resulting token.

An OAuth client file (credentials.json, client_secret*.json) for a Desktop app
must be present in the credentials directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(r *runtime) error {
				_, err := r.app.Add(r.ctx, args[0])
				return err
			})
		},
	}
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <email>",
		Short: "Unregister an account and delete its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(r *runtime) error {
				if yes {
					return r.app.Remove(r.ctx, args[0])
				}
				return r.app.ConfirmRemove(r.ctx, args[0])
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSendTestCmd(opts *globalOptions) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "send-test <address>",
		Short: "Send a test email from every registered account",
		Long: `Send a test email to the given address from every registered account.
Expired tokens are refreshed and saved first. A failing account does not stop
the others; the command fails if any account failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := map[string]any{}
			if cmd.Flags().Changed("parallel") {
				extra[config.KeySendParallel] = parallel
			}
			return opts.run(cmd, extra, func(r *runtime) error {
				_, err := r.app.SendTest(r.ctx, args[0])
				return err
			})
		},
	}

	cmd.Flags().IntVar(&parallel, "parallel", 1, "Number of accounts to send from concurrently")
	return cmd
}

func newChangePasswordCmd(opts *globalOptions) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "change-password <number|email>",
		Short: "Generate a new password for an account",
		Long: `Generate a strong password for the account selected by its number in the
list or by email, print instructions, and offer to open the Google password
change page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(r *runtime) error {
				_, err := r.app.ChangePassword(r.ctx, args[0], !noBrowser)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not offer to open the password change page")
	return cmd
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the registry and the token files agree",
		Long: `Report registered accounts without a token file, unreadable token files
and token files of unregistered accounts. Nothing is repaired; the command
fails when a divergence is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, nil, func(r *runtime) error {
				return r.app.Check(r.ctx)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of inboxfleet",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inboxfleet version %s\n", version)
		},
	}
}
