package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxfleet/internal/app"
	"github.com/teemow/inboxfleet/internal/config"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI
func SetVersion(v string) {
	version = v
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configFile  string
	storeDir    string
	credentials string
	logLevel    string
	logFormat   string
}

// overrides returns the config values of the global flags the user set.
func (o *globalOptions) overrides(cmd *cobra.Command) map[string]any {
	flags := cmd.Flags()
	ov := map[string]any{}
	if flags.Changed("store-dir") {
		ov[config.KeyStoreDir] = o.storeDir
	}
	if flags.Changed("credentials") {
		ov[config.KeyCredentialsFile] = o.credentials
	}
	if flags.Changed("log-level") {
		ov[config.KeyLogLevel] = o.logLevel
	}
	if flags.Changed("log-format") {
		ov[config.KeyLogFormat] = o.logFormat
	}
	return ov
}

// legacyFlags are the single-dash-style root flags kept for scripts written
// against the flag interface.
var legacyFlags = []string{"list", "add", "remove", "send-test", "change-password", "check"}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var (
		list, check                            bool
		add, remove, sendTest, changePassword string
	)

	rootCmd := &cobra.Command{
		Use:   "inboxfleet",
		Short: "Manage several Gmail accounts and send test emails from all of them",
		Long: `inboxfleet keeps OAuth tokens for several Gmail accounts in a local
registry. It can authorize new accounts in the browser, send a test email
from every account to check they still work, and help rotating passwords.

Without arguments an interactive menu is started.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return opts.run(cmd, nil, func(r *runtime) error {
				ctx, a := r.ctx, r.app
				switch {
				case flags.Changed("list"):
					_, err := a.ShowAccounts(ctx)
					return err
				case flags.Changed("add"):
					_, err := a.Add(ctx, add)
					return err
				case flags.Changed("remove"):
					return a.Remove(ctx, remove)
				case flags.Changed("send-test"):
					_, err := a.SendTest(ctx, sendTest)
					return err
				case flags.Changed("change-password"):
					_, err := a.ChangePassword(ctx, changePassword, true)
					return err
				case flags.Changed("check"):
					return a.Check(ctx)
				default:
					return app.RunMenu(ctx, a, a.Prompter())
				}
			})
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "inboxfleet version %s\n" .Version}}`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", fmt.Sprintf("YAML config file (default %s when present)", config.DefaultFile))
	pf.StringVar(&opts.storeDir, "store-dir", "", "Directory holding the account registry and token files (default .tokens)")
	pf.StringVar(&opts.credentials, "credentials", "", "OAuth client file to use instead of searching for one")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (default text)")

	f := rootCmd.Flags()
	f.BoolVar(&list, "list", false, "List all accounts")
	f.StringVar(&add, "add", "", "Add a new Gmail account")
	f.StringVar(&remove, "remove", "", "Remove an account")
	f.StringVar(&sendTest, "send-test", "", "Send a test email from all accounts to this address")
	f.StringVar(&changePassword, "change-password", "", "Generate a password for the account with this number or email")
	f.BoolVar(&check, "check", false, "Check that the registry and the token files agree")
	rootCmd.MarkFlagsMutuallyExclusive(legacyFlags...)

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newAddCmd(opts))
	rootCmd.AddCommand(newRemoveCmd(opts))
	rootCmd.AddCommand(newSendTestCmd(opts))
	rootCmd.AddCommand(newChangePasswordCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
