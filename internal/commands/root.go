package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/buildinfo"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir string
	apiURL    string
	logLevel  string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "spend",
		Short:   "Track personal expenses from the terminal",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", "", "configuration directory (default $SPEND_CONFIG_DIR or the user config dir)")
	pf.StringVar(&opts.apiURL, "api-url", "", "expense API base URL, overrides config and $SPEND_API_URL")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newListCommand(opts),
		newAddCommand(opts),
		newEditCommand(opts),
		newDeleteCommand(opts),
		newCategoriesCommand(opts),
		newDashboardCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newHistoryCommand(opts),
		newConfigCommand(opts),
	)

	return rootCmd
}
