package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL      string
	flagActor       string
	flagOutput      string
	flagPresetsFile string
	flagVerbose     bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dealroom-admin",
		Short: "Deal room permission administration CLI",
		Long: `dealroom-admin inspects the permission tables and manages participant
permissions.

Table commands (presets, catalog, resolve) work offline against the built-in
tables or a --presets-file. Participant commands call the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "API URL (env: DEALROOM_API_URL)")
	root.PersistentFlags().StringVar(&flagActor, "actor", "", "Actor id recorded in the audit log (env: DEALROOM_ACTOR)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&flagPresetsFile, "presets-file", "", "Preset YAML file replacing the built-in tables")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newPresetsCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newParticipantCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show CLI version",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dealroom-admin version %s\n", version)
			fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newAPIClient() (*Client, error) {
	apiURL := flagAPIURL
	if apiURL == "" {
		apiURL = os.Getenv("DEALROOM_API_URL")
	}
	if apiURL == "" {
		return nil, errors.New("API URL not configured: use --api-url or DEALROOM_API_URL")
	}
	actor := flagActor
	if actor == "" {
		actor = os.Getenv("DEALROOM_ACTOR")
	}
	return NewClient(apiURL, actor, flagVerbose), nil
}
