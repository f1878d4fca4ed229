package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calagent application
var rootCmd = &cobra.Command{
	Use:   "calagent",
	Short: "Natural-language agent for Google Calendar with one-step undo",
	Long: `calagent turns natural-language requests into Google Calendar
mutations through an OpenAI-compatible language model.

Every mutation is journaled per session, so the most recent action can
be undone: a created event is deleted, an updated event is restored
from its pre-update snapshot, and a deleted event is recreated.
Deletions are verified against the backend before they are reported as
done.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calagent version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
