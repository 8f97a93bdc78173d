package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/pkg/color"
	"github.com/gitprivacy/git-privacy/pkg/logging"
)

var (
	gitDir     string
	jsonOutput bool
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "git-privacy",
		Short: "Keep your commit timestamps to yourself",
		Long: `git-privacy obscures the author and committer timestamps your commits
carry, while keeping the real ones recoverable: originals are encrypted with
a password-derived key and stored next to the repository metadata.

Commit dates leak working hours, timezone, and behavioral patterns. This tool
reduces or randomizes them before they leave your machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&gitDir, "gitdir", "", "path to the git repository (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "git-privacy: "
	if color.Enabled() {
		prefix = color.Error("git-privacy:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

func setupLogging(level, format string) {
	logging.SetGlobal(logging.New(logging.Level(level), format))
}
