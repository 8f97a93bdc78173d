package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/pkg/color"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Warn when your timezone differs from the last commit's",
	Long: `Compare the local UTC offset with the offset recorded on the most
recent commit. A difference means your next commit would reveal that you
changed timezones.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, false)

		coord := newCoordinator(repo, cfg, nil, nil, nil, nil)
		drifted, tipOffset, localOffset, err := coord.CheckDrift(time.Now())
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"drifted":            drifted,
				"last_commit_offset": tipOffset,
				"local_offset":       localOffset,
			})
			return
		}
		if drifted {
			fmt.Fprintln(os.Stderr, color.Warning("Warning: your timezone has changed since the last commit."))
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
