package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/internal/transform"
)

var getstampCmd = &cobra.Command{
	Use:   "getstamp",
	Short: "Print the next obscured timestamp",
	Long: `Compute the timestamp the next commit should carry, per the configured
mode and pattern. Export it as GIT_AUTHOR_DATE and GIT_COMMITTER_DATE before
committing to obscure the dates the commit records; the post-commit hook then
captures the real wall-clock time into the recovery store.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, false)

		coord := newCoordinator(repo, cfg, nil, nil, nil, nil)
		stamp, err := coord.NextStamp(time.Now())
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"stamp": transform.Format(stamp)})
			return
		}
		fmt.Println(transform.Format(stamp))
	},
}

func init() {
	rootCmd.AddCommand(getstampCmd)
}
