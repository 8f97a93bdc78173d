package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/internal/transform"
)

var storeCmd = &cobra.Command{
	Use:   "store <hash> <author-date> <committer-date>",
	Short: "Store a commit's real timestamps in the recovery store",
	Long: `Insert one recovery record directly. The post-commit hook calls this
with the new commit's id and its two real timestamps; the record is encrypted
before it touches disk.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, true)
		store, key := requireStore(cfg)
		defer store.Close()

		authorDate, err := transform.Parse(args[1])
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		committerDate, err := transform.Parse(args[2])
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		coord := newCoordinator(repo, cfg, key, store, nil, nil)
		if err := coord.Capture(context.Background(), args[0], authorDate, committerDate); err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
}
