package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Prune records for commits that no longer exist",
	Long: `Delete every recovery record whose commit is no longer reachable from
any branch tip. Rebases, history rewrites, and branch deletion all strand
records; clean garbage-collects them.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, true)
		store, _ := requireStore(cfg)
		defer store.Close()

		reachable, err := repo.ReachableIDs()
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		removed, err := store.Clean(context.Background(), reachable)
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"removed": removed})
			return
		}
		fmt.Printf("Removed %d stale records.\n", removed)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
