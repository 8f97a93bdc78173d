package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/internal/coordinate"
	"github.com/gitprivacy/git-privacy/internal/transform"
	"github.com/gitprivacy/git-privacy/pkg/color"
	"github.com/gitprivacy/git-privacy/pkg/config"
	"github.com/gitprivacy/git-privacy/pkg/progress"
)

var (
	redateStart  string
	redateEnd    string
	redateYes    bool
	redateResume bool
)

var redateCmd = &cobra.Command{
	Use:   "redate",
	Short: "Rewrite all commit timestamps into a new interval",
	Long: `Rewrite every commit's author and committer dates to evenly spaced
values across [start, end], preserving commit order. The original timestamps
are captured first and stored encrypted, keyed by the post-rewrite commit ids.

Without --start/--end the bounds are prompted for, defaulting to the first
and last commit dates. Rewriting history is irreversible without a backup;
a confirmation (or --yes) is required before anything is touched.

If a previous redate was interrupted after the rewrite, --resume persists
the already-captured originals without rewriting again.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, true)
		store, key := requireStore(cfg)
		defer store.Close()

		settings, err := config.LoadSettings(privacyDir(cfg))
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		var confirmer coordinate.Confirmer = terminalConfirmer{}
		if redateYes {
			confirmer = autoConfirmer{}
		}

		var cb progress.Callback
		var bar *progress.Terminal
		coord := newCoordinator(repo, cfg, key, store, confirmer, nil)

		if redateResume {
			n, err := coord.ResumePersist(context.Background())
			if err != nil {
				fmtErr("%v", err)
				os.Exit(1)
			}
			fmt.Printf("Persisted %d recovered timestamps.\n", n)
			return
		}

		start, end, err := resolveBounds(coord)
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		commits, err := repo.ListOldestFirst()
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		if settings.Progress && !jsonOutput {
			bar = progress.NewTerminal("redate", len(commits), true)
			cb = bar.Callback()
		}
		coord = newCoordinator(repo, cfg, key, store, confirmer, cb)

		result, err := coord.Redate(context.Background(), start, end)
		if bar != nil {
			bar.Done("")
		}
		switch {
		case errors.Is(err, coordinate.ErrAborted):
			fmt.Fprintln(os.Stderr, "Aborted. Nothing was changed.")
			os.Exit(1)
		case err != nil && result != nil && len(result.Rewritten) > 0:
			// History was touched; the journal survives for --resume
			// whether the rewrite or the persist step failed.
			fmtErr("%v", err)
			reportPartial(result)
			os.Exit(1)
		case err != nil:
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"commits": result.CommitCount,
				"start":   transform.Format(start),
				"end":     transform.Format(end),
			})
			return
		}
		fmt.Printf("Redated %d commits between %s and %s.\n",
			result.CommitCount, color.Highlight(transform.Format(start)), color.Highlight(transform.Format(end)))
	},
}

// resolveBounds resolves the target interval from flags or interactively,
// defaulting to the first and last commit dates.
func resolveBounds(coord *coordinate.Coordinator) (start, end time.Time, err error) {
	defStart, defEnd, err := coord.DefaultBounds()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	startText := redateStart
	if startText == "" {
		startText, err = promptLine(fmt.Sprintf("Start date [%s]: ", transform.Format(defStart)))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if startText == "" {
		start = defStart
	} else if start, err = transform.Parse(startText); err != nil {
		return time.Time{}, time.Time{}, err
	}

	endText := redateEnd
	if endText == "" {
		endText, err = promptLine(fmt.Sprintf("End date [%s]: ", transform.Format(defEnd)))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endText == "" {
		end = defEnd
	} else if end, err = transform.Parse(endText); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func reportPartial(result *coordinate.RedateResult) {
	fmt.Fprintf(os.Stderr, "\nRewritten (%d):\n", len(result.Rewritten))
	for _, id := range result.Rewritten {
		fmt.Fprintf(os.Stderr, "  %s\n", id)
	}
	if len(result.Pending) > 0 {
		fmt.Fprintf(os.Stderr, "Pending (%d):\n", len(result.Pending))
		for _, id := range result.Pending {
			fmt.Fprintf(os.Stderr, "  %s\n", id)
		}
		fmt.Fprintln(os.Stderr, "\nHistory was partially rewritten.")
	} else {
		fmt.Fprintln(os.Stderr, "\nHistory was rewritten but the originals were not persisted.")
	}
	fmt.Fprintln(os.Stderr, "The captured originals are journaled; after resolving the failure,")
	fmt.Fprintln(os.Stderr, "run 'git-privacy redate --resume' to persist them.")
}

func init() {
	redateCmd.Flags().StringVar(&redateStart, "start", "", "start of the target interval")
	redateCmd.Flags().StringVar(&redateEnd, "end", "", "end of the target interval")
	redateCmd.Flags().BoolVar(&redateYes, "yes", false, "skip the interactive confirmation")
	redateCmd.Flags().BoolVar(&redateResume, "resume", false, "persist originals from an interrupted redate")
	rootCmd.AddCommand(redateCmd)
}
