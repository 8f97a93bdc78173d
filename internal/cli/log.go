package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/internal/transform"
	"github.com/gitprivacy/git-privacy/pkg/color"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show history with recovered real timestamps",
	Long: `Show a git-log-like history. Commits with a recovery record display
their real date (green) next to the obscured one (red); commits without a
record show their recorded date unmarked.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()
		cfg := requireConfig(repo, true)
		store, _ := requireStore(cfg)
		defer store.Close()

		entries, err := repo.Log()
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		records, err := store.GetAll(context.Background())
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			type jsonEntry struct {
				Commit   string `json:"commit"`
				Author   string `json:"author"`
				Date     string `json:"date"`
				RealDate string `json:"real_date,omitempty"`
			}
			out := make([]jsonEntry, 0, len(entries))
			for _, e := range entries {
				je := jsonEntry{
					Commit: e.ID,
					Author: fmt.Sprintf("%s <%s>", e.AuthorName, e.AuthorEmail),
					Date:   transform.Format(e.AuthorDate),
				}
				if rec, ok := records[e.ID]; ok {
					je.RealDate = transform.Format(rec.AuthorDate)
				}
				out = append(out, je)
			}
			outputJSON(out)
			return
		}

		for _, e := range entries {
			fmt.Println(color.Commit("commit " + e.ID))
			fmt.Printf("Author:\t\t%s <%s>\n", e.AuthorName, e.AuthorEmail)
			if rec, ok := records[e.ID]; ok {
				fmt.Println(color.Obscured("Date:\t\t" + transform.Format(e.AuthorDate)))
				fmt.Println(color.Recovered("RealDate:\t" + transform.Format(rec.AuthorDate)))
			} else {
				fmt.Printf("Date:\t\t%s\n", transform.Format(e.AuthorDate))
			}
			fmt.Printf("\n    %s\n", strings.TrimSpace(e.Message))
		}
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}
