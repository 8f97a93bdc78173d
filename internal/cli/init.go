package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitprivacy/git-privacy/internal/hook"
	"github.com/gitprivacy/git-privacy/pkg/color"
)

var initEnableCheck bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install git-privacy hooks into this repository",
	Long: `Install the post-commit hook that captures each new commit's real
timestamps into the recovery store. With --enable-check, also install a
pre-commit hook warning about timezone drift.

Existing hooks are never overwritten; the hook body is printed instead so
you can merge it by hand.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo := requireRepo()

		hooks := []string{hook.PostCommit}
		if initEnableCheck {
			hooks = append(hooks, hook.PreCommit)
		}

		for _, name := range hooks {
			err := hook.Install(repo.GitDir(), name)
			if errors.Is(err, hook.ErrExists) {
				script, _ := hook.Script(name)
				fmtErr("%v", err)
				fmt.Fprintf(os.Stderr, "\nRemove the hook and rerun, or add the following to it:\n\n%s\n", script)
				continue
			}
			if err != nil {
				fmtErr("install %s hook: %v", name, err)
				os.Exit(1)
			}
			fmt.Printf("Installed %s hook\n", color.Highlight(name))
		}
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initEnableCheck, "enable-check", "c", false, "also run 'check' before each commit")
	rootCmd.AddCommand(initCmd)
}
