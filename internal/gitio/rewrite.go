package gitio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/gitprivacy/git-privacy/internal/transform"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
	"github.com/gitprivacy/git-privacy/pkg/progress"
)

// Runner executes an external command in a directory. Injected so the
// rewrite path is testable without a git binary.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// Env entries appended to the inherited environment.
	Env []string
}

func (e *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.Env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	return nil
}

// Retarget maps one commit to the timestamp it should carry after rewriting.
type Retarget struct {
	ID     string
	Target time.Time
}

// Rewriter rewrites commit timestamp metadata via git filter-branch.
type Rewriter struct {
	root   string
	runner Runner
}

// NewRewriter creates a rewriter for the repository at root.
func NewRewriter(root string, runner Runner) *Rewriter {
	if runner == nil {
		runner = &ExecRunner{Env: []string{"FILTER_BRANCH_SQUELCH_WARNING=1"}}
	}
	return &Rewriter{root: root, runner: runner}
}

// Rewrite sets each commit's author and committer dates to its target value,
// one filter-branch pass per commit. Targets must be in oldest-first order;
// passes run newest-first because rewriting a commit changes the ids of its
// descendants but never of its ancestors, so each remaining original id stays
// matchable until its own pass.
//
// The returned slice names the commits that were rewritten. On failure it
// tells the caller exactly which commits completed versus remain pending,
// since partial rewriting has already altered history.
func (w *Rewriter) Rewrite(ctx context.Context, targets []Retarget, cb progress.Callback) ([]string, error) {
	bar := progress.New("redate", len(targets), cb)
	completed := make([]string, 0, len(targets))
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		script := envFilter(t.ID, transform.Format(t.Target))
		err := w.runner.Run(ctx, w.root, "git", "filter-branch", "-f", "--env-filter", script)
		if err != nil {
			return completed, errclass.ErrExternalTool.WithMessagef("rewrite %s: %v", t.ID, err)
		}
		completed = append(completed, t.ID)
		bar.Increment(shortID(t.ID))
	}
	return completed, nil
}

func envFilter(commitID, date string) string {
	return fmt.Sprintf(
		"if [ \"$GIT_COMMIT\" = \"%s\" ]; then\n"+
			"\texport GIT_AUTHOR_DATE=\"%s\"\n"+
			"\texport GIT_COMMITTER_DATE=\"%s\"\n"+
			"fi", commitID, date, date)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
