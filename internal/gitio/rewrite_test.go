package gitio_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gitprivacy/git-privacy/internal/gitio"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	scripts []string
	failAt  int // 1-based call number to fail on, 0 = never
	calls   int
}

func (r *recordingRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	r.calls++
	if r.failAt > 0 && r.calls == r.failAt {
		return fmt.Errorf("boom")
	}
	r.scripts = append(r.scripts, args[len(args)-1])
	return nil
}

func targets(n int) []gitio.Retarget {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]gitio.Retarget, n)
	for i := range out {
		out[i] = gitio.Retarget{
			ID:     fmt.Sprintf("commit%02d", i),
			Target: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestRewrite_NewestFirstOrder(t *testing.T) {
	runner := &recordingRunner{}
	w := gitio.NewRewriter("/repo", runner)

	completed, err := w.Rewrite(context.Background(), targets(3), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"commit02", "commit01", "commit00"}, completed)

	// Newest commit's script runs first, keyed by its pre-rewrite id.
	require.Len(t, runner.scripts, 3)
	assert.Contains(t, runner.scripts[0], `"$GIT_COMMIT" = "commit02"`)
	assert.Contains(t, runner.scripts[2], `"$GIT_COMMIT" = "commit00"`)
}

func TestRewrite_ScriptSetsBothDates(t *testing.T) {
	runner := &recordingRunner{}
	w := gitio.NewRewriter("/repo", runner)

	_, err := w.Rewrite(context.Background(), targets(1), nil)
	require.NoError(t, err)

	script := runner.scripts[0]
	assert.Contains(t, script, "GIT_AUTHOR_DATE=\"2023-01-01 00:00:00 +0000\"")
	assert.Contains(t, script, "GIT_COMMITTER_DATE=\"2023-01-01 00:00:00 +0000\"")
}

func TestRewrite_MidFailureReportsCompleted(t *testing.T) {
	runner := &recordingRunner{failAt: 3}
	w := gitio.NewRewriter("/repo", runner)

	completed, err := w.Rewrite(context.Background(), targets(4), nil)
	require.True(t, errors.Is(err, errclass.ErrExternalTool))

	// Newest two completed before the failure; the rest are pending.
	assert.Equal(t, []string{"commit03", "commit02"}, completed)
	assert.True(t, strings.Contains(err.Error(), "commit01"))
}

func TestRewrite_Empty(t *testing.T) {
	runner := &recordingRunner{}
	w := gitio.NewRewriter("/repo", runner)

	completed, err := w.Rewrite(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, completed)
}
