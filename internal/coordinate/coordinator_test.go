package coordinate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gitprivacy/git-privacy/internal/coordinate"
	"github.com/gitprivacy/git-privacy/internal/gitio"
	"github.com/gitprivacy/git-privacy/internal/journal"
	"github.com/gitprivacy/git-privacy/internal/lock"
	"github.com/gitprivacy/git-privacy/internal/vault"
	"github.com/gitprivacy/git-privacy/pkg/config"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
	"github.com/gitprivacy/git-privacy/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var utc = time.UTC

type fakeHistory struct {
	commits []gitio.CommitStamp
}

func (h *fakeHistory) ListOldestFirst() ([]gitio.CommitStamp, error) {
	out := make([]gitio.CommitStamp, len(h.commits))
	copy(out, h.commits)
	return out, nil
}

func (h *fakeHistory) Tip() (*gitio.CommitStamp, error) {
	if len(h.commits) == 0 {
		return nil, nil
	}
	tip := h.commits[len(h.commits)-1]
	return &tip, nil
}

// fakeRewriter swaps the history to its post-rewrite identities, mimicking
// how a timestamp rewrite changes every commit id while preserving order.
type fakeRewriter struct {
	history *fakeHistory
	failAt  int // 1-based pass number to fail on, counted newest-first; 0 = never
}

func (r *fakeRewriter) Rewrite(ctx context.Context, targets []gitio.Retarget, cb progress.Callback) ([]string, error) {
	var completed []string
	for i := len(targets) - 1; i >= 0; i-- {
		pass := len(targets) - i
		if r.failAt > 0 && pass == r.failAt {
			return completed, errclass.ErrExternalTool.WithMessagef("rewrite %s: boom", targets[i].ID)
		}
		completed = append(completed, targets[i].ID)
	}
	rewritten := make([]gitio.CommitStamp, len(targets))
	for i, t := range targets {
		rewritten[i] = gitio.CommitStamp{
			ID:            "new-" + t.ID,
			AuthorDate:    t.Target,
			CommitterDate: t.Target,
		}
	}
	r.history.commits = rewritten
	return completed, nil
}

type fakeStore struct {
	puts map[string][2]time.Time
}

func newFakeStore() *fakeStore { return &fakeStore{puts: make(map[string][2]time.Time)} }

func (s *fakeStore) Put(ctx context.Context, commitID string, authorDate, committerDate time.Time) error {
	s.puts[commitID] = [2]time.Time{authorDate, committerDate}
	return nil
}

type fakeConfirmer struct {
	answer bool
	asked  int
	prompt string
}

func (c *fakeConfirmer) Confirm(prompt string) (bool, error) {
	c.asked++
	c.prompt = prompt
	return c.answer, nil
}

type fixture struct {
	coord     *coordinate.Coordinator
	history   *fakeHistory
	rewriter  *fakeRewriter
	store     *fakeStore
	confirmer *fakeConfirmer
	dir       string
	key       vault.Key
}

func historyOf(n int) []gitio.CommitStamp {
	base := time.Date(2023, 3, 1, 12, 0, 0, 0, utc)
	commits := make([]gitio.CommitStamp, n)
	for i := range commits {
		when := base.Add(time.Duration(i) * 24 * time.Hour)
		commits[i] = gitio.CommitStamp{
			ID:            fmt.Sprintf("orig%02d", i),
			AuthorDate:    when,
			CommitterDate: when.Add(time.Minute),
		}
	}
	return commits
}

func setup(t *testing.T, commits []gitio.CommitStamp) *fixture {
	t.Helper()
	salt, err := vault.GenerateSalt()
	require.NoError(t, err)
	key, err := vault.DeriveKey("correcthorse", salt)
	require.NoError(t, err)

	dir := t.TempDir()
	history := &fakeHistory{commits: commits}
	rewriter := &fakeRewriter{history: history}
	store := newFakeStore()
	confirmer := &fakeConfirmer{answer: true}

	cfg := &config.Config{Password: "correcthorse", Salt: salt}
	cfg.ApplyDefaults(dir)

	coord := coordinate.New(coordinate.Deps{
		Config:     cfg,
		Key:        key,
		History:    history,
		Rewriter:   rewriter,
		Store:      store,
		Confirmer:  confirmer,
		Locks:      lock.NewManager(dir),
		PrivacyDir: dir,
	})
	return &fixture{coord: coord, history: history, rewriter: rewriter, store: store, confirmer: confirmer, dir: dir, key: key}
}

func TestNextStamp_ReduceMode(t *testing.T) {
	f := setup(t, nil)

	now := time.Date(2023, 5, 1, 10, 15, 30, 0, utc)
	got, err := f.coord.NextStamp(now)
	require.NoError(t, err)
	// Default pattern "s" zeroes seconds.
	assert.True(t, got.Equal(time.Date(2023, 5, 1, 10, 15, 0, 0, utc)))
}

func TestNextStamp_NeverRegressesBehindTip(t *testing.T) {
	commits := historyOf(1)
	f := setup(t, commits)

	// now is before the tip's committer date.
	now := commits[0].AuthorDate.Add(-48 * time.Hour)
	got, err := f.coord.NextStamp(now)
	require.NoError(t, err)
	assert.True(t, got.Equal(commits[0].CommitterDate))
}

func TestCapture_StoresRecord(t *testing.T) {
	f := setup(t, nil)

	author := time.Date(2023, 5, 1, 10, 15, 30, 0, utc)
	committer := author.Add(30 * time.Second)
	require.NoError(t, f.coord.Capture(context.Background(), "abc123", author, committer))

	require.Contains(t, f.store.puts, "abc123")
	assert.True(t, f.store.puts["abc123"][0].Equal(author))
	assert.True(t, f.store.puts["abc123"][1].Equal(committer))
}

func TestCheckDrift(t *testing.T) {
	commits := historyOf(1)
	commits[0].CommitterDate = time.Date(2023, 3, 1, 12, 0, 0, 0, time.FixedZone("", 2*3600))
	f := setup(t, commits)

	drifted, tipOffset, localOffset, err := f.coord.CheckDrift(time.Date(2023, 5, 1, 9, 0, 0, 0, utc))
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, 2*3600, tipOffset)
	assert.Equal(t, 0, localOffset)
}

func TestCheckDrift_EmptyHistory(t *testing.T) {
	f := setup(t, nil)
	drifted, _, _, err := f.coord.CheckDrift(time.Now())
	require.NoError(t, err)
	assert.False(t, drifted)
}

func TestRedate_PersistsUnderPostRewriteIDs(t *testing.T) {
	commits := historyOf(3)
	f := setup(t, commits)

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, utc)
	end := time.Date(2023, 1, 10, 0, 0, 0, 0, utc)
	result, err := f.coord.Redate(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, result.CommitCount)
	assert.Len(t, result.Rewritten, 3)
	assert.Empty(t, result.Pending)

	// Originals keyed by the post-rewrite ids, matched by position.
	require.Len(t, f.store.puts, 3)
	for i, original := range commits {
		newID := "new-" + original.ID
		require.Contains(t, f.store.puts, newID, "position %d", i)
		assert.True(t, f.store.puts[newID][0].Equal(original.AuthorDate))
		assert.True(t, f.store.puts[newID][1].Equal(original.CommitterDate))
	}

	// Rewritten history carries the distributed interval endpoints.
	current, err := f.history.ListOldestFirst()
	require.NoError(t, err)
	assert.True(t, current[0].AuthorDate.Equal(start))
	assert.True(t, current[2].AuthorDate.Equal(end))

	// The journal is gone after a completed flow.
	j, err := journal.Load(f.dir)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestRedate_DeclinedIsCleanNoop(t *testing.T) {
	commits := historyOf(2)
	f := setup(t, commits)
	f.confirmer.answer = false

	_, err := f.coord.Redate(context.Background(),
		time.Date(2023, 1, 1, 0, 0, 0, 0, utc), time.Date(2023, 1, 2, 0, 0, 0, 0, utc))
	require.True(t, errors.Is(err, coordinate.ErrAborted))

	assert.Equal(t, 1, f.confirmer.asked)
	assert.Contains(t, f.confirmer.prompt, "backup")
	assert.Empty(t, f.store.puts)

	current, listErr := f.history.ListOldestFirst()
	require.NoError(t, listErr)
	assert.Equal(t, "orig00", current[0].ID, "history untouched")

	j, jErr := journal.Load(f.dir)
	require.NoError(t, jErr)
	assert.Nil(t, j, "no journal left behind")
}

func TestRedate_EndBeforeStartRejectsImmediately(t *testing.T) {
	f := setup(t, historyOf(2))

	_, err := f.coord.Redate(context.Background(),
		time.Date(2023, 1, 10, 0, 0, 0, 0, utc), time.Date(2023, 1, 1, 0, 0, 0, 0, utc))
	require.True(t, errors.Is(err, errclass.ErrRange))
	assert.Equal(t, 0, f.confirmer.asked, "no prompt on invalid bounds")
	assert.Empty(t, f.store.puts)
}

func TestRedate_MidFailureReportsAndKeepsJournal(t *testing.T) {
	commits := historyOf(4)
	f := setup(t, commits)
	f.rewriter.failAt = 3

	result, err := f.coord.Redate(context.Background(),
		time.Date(2023, 1, 1, 0, 0, 0, 0, utc), time.Date(2023, 1, 10, 0, 0, 0, 0, utc))
	require.True(t, errors.Is(err, errclass.ErrExternalTool))
	require.NotNil(t, result)

	// Newest two passes completed before the failure.
	assert.Equal(t, []string{"orig03", "orig02"}, result.Rewritten)
	assert.Equal(t, []string{"orig00", "orig01"}, result.Pending)

	// Recovery store untouched, journal retained for the operator.
	assert.Empty(t, f.store.puts)
	j, jErr := journal.Load(f.dir)
	require.NoError(t, jErr)
	require.NotNil(t, j)
	assert.Len(t, j.Entries, 4)
}

func TestResumePersist_ReplaysJournal(t *testing.T) {
	commits := historyOf(2)
	f := setup(t, commits)

	// A journal captured before a rewrite whose persist step never ran.
	entries := make([]journal.Entry, len(commits))
	for i, commit := range commits {
		authorBlob, err := vault.Encrypt(f.key, commit.AuthorDate.Format("2006-01-02 15:04:05 -0700"))
		require.NoError(t, err)
		committerBlob, err := vault.Encrypt(f.key, commit.CommitterDate.Format("2006-01-02 15:04:05 -0700"))
		require.NoError(t, err)
		entries[i] = journal.Entry{OriginalID: commit.ID, AuthorBlob: authorBlob, CommitterBlob: committerBlob}
	}
	require.NoError(t, journal.Save(f.dir, &journal.Journal{CreatedAt: time.Now(), Entries: entries}))

	// The history now shows post-rewrite identities.
	f.history.commits = []gitio.CommitStamp{
		{ID: "new-orig00", AuthorDate: commits[0].AuthorDate, CommitterDate: commits[0].CommitterDate},
		{ID: "new-orig01", AuthorDate: commits[1].AuthorDate, CommitterDate: commits[1].CommitterDate},
	}

	n, err := f.coord.ResumePersist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Contains(t, f.store.puts, "new-orig00")
	require.Contains(t, f.store.puts, "new-orig01")
	assert.True(t, f.store.puts["new-orig01"][0].Equal(commits[1].AuthorDate))

	j, err := journal.Load(f.dir)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestResumePersist_NothingPending(t *testing.T) {
	f := setup(t, historyOf(1))
	_, err := f.coord.ResumePersist(context.Background())
	require.True(t, errors.Is(err, errclass.ErrConfig))
}

func TestResumePersist_CountMismatch(t *testing.T) {
	f := setup(t, historyOf(3))
	require.NoError(t, journal.Save(f.dir, &journal.Journal{
		CreatedAt: time.Now(),
		Entries:   []journal.Entry{{OriginalID: "only-one"}},
	}))

	_, err := f.coord.ResumePersist(context.Background())
	require.True(t, errors.Is(err, errclass.ErrExternalTool))
}

func TestRedate_LockHeldElsewhere(t *testing.T) {
	f := setup(t, historyOf(2))

	other := lock.NewManager(f.dir)
	_, err := other.Acquire("redate")
	require.NoError(t, err)

	_, err = f.coord.Redate(context.Background(),
		time.Date(2023, 1, 1, 0, 0, 0, 0, utc), time.Date(2023, 1, 2, 0, 0, 0, 0, utc))
	require.True(t, errors.Is(err, errclass.ErrLockConflict))
}

func TestDefaultBounds(t *testing.T) {
	commits := historyOf(3)
	f := setup(t, commits)

	start, end, err := f.coord.DefaultBounds()
	require.NoError(t, err)
	assert.True(t, start.Equal(commits[0].AuthorDate))
	assert.True(t, end.Equal(commits[2].AuthorDate))
}
