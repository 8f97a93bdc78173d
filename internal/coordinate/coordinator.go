// Package coordinate orchestrates per-commit timestamp capture and bulk
// history redating, binding the transform engine and the recovery store to
// the external version-control capabilities.
package coordinate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitprivacy/git-privacy/internal/gitio"
	"github.com/gitprivacy/git-privacy/internal/journal"
	"github.com/gitprivacy/git-privacy/internal/lock"
	"github.com/gitprivacy/git-privacy/internal/recovery"
	"github.com/gitprivacy/git-privacy/internal/transform"
	"github.com/gitprivacy/git-privacy/internal/vault"
	"github.com/gitprivacy/git-privacy/pkg/config"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
	"github.com/gitprivacy/git-privacy/pkg/logging"
	"github.com/gitprivacy/git-privacy/pkg/progress"
)

// ErrAborted is returned when the operator declines the redate confirmation.
// Aborting before any rewrite is a clean no-op.
var ErrAborted = errors.New("redate aborted by operator")

// History is the version-control read capability.
type History interface {
	ListOldestFirst() ([]gitio.CommitStamp, error)
	Tip() (*gitio.CommitStamp, error)
}

// Rewriter is the version-control rewrite capability. Targets are
// oldest-first; the returned slice names the commits actually rewritten.
type Rewriter interface {
	Rewrite(ctx context.Context, targets []gitio.Retarget, cb progress.Callback) ([]string, error)
}

// Store is the slice of the recovery store the coordinator writes through.
type Store interface {
	Put(ctx context.Context, commitID string, authorDate, committerDate time.Time) error
}

// Confirmer supplies interactive confirmation. Injected so the coordinator
// runs headlessly under test.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Deps wires a Coordinator.
type Deps struct {
	Config     *config.Config
	Key        vault.Key
	History    History
	Rewriter   Rewriter
	Store      Store
	Confirmer  Confirmer
	Locks      *lock.Manager
	PrivacyDir string
	Logger     *logging.Logger
	Progress   progress.Callback
}

// Coordinator drives the two flows: per-commit capture and bulk redate.
type Coordinator struct {
	cfg        *config.Config
	key        vault.Key
	history    History
	rewriter   Rewriter
	store      Store
	confirmer  Confirmer
	locks      *lock.Manager
	privacyDir string
	log        *logging.Logger
	progressCb progress.Callback
}

// New creates a Coordinator from its dependencies.
func New(d Deps) *Coordinator {
	log := d.Logger
	if log == nil {
		log = logging.New(logging.LevelWarn, "text")
	}
	return &Coordinator{
		cfg:        d.Config,
		key:        d.Key,
		history:    d.History,
		rewriter:   d.Rewriter,
		store:      d.Store,
		confirmer:  d.Confirmer,
		locks:      d.Locks,
		privacyDir: d.PrivacyDir,
		log:        log,
		progressCb: d.Progress,
	}
}

// NextStamp computes the obscured timestamp the next commit should carry.
// The result never regresses before the latest timestamp on the branch tip.
func (c *Coordinator) NextStamp(now time.Time) (time.Time, error) {
	mode, err := transform.ParseMode(c.cfg.Mode)
	if err != nil {
		return time.Time{}, err
	}
	pattern, err := transform.ParsePattern(c.cfg.Pattern)
	if err != nil {
		return time.Time{}, err
	}

	var floor time.Time
	tip, err := c.history.Tip()
	if err != nil {
		return time.Time{}, err
	}
	if tip != nil {
		floor = tip.AuthorDate
		if tip.CommitterDate.After(floor) {
			floor = tip.CommitterDate
		}
	}
	return transform.NextTimestamp(mode, pattern, c.cfg.Limit, now, floor), nil
}

// Capture persists a freshly created commit's real timestamps. The store
// write is exclusive but short.
func (c *Coordinator) Capture(ctx context.Context, commitID string, authorDate, committerDate time.Time) error {
	if _, err := c.locks.Acquire("store"); err != nil {
		return err
	}
	defer c.locks.Release()

	if err := c.store.Put(ctx, commitID, authorDate, committerDate); err != nil {
		return err
	}
	c.log.Info("captured commit timestamps", map[string]any{"commit": commitID})
	return nil
}

// CheckDrift reports whether the local UTC offset differs from the offset on
// the most recent commit. Returns false when the branch has no commits.
func (c *Coordinator) CheckDrift(now time.Time) (drifted bool, tipOffset, localOffset int, err error) {
	tip, err := c.history.Tip()
	if err != nil || tip == nil {
		return false, 0, 0, err
	}
	_, tipOffset = tip.CommitterDate.Zone()
	_, localOffset = now.Zone()
	return tipOffset != localOffset, tipOffset, localOffset, nil
}

// RedateResult reports the outcome of a bulk redate.
type RedateResult struct {
	CommitCount int
	// Rewritten lists original commit ids whose metadata was rewritten.
	Rewritten []string
	// Pending lists original commit ids not yet rewritten when a failure
	// stopped the flow.
	Pending []string
}

// Redate rewrites the entire history's timestamps into [start, end] and
// persists the originals keyed by the post-rewrite commit ids.
//
// Ordering is strict: enumerate and capture originals, distribute targets,
// confirm (with a backup warning, since rewriting is irreversible without
// one), journal the captured originals, rewrite, re-enumerate, persist,
// clear the journal. Declining the confirmation is a clean no-op. A failure
// after rewriting leaves the journal behind so ResumePersist can finish the
// flow without re-running the rewrite.
func (c *Coordinator) Redate(ctx context.Context, start, end time.Time) (*RedateResult, error) {
	if end.Before(start) {
		return nil, errclass.ErrRange.WithMessagef("end %s precedes start %s",
			transform.Format(end), transform.Format(start))
	}
	if _, err := c.locks.Acquire("redate"); err != nil {
		return nil, err
	}
	defer c.locks.Release()

	commits, err := c.history.ListOldestFirst()
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, errclass.ErrConfig.WithMessage("no commits to redate")
	}

	targets, err := c.buildTargets(commits, start, end)
	if err != nil {
		return nil, err
	}

	ok, err := c.confirmer.Confirm(fmt.Sprintf(
		"About to rewrite the timestamps of %d commits between %s and %s.\n"+
			"This is irreversible without a prior backup. Continue?",
		len(commits), transform.Format(start), transform.Format(end)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	if err := c.journalOriginals(commits); err != nil {
		return nil, err
	}

	result := &RedateResult{CommitCount: len(commits)}
	rewritten, rewriteErr := c.rewriter.Rewrite(ctx, targets, c.progressCb)
	result.Rewritten = rewritten
	result.Pending = pendingOf(commits, rewritten)
	if rewriteErr != nil {
		// History is partially rewritten; the journal stays behind for
		// the operator. Report exactly what completed.
		c.log.ErrorErr("rewrite failed mid-flow", rewriteErr, map[string]any{
			"rewritten": len(result.Rewritten),
			"pending":   len(result.Pending),
		})
		return result, rewriteErr
	}

	if err := c.persistOriginals(ctx, commits); err != nil {
		return result, err
	}
	if err := journal.Clear(c.privacyDir); err != nil {
		return result, err
	}
	c.log.Info("redate complete", map[string]any{"commits": len(commits)})
	return result, nil
}

// ResumePersist replays a pending journal against the already-rewritten
// history: decrypt the captured originals and store them keyed by the
// post-rewrite ids, matched by oldest-first position.
func (c *Coordinator) ResumePersist(ctx context.Context) (int, error) {
	if _, err := c.locks.Acquire("resume"); err != nil {
		return 0, err
	}
	defer c.locks.Release()

	j, err := journal.Load(c.privacyDir)
	if err != nil {
		return 0, err
	}
	if j == nil {
		return 0, errclass.ErrConfig.WithMessage("no pending redate journal to resume")
	}

	current, err := c.history.ListOldestFirst()
	if err != nil {
		return 0, err
	}
	if len(current) != len(j.Entries) {
		return 0, errclass.ErrExternalTool.WithMessagef(
			"history has %d commits but journal captured %d; cannot match by position",
			len(current), len(j.Entries))
	}

	for i, entry := range j.Entries {
		authorDate, committerDate, err := c.decryptEntry(entry)
		if err != nil {
			return 0, err
		}
		if err := c.store.Put(ctx, current[i].ID, authorDate, committerDate); err != nil {
			return 0, err
		}
	}
	if err := journal.Clear(c.privacyDir); err != nil {
		return 0, err
	}
	return len(j.Entries), nil
}

func (c *Coordinator) buildTargets(commits []gitio.CommitStamp, start, end time.Time) ([]gitio.Retarget, error) {
	dates, err := transform.Distribute(start, end, len(commits))
	if err != nil {
		return nil, err
	}
	targets := make([]gitio.Retarget, len(commits))
	for i, commit := range commits {
		targets[i] = gitio.Retarget{ID: commit.ID, Target: dates[i]}
	}
	return targets, nil
}

// journalOriginals encrypts the captured originals and saves them before any
// history mutation, so an interrupt after rewriting cannot lose them.
func (c *Coordinator) journalOriginals(commits []gitio.CommitStamp) error {
	entries := make([]journal.Entry, len(commits))
	for i, commit := range commits {
		authorBlob, err := vault.Encrypt(c.key, transform.Format(commit.AuthorDate))
		if err != nil {
			return err
		}
		committerBlob, err := vault.Encrypt(c.key, transform.Format(commit.CommitterDate))
		if err != nil {
			return err
		}
		entries[i] = journal.Entry{
			OriginalID:    commit.ID,
			AuthorBlob:    authorBlob,
			CommitterBlob: committerBlob,
		}
	}
	return journal.Save(c.privacyDir, &journal.Journal{
		CreatedAt: time.Now().UTC(),
		Entries:   entries,
	})
}

// persistOriginals re-resolves the commit sequence after rewriting, since
// timestamp changes alter commit identity, and stores the originals keyed by
// the post-rewrite ids. A pure timestamp rewrite preserves oldest-first
// positions, so matching is positional.
func (c *Coordinator) persistOriginals(ctx context.Context, originals []gitio.CommitStamp) error {
	current, err := c.history.ListOldestFirst()
	if err != nil {
		return err
	}
	if len(current) != len(originals) {
		return errclass.ErrExternalTool.WithMessagef(
			"history has %d commits after rewrite, expected %d", len(current), len(originals))
	}

	bar := progress.New("store", len(originals), c.progressCb)
	for i, original := range originals {
		if err := c.store.Put(ctx, current[i].ID, original.AuthorDate, original.CommitterDate); err != nil {
			return err
		}
		bar.Increment(current[i].ID)
	}
	return nil
}

func (c *Coordinator) decryptEntry(entry journal.Entry) (time.Time, time.Time, error) {
	authorText, err := vault.Decrypt(c.key, entry.AuthorBlob)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	committerText, err := vault.Decrypt(c.key, entry.CommitterBlob)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	authorDate, err := transform.Parse(authorText)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	committerDate, err := transform.Parse(committerText)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return authorDate, committerDate, nil
}

func pendingOf(commits []gitio.CommitStamp, rewritten []string) []string {
	done := make(map[string]struct{}, len(rewritten))
	for _, id := range rewritten {
		done[id] = struct{}{}
	}
	var pending []string
	for _, commit := range commits {
		if _, ok := done[commit.ID]; !ok {
			pending = append(pending, commit.ID)
		}
	}
	return pending
}

// DefaultBounds returns the first and last commit timestamps, the
// interactive defaults for a redate interval.
func (c *Coordinator) DefaultBounds() (start, end time.Time, err error) {
	commits, err := c.history.ListOldestFirst()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(commits) == 0 {
		return time.Time{}, time.Time{}, errclass.ErrConfig.WithMessage("no commits in repository")
	}
	return commits[0].AuthorDate, commits[len(commits)-1].AuthorDate, nil
}

// Ensure the production store satisfies the narrow interface.
var _ Store = (*recovery.Store)(nil)
