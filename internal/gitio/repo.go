// Package gitio adapts the external version-control capabilities the core
// depends on: commit enumeration, timestamp reads, repository-scoped
// configuration, and metadata rewriting via the git CLI.
package gitio

import (
	"errors"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitprivacy/git-privacy/pkg/config"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

const configSection = "privacy"

// CommitStamp is one commit's identity and timestamp metadata.
type CommitStamp struct {
	ID            string
	AuthorDate    time.Time
	CommitterDate time.Time
}

// Repo wraps a git repository rooted at a work tree.
type Repo struct {
	root string
	repo *gogit.Repository
}

// Open opens the git repository whose work tree is root.
func Open(root string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("cannot open repository at %s: %v", root, err)
	}
	return &Repo{root: root, repo: repo}, nil
}

// Root returns the work-tree path the repo was opened with.
func (r *Repo) Root() string { return r.root }

// GitDir returns the repository metadata directory.
func (r *Repo) GitDir() string { return filepath.Join(r.root, ".git") }

// ListOldestFirst enumerates the commits reachable from HEAD, oldest first.
// An unborn branch yields an empty slice.
func (r *Repo) ListOldestFirst() ([]CommitStamp, error) {
	head, err := r.head()
	if err != nil || head == nil {
		return nil, err
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("read history: %v", err)
	}
	defer iter.Close()

	var newestFirst []CommitStamp
	err = iter.ForEach(func(c *object.Commit) error {
		newestFirst = append(newestFirst, stampOf(c))
		return nil
	})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("walk history: %v", err)
	}

	out := make([]CommitStamp, len(newestFirst))
	for i, c := range newestFirst {
		out[len(newestFirst)-1-i] = c
	}
	return out, nil
}

// LogEntry is one commit as shown by the history overlay.
type LogEntry struct {
	CommitStamp
	AuthorName  string
	AuthorEmail string
	Message     string
}

// Log enumerates the commits reachable from HEAD, newest first, with the
// metadata the history display needs.
func (r *Repo) Log() ([]LogEntry, error) {
	head, err := r.head()
	if err != nil || head == nil {
		return nil, err
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("read history: %v", err)
	}
	defer iter.Close()

	var out []LogEntry
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, LogEntry{
			CommitStamp: stampOf(c),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Message:     c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("walk history: %v", err)
	}
	return out, nil
}

// Tip returns the commit at HEAD, or nil when the branch has no commits yet.
func (r *Repo) Tip() (*CommitStamp, error) {
	head, err := r.head()
	if err != nil || head == nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("read tip commit: %v", err)
	}
	stamp := stampOf(commit)
	return &stamp, nil
}

// ReachableIDs returns every commit id reachable from any branch tip.
func (r *Repo) ReachableIDs() (map[string]struct{}, error) {
	branches, err := r.repo.Branches()
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("list branches: %v", err)
	}
	defer branches.Close()

	reachable := make(map[string]struct{})
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		iter, err := r.repo.Log(&gogit.LogOptions{From: ref.Hash()})
		if err != nil {
			return err
		}
		defer iter.Close()
		return iter.ForEach(func(c *object.Commit) error {
			reachable[c.Hash.String()] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("walk branches: %v", err)
	}
	return reachable, nil
}

// head resolves HEAD, mapping an unborn branch to (nil, nil). Any other
// resolution failure means unreadable repository state, not an empty branch.
func (r *Repo) head() (*plumbing.Reference, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("resolve HEAD: %v", err)
	}
	return head, nil
}

func stampOf(c *object.Commit) CommitStamp {
	return CommitStamp{
		ID:            c.Hash.String(),
		AuthorDate:    c.Author.When,
		CommitterDate: c.Committer.When,
	}
}

// ReadConfig reads the privacy section of the repository config into the
// typed configuration, applying documented defaults for absent keys.
func (r *Repo) ReadConfig() (*config.Config, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, errclass.ErrConfig.WithMessagef("read repository config: %v", err)
	}
	sec := cfg.Raw.Section(configSection)

	out := &config.Config{
		Password:  sec.Option("password"),
		Salt:      sec.Option("salt"),
		Mode:      sec.Option("mode"),
		Pattern:   sec.Option("pattern"),
		Limit:     sec.Option("limit") == "true",
		StorePath: sec.Option("databasepath"),
	}
	out.ApplyDefaults(r.GitDir())
	return out, nil
}

// WriteSalt persists the non-secret salt into the repository config.
// Called exactly once, when no salt exists yet.
func (r *Repo) WriteSalt(salt string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return errclass.ErrConfig.WithMessagef("read repository config: %v", err)
	}
	cfg.Raw.Section(configSection).SetOption("salt", salt)
	if err := r.repo.SetConfig(cfg); err != nil {
		return errclass.ErrConfig.WithMessagef("write repository config: %v", err)
	}
	return nil
}
