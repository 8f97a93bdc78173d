// Package hook installs the git hooks that trigger per-commit capture and
// the timezone-drift check.
package hook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Hook names.
const (
	PostCommit = "post-commit"
	PreCommit  = "pre-commit"
)

// ErrExists is returned when a hook file is already present. The caller is
// expected to show the script so the operator can merge it by hand.
var ErrExists = errors.New("hook already exists")

const postCommitScript = `#!/bin/sh
# git-privacy: capture this commit's real timestamps into the recovery store.
# The commit's own recorded dates may already be obscured (getstamp), so the
# real time is the wall clock at commit, not what the commit carries.
hash=$(git rev-parse HEAD)
now=$(date '+%Y-%m-%d %H:%M:%S %z')
git-privacy store "$hash" "$now" "$now"
`

const preCommitScript = `#!/bin/sh
# git-privacy: warn when the local timezone differs from the last commit's.
git-privacy check
`

// Script returns the shell body for a hook name.
func Script(name string) (string, error) {
	switch name {
	case PostCommit:
		return postCommitScript, nil
	case PreCommit:
		return preCommitScript, nil
	}
	return "", fmt.Errorf("unknown hook %q", name)
}

// Install writes the named hook into gitDir/hooks, mode 755. An existing
// hook is never overwritten; ErrExists is returned instead.
func Install(gitDir, name string) error {
	script, err := Script(name)
	if err != nil {
		return err
	}
	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("create hooks dir: %w", err)
	}
	path := filepath.Join(hooksDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0755)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w at %s", ErrExists, path)
		}
		return fmt.Errorf("create hook: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(script); err != nil {
		os.Remove(path)
		return fmt.Errorf("write hook: %w", err)
	}
	return nil
}
