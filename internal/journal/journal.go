// Package journal persists the originals captured before a bulk redate so an
// abort between rewriting and persisting stays recoverable: the operator can
// retry the persist step without re-running the rewrite. Timestamps are kept
// encrypted; the journal never holds plaintext.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gitprivacy/git-privacy/pkg/fsutil"
)

const fileName = "redate-journal.json"

// Entry is one commit's captured originals, in oldest-first position order.
// Both dates are encrypted blobs produced by the vault.
type Entry struct {
	OriginalID    string `json:"original_id"`
	AuthorBlob    string `json:"author_blob"`
	CommitterBlob string `json:"committer_blob"`
}

// Journal is the on-disk redate state.
type Journal struct {
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`
}

// Save writes the journal atomically into the privacy directory.
func Save(dir string, j *Journal) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := fsutil.AtomicWrite(filepath.Join(dir, fileName), data, 0600); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Load reads a pending journal. Returns nil when none exists.
func Load(dir string) (*Journal, error) {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse journal: %w", err)
	}
	return &j, nil
}

// Clear removes a completed journal. Safe when none exists.
func Clear(dir string) error {
	err := os.Remove(filepath.Join(dir, fileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}
