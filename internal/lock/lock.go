// Package lock serializes invocations that touch the recovery store. A bulk
// redate holds the lock for its whole duration; a per-commit capture holds it
// only for its single write.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

const lockFileName = "lock"

// DefaultTTL bounds how long a crashed invocation can wedge the repository.
const DefaultTTL = 10 * time.Minute

// Record describes the current lock holder.
type Record struct {
	PID        int       `json:"pid"`
	Purpose    string    `json:"purpose"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has run out.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Manager guards the privacy directory's lock file.
type Manager struct {
	dir string
	ttl time.Duration
}

// NewManager creates a manager for the given privacy directory.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, ttl: DefaultTTL}
}

// Acquire takes the exclusive lock. A live lock from another invocation
// yields ErrLockConflict; an expired lease is replaced.
func (m *Manager) Acquire(purpose string) (*Record, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := m.path()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock: %w", err)
		}
		existing, readErr := m.read()
		if readErr != nil {
			return nil, fmt.Errorf("read existing lock: %w", readErr)
		}
		if !existing.Expired(time.Now()) {
			return nil, errclass.ErrLockConflict.WithMessagef(
				"repository is locked by pid %d (%s) until %s",
				existing.PID, existing.Purpose, existing.ExpiresAt.Format(time.RFC3339))
		}
		// Stale lease from a dead invocation.
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("recreate lock: %w", err)
		}
	}
	defer file.Close()

	now := time.Now().UTC()
	rec := &Record{
		PID:        os.Getpid(),
		Purpose:    purpose,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	return rec, nil
}

// Release drops the lock. Safe to call when the lock is already gone.
func (m *Manager) Release() error {
	err := os.Remove(m.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (m *Manager) read() (*Record, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}

func (m *Manager) path() string {
	return filepath.Join(m.dir, lockFileName)
}
