package lock_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gitprivacy/git-privacy/internal/lock"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	m := lock.NewManager(t.TempDir())

	rec, err := m.Acquire("redate")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.Equal(t, "redate", rec.Purpose)

	require.NoError(t, m.Release())

	// Lock is free again.
	_, err = m.Acquire("store")
	require.NoError(t, err)
	require.NoError(t, m.Release())
}

func TestAcquire_Conflict(t *testing.T) {
	dir := t.TempDir()
	m1 := lock.NewManager(dir)
	m2 := lock.NewManager(dir)

	_, err := m1.Acquire("redate")
	require.NoError(t, err)

	_, err = m2.Acquire("store")
	require.True(t, errors.Is(err, errclass.ErrLockConflict))
}

func TestAcquire_StealsExpiredLease(t *testing.T) {
	dir := t.TempDir()
	m := lock.NewManager(dir)

	// Simulate a crashed invocation whose lease has run out.
	stale := `{"pid":1,"purpose":"redate","acquired_at":"2020-01-01T00:00:00Z","expires_at":"2020-01-01T00:10:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lock"), []byte(stale), 0644))

	rec, err := m.Acquire("redate")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestRelease_WhenAbsent(t *testing.T) {
	m := lock.NewManager(t.TempDir())
	require.NoError(t, m.Release())
}
