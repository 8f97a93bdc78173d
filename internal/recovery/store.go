// Package recovery persists the encrypted mapping from commit ids to their
// original timestamps. Plaintext timestamps never touch disk; only the
// encrypted blobs and the non-secret salt are stored.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gitprivacy/git-privacy/internal/transform"
	"github.com/gitprivacy/git-privacy/internal/vault"
	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

const schema = `
CREATE TABLE IF NOT EXISTS commits (
	hash           TEXT PRIMARY KEY,
	author_date    TEXT NOT NULL,
	committer_date TEXT NOT NULL
);`

// Pragmas applied on open. WAL plus the busy timeout give short writers the
// exclusivity contract without blocking concurrent readers.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

// Record holds a commit's decrypted original timestamps.
type Record struct {
	AuthorDate    time.Time
	CommitterDate time.Time
}

// Store is the encrypted recovery store.
type Store struct {
	db     *sql.DB
	key    vault.Key
	closed bool
}

// Open opens (creating if needed) the recovery store at path.
func Open(path string, key vault.Key) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errclass.ErrStorage.WithMessagef("create store dir: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errclass.ErrStorage.WithMessagef("open store: %v", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errclass.ErrStorage.WithMessagef("apply pragma: %v", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errclass.ErrStorage.WithMessagef("create schema: %v", err)
	}
	return &Store{db: db, key: key}, nil
}

// Put encrypts both timestamps and inserts-or-replaces the record keyed by
// commitID. Re-storing the same id overwrites, never duplicates.
func (s *Store) Put(ctx context.Context, commitID string, authorDate, committerDate time.Time) error {
	if s.closed {
		return errclass.ErrStorage.WithMessage("store is closed")
	}
	authorBlob, err := vault.Encrypt(s.key, transform.Format(authorDate))
	if err != nil {
		return err
	}
	committerBlob, err := vault.Encrypt(s.key, transform.Format(committerDate))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO commits (hash, author_date, committer_date) VALUES (?, ?, ?)`,
		commitID, authorBlob, committerBlob)
	if err != nil {
		return errclass.ErrStorage.WithMessagef("put %s: %v", commitID, err)
	}
	return nil
}

// GetAll decrypts every record. A record the configured secret cannot
// decrypt surfaces ErrAuthentication; an empty store returns an empty map.
// Callers can always tell "wrong password" from "no data".
func (s *Store) GetAll(ctx context.Context) (map[string]Record, error) {
	if s.closed {
		return nil, errclass.ErrStorage.WithMessage("store is closed")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT hash, author_date, committer_date FROM commits`)
	if err != nil {
		return nil, errclass.ErrStorage.WithMessagef("query records: %v", err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var hash, authorBlob, committerBlob string
		if err := rows.Scan(&hash, &authorBlob, &committerBlob); err != nil {
			return nil, errclass.ErrStorage.WithMessagef("scan record: %v", err)
		}
		rec, err := s.decryptRecord(authorBlob, committerBlob)
		if err != nil {
			if errors.Is(err, errclass.ErrAuthentication) {
				return nil, errclass.ErrAuthentication.WithMessagef("cannot decrypt record for %s (wrong password or tampered store)", hash)
			}
			return nil, err
		}
		out[hash] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, errclass.ErrStorage.WithMessagef("iterate records: %v", err)
	}
	return out, nil
}

func (s *Store) decryptRecord(authorBlob, committerBlob string) (Record, error) {
	authorText, err := vault.Decrypt(s.key, authorBlob)
	if err != nil {
		return Record{}, err
	}
	committerText, err := vault.Decrypt(s.key, committerBlob)
	if err != nil {
		return Record{}, err
	}
	authorDate, err := transform.Parse(authorText)
	if err != nil {
		return Record{}, fmt.Errorf("decode author date: %w", err)
	}
	committerDate, err := transform.Parse(committerText)
	if err != nil {
		return Record{}, fmt.Errorf("decode committer date: %w", err)
	}
	return Record{AuthorDate: authorDate, CommitterDate: committerDate}, nil
}

// Clean deletes every record whose id is not in validIDs and reports how many
// records were removed. Used to garbage-collect entries for commits pruned by
// rebase, history rewriting, or branch deletion.
func (s *Store) Clean(ctx context.Context, validIDs map[string]struct{}) (int, error) {
	if s.closed {
		return 0, errclass.ErrStorage.WithMessage("store is closed")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errclass.ErrStorage.WithMessagef("begin clean: %v", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT hash FROM commits`)
	if err != nil {
		return 0, errclass.ErrStorage.WithMessagef("list records: %v", err)
	}
	var stale []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			rows.Close()
			return 0, errclass.ErrStorage.WithMessagef("scan hash: %v", err)
		}
		if _, ok := validIDs[hash]; !ok {
			stale = append(stale, hash)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errclass.ErrStorage.WithMessagef("iterate hashes: %v", err)
	}
	rows.Close()

	for _, hash := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE hash = ?`, hash); err != nil {
			return 0, errclass.ErrStorage.WithMessagef("delete %s: %v", hash, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errclass.ErrStorage.WithMessagef("commit clean: %v", err)
	}
	return len(stale), nil
}

// Close releases the underlying handle. Idempotent.
func (s *Store) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return errclass.ErrStorage.WithMessagef("close store: %v", err)
	}
	return nil
}
