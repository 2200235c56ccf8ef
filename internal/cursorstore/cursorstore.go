// Package cursorstore persists the dispatcher's firehose cursor
// (time_us of the last dispatched event) so a restart resumes close to
// where it left off instead of replaying the whole stream.
package cursorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCursor = []byte("cursor")

var keyCursor = []byte("time_us")

// Store wraps a single-purpose BoltDB database holding the cursor value.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store backing the cursor.
type Options struct {
	// Path to the database file. Parent directories are created if needed.
	Path string
	// Timeout for obtaining a file lock on the database. Zero means 5s.
	Timeout time.Duration
	// FileMode for creating the database file. Zero means 0600.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "./cursor.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens the cursor database at the given path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "./cursor.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cursor database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCursor)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cursor bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the persisted cursor, or 0 if none has been written yet.
func (s *Store) Get() int64 {
	var cursor int64
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCursor)
		v := b.Get(keyCursor)
		if v == nil {
			return nil
		}
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return nil
		}
		cursor = parsed
		return nil
	})
	return cursor
}

// Set persists cursor unconditionally. Callers are responsible for the
// monotonicity invariant; this store does not enforce it. The
// CursorPersister only ever passes dispatch.Cursor's current value,
// which never decreases.
func (s *Store) Set(cursor int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCursor)
		return b.Put(keyCursor, []byte(strconv.FormatInt(cursor, 10)))
	})
}
