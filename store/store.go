// Package store persists named collections as flat JSON files on disk,
// one file per collection under a data directory. It is the sole authority
// for load–modify–save cycles: every mutating operation runs while holding
// the store-wide write lock, so two requests can never interleave a
// read-modify-write against the same files.
//
// Deleting the files resets all state; on first use an absent file is
// treated as an empty collection rather than an error.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/libcat-go/apperror"
)

// Record is implemented by every entity persisted in a Collection.
type Record interface {
	RecordID() int
}

// Store owns the data directory and the lock that serializes access to it.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, apperror.NewConfigError("data directory must not be empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperror.NewStorageError(fmt.Sprintf("failed to create data directory %s", dir), err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory the store persists into.
func (s *Store) Dir() string { return s.dir }

// Lock acquires the store-wide write lock. Callers must pair it with Unlock,
// typically via defer, around a full load–modify–save sequence.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the write lock.
func (s *Store) Unlock() { s.mu.Unlock() }

// RLock acquires the shared read lock for read-only operations.
func (s *Store) RLock() { s.mu.RLock() }

// RUnlock releases the shared read lock.
func (s *Store) RUnlock() { s.mu.RUnlock() }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// readFile loads and unmarshals one collection file into v.
// An absent file leaves v untouched so the caller's zero value stands in
// for an empty collection. A corrupt file is treated the same way: the
// data files are a trivial embedded database and a half-written or
// hand-edited file should not take the whole API down.
func (s *Store) readFile(name string, v any) error {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperror.NewStorageError(fmt.Sprintf("failed to read collection %s", name), err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil
	}
	return nil
}

// writeFile marshals v and atomically replaces the collection file.
func (s *Store) writeFile(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperror.NewStorageError(fmt.Sprintf("failed to encode collection %s", name), err)
	}
	if err := atomicWriteFile(s.path(name), raw, 0o644); err != nil {
		return apperror.NewStorageError(fmt.Sprintf("failed to write collection %s", name), err)
	}
	return nil
}

// Collection is a typed view over one JSON-array collection file.
// It does no locking of its own: callers hold the owning Store's lock
// for the duration of each logical operation.
type Collection[T Record] struct {
	store *Store
	name  string

	// lastID is the id high-water mark for the collection. It only grows,
	// so within a process lifetime ids are monotonic and never reused even
	// after the record with the highest id is deleted. It is advanced only
	// by NextID, under the store's write lock; on a fresh process the first
	// NextID call seeds it from the highest id in the loaded items.
	lastID int
}

// NewCollection returns a Collection named name backed by st.
func NewCollection[T Record](st *Store, name string) *Collection[T] {
	return &Collection[T]{store: st, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Load reads the backing file and returns the records in file order.
// It never mutates the Collection, so concurrent readers holding the
// store's shared read lock are safe.
func (c *Collection[T]) Load() ([]T, error) {
	var items []T
	if err := c.store.readFile(c.name, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Save overwrites the backing file with items.
func (c *Collection[T]) Save(items []T) error {
	return c.store.writeFile(c.name, items)
}

// NextID returns a fresh integer id. The items slice seeds the high-water
// mark on first use. Callers hold the store's write lock, which is what
// makes mutating lastID here safe.
func (c *Collection[T]) NextID(items []T) int {
	for _, it := range items {
		if id := it.RecordID(); id > c.lastID {
			c.lastID = id
		}
	}
	c.lastID++
	return c.lastID
}

// TokenStore persists the active token set as a token→user-id map in
// tokens.json, matching the shape of the rest of the data directory.
type TokenStore struct {
	store *Store
	name  string
}

// NewTokenStore returns the token map collection backed by st.
func NewTokenStore(st *Store) *TokenStore {
	return &TokenStore{store: st, name: "tokens"}
}

// Load returns the active token→user-id map. Absent file means no tokens.
func (t *TokenStore) Load() (map[string]int, error) {
	tokens := make(map[string]int)
	if err := t.store.readFile(t.name, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Save overwrites the token map.
func (t *TokenStore) Save(tokens map[string]int) error {
	return t.store.writeFile(t.name, tokens)
}
