// Package jsonfile implements the repositories on top of plain JSON files,
// one array per collection, kept in memory and rewritten on every change.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/types"
)

const (
	usersFile         = "users.json"
	accountsFile      = "accounts.json"
	transactionsFile  = "transactions.json"
	notificationsFile = "notifications.json"
	billSplitsFile    = "bill-splits.json"
	investmentsFile   = "investments.json"
)

// Store holds every collection in memory and persists them under dir.
// All exported methods are safe for concurrent use.
type Store struct {
	dir    string
	logger log.Logger

	// mu guards the collection slices below. Slices are replaced, never
	// mutated in place, so a failed write leaves the previous state intact.
	mu            sync.RWMutex
	users         []userRecord
	accounts      []accountRecord
	transactions  []types.Transaction
	notifications []types.Notification
	billSplits    []types.BillSplit
	investments   []types.Investment

	// accountLocks serializes ledger writes per account.
	accountLocks *keyedMutex
}

// userRecord keeps the password hash on disk even though the API type
// never serializes it.
type userRecord struct {
	types.User
	PasswordHash string `json:"passwordHash"`
}

func (r userRecord) user() types.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return u
}

func newUserRecord(u types.User) userRecord {
	return userRecord{User: u, PasswordHash: u.PasswordHash}
}

// accountRecord tracks the last ledger entry folded into the balance.
// A nil AppliedThrough marks an account imported from elsewhere whose
// balance is taken as-is; an empty one means no entry has been applied yet.
type accountRecord struct {
	types.Account
	AppliedThrough *string `json:"appliedThrough,omitempty"`
}

// Open loads every collection from dir, creating the directory and any
// missing file. A file that exists but cannot be parsed is an error.
func Open(dir string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:          dir,
		logger:       log.With(logger, "component", "jsonfile"),
		accountLocks: newKeyedMutex(),
	}
	loads := []struct {
		name string
		dst  any
	}{
		{usersFile, &s.users},
		{accountsFile, &s.accounts},
		{transactionsFile, &s.transactions},
		{notificationsFile, &s.notifications},
		{billSplitsFile, &s.billSplits},
		{investmentsFile, &s.investments},
	}
	for _, l := range loads {
		if err := s.load(l.name, l.dst); err != nil {
			return nil, err
		}
	}

	if err := s.recoverBalances(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory the store persists to.
func (s *Store) Dir() string {
	return s.dir
}

// Close is a no-op; every change is already on disk.
func (s *Store) Close() error {
	return nil
}

func (s *Store) load(name string, dst any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return writeFileAtomic(path, []any{})
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) persist(name string, v any) error {
	if err := writeFileAtomic(filepath.Join(s.dir, name), v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic replaces path with the JSON encoding of v. The data is
// written to a temporary file in the same directory and renamed over path.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
