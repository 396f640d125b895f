package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/buntdb"
)

const buntKeyPrefix = "session:"

// BuntStore keeps sessions in an embedded buntdb file.
type BuntStore struct {
	db  *buntdb.DB
	ttl time.Duration
}

// OpenBunt opens (or creates) the database at path. ":memory:" keeps it in
// memory only.
func OpenBunt(path string, ttl time.Duration) (*BuntStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	return &BuntStore{db: db, ttl: ttl}, nil
}

func (s *BuntStore) Create(ctx context.Context, userID string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(buntKeyPrefix+id, userID, &buntdb.SetOptions{
			Expires: s.ttl > 0,
			TTL:     s.ttl,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *BuntStore) Lookup(ctx context.Context, id string) (string, error) {
	var userID string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(buntKeyPrefix + id)
		userID = v
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", ErrNotFound
	}
	return userID, err
}

func (s *BuntStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(buntKeyPrefix + id)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
