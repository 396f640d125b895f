package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, ttl time.Duration) *BuntStore {
	t.Helper()

	s, err := OpenBunt(filepath.Join(t.TempDir(), "sessions.db"), ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuntStore(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()

	// lookup nothing
	if _, err := s.Lookup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v", err)
	}

	id, err := s.Create(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 64 {
		t.Errorf("got id of length %d", len(id))
	}

	userID, err := s.Lookup(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" {
		t.Errorf("got %s", userID)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lookup(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v after delete", err)
	}

	// deleting twice is fine
	if err := s.Delete(ctx, id); err != nil {
		t.Errorf("got %v", err)
	}
}

func TestBuntStore__expiry(t *testing.T) {
	s := openTestStore(t, 50*time.Millisecond)
	ctx := context.Background()

	id, err := s.Create(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	if _, err := s.Lookup(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, expected expired session", err)
	}
}

func TestBuntStore__distinctIDs(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := s.Create(ctx, "user-1")
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}
