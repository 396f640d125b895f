// Package session keeps the server-side half of a login: a random session
// id mapped to a user id, expiring after a TTL.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown, expired or revoked sessions.
var ErrNotFound = errors.New("session not found")

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, userID string) (string, error)
	Lookup(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
