package jsonfile

import (
	"context"
	"slices"
	"strings"

	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
)

func (s *Store) GetUserByID(ctx context.Context, id string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.users {
		if r.ID == id {
			return r.user(), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.users {
		if strings.EqualFold(r.Email, email) {
			return r.user(), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *Store) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.users {
		if r.ID == user.ID || strings.EqualFold(r.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}

	users := append(slices.Clip(s.users), newUserRecord(user))
	if err := s.persist(usersFile, users); err != nil {
		return types.User{}, err
	}
	s.users = users
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user types.User) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.users {
		if r.ID == user.ID {
			idx = i
			continue
		}
		if strings.EqualFold(r.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	if idx < 0 {
		return types.User{}, store.ErrNotFound
	}

	users := slices.Clone(s.users)
	users[idx] = newUserRecord(user)
	if err := s.persist(usersFile, users); err != nil {
		return types.User{}, err
	}
	s.users = users
	return user, nil
}
