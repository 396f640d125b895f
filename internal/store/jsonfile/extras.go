package jsonfile

import (
	"context"
	"slices"

	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
)

func (s *Store) CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.notifications, func(existing types.Notification) bool { return existing.ID == n.ID }) {
		return types.Notification{}, store.ErrConflict
	}
	items := append(slices.Clip(s.notifications), n)
	if err := s.persist(notificationsFile, items); err != nil {
		return types.Notification{}, err
	}
	s.notifications = items
	return n, nil
}

// ListNotifications returns up to limit of the user's notifications,
// newest first. A limit of zero or less returns all of them.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]types.Notification, error) {
	s.mu.RLock()
	var out []types.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	// Reverse first so that entries sharing a timestamp keep the later one on top.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b types.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetNotificationRead(ctx context.Context, id, userID string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.notifications, func(n types.Notification) bool {
		return n.ID == id && n.UserID == userID
	})
	if idx < 0 {
		return store.ErrNotFound
	}

	items := slices.Clone(s.notifications)
	items[idx].Read = read
	if err := s.persist(notificationsFile, items); err != nil {
		return err
	}
	s.notifications = items
	return nil
}

func (s *Store) CreateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	split.Participants = slices.Clone(split.Participants)
	items := append(slices.Clip(s.billSplits), split)
	if err := s.persist(billSplitsFile, items); err != nil {
		return types.BillSplit{}, err
	}
	s.billSplits = items
	return split, nil
}

func (s *Store) GetBillSplit(ctx context.Context, id string) (types.BillSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.billSplits {
		if b.ID == id {
			b.Participants = slices.Clone(b.Participants)
			return b, nil
		}
	}
	return types.BillSplit{}, store.ErrNotFound
}

// ListBillSplits returns the splits the user created or participates in.
func (s *Store) ListBillSplits(ctx context.Context, userID string) ([]types.BillSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.BillSplit
	for _, b := range s.billSplits {
		if b.VisibleTo(userID) {
			b.Participants = slices.Clone(b.Participants)
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) UpdateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.billSplits, func(b types.BillSplit) bool { return b.ID == split.ID })
	if idx < 0 {
		return types.BillSplit{}, store.ErrNotFound
	}

	split.Participants = slices.Clone(split.Participants)
	items := slices.Clone(s.billSplits)
	items[idx] = split
	if err := s.persist(billSplitsFile, items); err != nil {
		return types.BillSplit{}, err
	}
	s.billSplits = items
	return split, nil
}

func (s *Store) CreateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append(slices.Clip(s.investments), inv)
	if err := s.persist(investmentsFile, items); err != nil {
		return types.Investment{}, err
	}
	s.investments = items
	return inv, nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (types.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.investments {
		if inv.ID == id {
			return inv, nil
		}
	}
	return types.Investment{}, store.ErrNotFound
}

func (s *Store) ListInvestments(ctx context.Context, userID string) ([]types.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Investment
	for _, inv := range s.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Store) UpdateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.investments, func(i types.Investment) bool { return i.ID == inv.ID })
	if idx < 0 {
		return types.Investment{}, store.ErrNotFound
	}

	items := slices.Clone(s.investments)
	items[idx] = inv
	if err := s.persist(investmentsFile, items); err != nil {
		return types.Investment{}, err
	}
	s.investments = items
	return inv, nil
}
