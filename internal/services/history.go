package services

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/metrics"
	"github.com/lumenbank/apiserver/types"
	"golang.org/x/sync/singleflight"
)

const unknownAccountNumber = "Unknown"

// HistoryRepository reads what the history projection joins together.
type HistoryRepository interface {
	ListAccountsByOwner(ctx context.Context, userID string) ([]types.Account, error)
	ListTransactionsByAccounts(ctx context.Context, accountIDs []string) ([]types.Transaction, error)
}

// HistoryCache stores projected histories per user.
type HistoryCache interface {
	Get(ctx context.Context, userID string) ([]types.HistoryEntry, bool, error)
	Set(ctx context.Context, userID string, entries []types.HistoryEntry) error
	Delete(ctx context.Context, userID string) error
}

// HistoryService projects a user's statement from the ledger.
type HistoryService struct {
	repo   HistoryRepository
	cache  HistoryCache
	logger log.Logger
	group  singleflight.Group

	// generations is bumped on every Invalidate so that projections started
	// before a write are neither shared with later callers nor cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewHistoryService(repo HistoryRepository, logger log.Logger) *HistoryService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &HistoryService{
		repo:        repo,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// WithCache enables the read-through history cache.
func (s *HistoryService) WithCache(c HistoryCache) *HistoryService {
	s.cache = c
	return s
}

// HistoryFor returns every transaction on the user's accounts, newest first,
// each decorated with its account number. Entries with equal timestamps keep
// the later commit first.
func (s *HistoryService) HistoryFor(ctx context.Context, userID string) ([]types.HistoryEntry, error) {
	gen := s.generation(userID)

	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Log("msg", "history cache read", "user", userID, "err", err)
		} else if ok {
			metrics.HistoryLookups.With("source", "cache").Add(1)
			return entries, nil
		}
	}

	key := userID + "@" + strconv.FormatUint(gen, 10)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.project(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	entries := v.([]types.HistoryEntry)
	if shared {
		metrics.HistoryLookups.With("source", "shared").Add(1)
		entries = slices.Clone(entries)
	} else {
		metrics.HistoryLookups.With("source", "store").Add(1)
	}

	if s.cache != nil && s.generation(userID) == gen {
		if err := s.cache.Set(ctx, userID, entries); err != nil {
			s.logger.Log("msg", "history cache write", "user", userID, "err", err)
		}
		// Invalidate bumps the generation before deleting, so a commit
		// whose delete ran before our Set is visible here.
		if s.generation(userID) != gen {
			if err := s.cache.Delete(ctx, userID); err != nil {
				s.logger.Log("msg", "history cache invalidate", "user", userID, "err", err)
			}
		}
	}
	return entries, nil
}

// Invalidate drops any cached or in-flight projection for userID.
func (s *HistoryService) Invalidate(ctx context.Context, userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.logger.Log("msg", "history cache invalidate", "user", userID, "err", err)
		}
	}
}

func (s *HistoryService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func (s *HistoryService) project(ctx context.Context, userID string) ([]types.HistoryEntry, error) {
	accounts, err := s.repo.ListAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	numbers := make(map[string]string, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		numbers[a.ID] = a.AccountNumber
		ids = append(ids, a.ID)
	}

	txns, err := s.repo.ListTransactionsByAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return projectHistory(txns, numbers), nil
}

// projectHistory keeps only entries on the given accounts and orders them
// newest first. txns must be in commit order.
func projectHistory(txns []types.Transaction, numbers map[string]string) []types.HistoryEntry {
	entries := make([]types.HistoryEntry, 0, len(txns))
	for i := len(txns) - 1; i >= 0; i-- {
		txn := txns[i]
		number, ok := numbers[txn.AccountID]
		if !ok {
			continue
		}
		if number == "" {
			number = unknownAccountNumber
		}
		entries = append(entries, types.HistoryEntry{Transaction: txn, AccountNumber: number})
	}
	slices.SortStableFunc(entries, func(a, b types.HistoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries
}
