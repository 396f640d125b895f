package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/internal/metrics"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	accountNumberSpace       = 10_000_000_000
	maxAccountNumberAttempts = 5
	openingDescription       = "Initial deposit"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	// CreateAccount stores account and, if opening is non-nil, the opening
	// ledger entry atomically. It returns store.ErrConflict when the
	// account number is already taken.
	CreateAccount(ctx context.Context, account types.Account, opening *types.Transaction) (types.Account, error)
	GetAccount(ctx context.Context, id string) (types.Account, error)
	ListAccountsByOwner(ctx context.Context, userID string) ([]types.Account, error)
}

// HistoryInvalidator is told when a user's history has changed.
type HistoryInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// AccountService is the account registry: it opens accounts and looks
// them up on behalf of their owners.
type AccountService struct {
	repo      AccountRepository
	logger    log.Logger
	history   HistoryInvalidator
	newNumber func() (string, error)
}

func NewAccountService(repo AccountRepository, logger log.Logger) *AccountService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AccountService{
		repo:      repo,
		logger:    logger,
		newNumber: randomAccountNumber,
	}
}

// WithHistory registers the history projector to notify after an opening deposit.
func (s *AccountService) WithHistory(h HistoryInvalidator) *AccountService {
	s.history = h
	return s
}

// Create opens an account of accountType for userID. A positive initial
// deposit is recorded as an "Initial deposit" ledger entry in the same
// commit as the account.
func (s *AccountService) Create(ctx context.Context, userID, accountType string, initialDeposit decimal.Decimal) (types.Account, error) {
	kind, ok := types.ParseAccountType(accountType)
	if !ok {
		return types.Account{}, ErrInvalidAccountType
	}
	deposit := initialDeposit.Round(2)
	if deposit.IsNegative() {
		return types.Account{}, ErrNegativeDeposit
	}
	if minimum := kind.MinimumDeposit(); deposit.LessThan(minimum) {
		return types.Account{}, &MinimumDepositError{AccountType: kind, Minimum: minimum}
	}

	for attempt := 1; attempt <= maxAccountNumberAttempts; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return types.Account{}, fmt.Errorf("generate account number: %w", err)
		}

		now := time.Now().UTC()
		account := types.Account{
			ID:            uuid.NewString(),
			UserID:        userID,
			AccountNumber: number,
			AccountType:   kind,
			Balance:       deposit,
			CreatedAt:     now,
		}
		var opening *types.Transaction
		if deposit.IsPositive() {
			opening = &types.Transaction{
				ID:          uuid.NewString(),
				AccountID:   account.ID,
				UserID:      userID,
				Type:        types.TransactionDeposit,
				Amount:      deposit,
				Description: openingDescription,
				CreatedAt:   now,
			}
		}

		created, err := s.repo.CreateAccount(ctx, account, opening)
		if errors.Is(err, store.ErrConflict) {
			s.logger.Log("msg", "account number collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return types.Account{}, err
		}

		metrics.AccountsOpened.With("account_type", kind.String()).Add(1)
		s.logger.Log("msg", "account opened", "user", userID, "account", created.ID, "type", kind, "deposit", deposit.StringFixed(2))
		if opening != nil && s.history != nil {
			s.history.Invalidate(ctx, userID)
		}
		return created, nil
	}
	return types.Account{}, ErrAccountNumberExhausted
}

// ListByOwner returns the user's accounts in the order they were opened.
func (s *AccountService) ListByOwner(ctx context.Context, userID string) ([]types.Account, error) {
	accounts, err := s.repo.ListAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	return accounts, nil
}

// Get returns the account only when it belongs to userID.
func (s *AccountService) Get(ctx context.Context, accountID, userID string) (types.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, ErrAccountNotFound
		}
		return types.Account{}, err
	}
	if account.UserID != userID {
		return types.Account{}, ErrAccountNotFound
	}
	return account, nil
}

// randomAccountNumber returns ten uniformly random decimal digits.
func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accountNumberSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d", n.Int64()), nil
}
