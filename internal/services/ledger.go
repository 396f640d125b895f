package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/internal/metrics"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

const maxIdempotencyKeyLen = 255

// LedgerRepository is the single mutation primitive for balances.
type LedgerRepository interface {
	// ApplyEntry serializes writers on accountID, loads the account owned
	// by ownerID (store.ErrNotFound otherwise), and commits the transaction
	// returned by apply together with the resulting balance. When
	// idempotencyKey matches an earlier entry on the account, that entry is
	// returned with Replayed set and apply is not called.
	ApplyEntry(
		ctx context.Context,
		accountID, ownerID, idempotencyKey string,
		apply func(types.Account) (types.Transaction, error),
	) (types.LedgerReceipt, error)
}

// EntryRequest is a deposit or withdrawal submitted by a user.
type EntryRequest struct {
	AccountID      string
	UserID         string
	Type           string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// LedgerService applies deposits and withdrawals.
type LedgerService struct {
	repo    LedgerRepository
	logger  log.Logger
	history HistoryInvalidator
	events  EventPublisher
	channel string
}

func NewLedgerService(repo LedgerRepository, logger log.Logger) *LedgerService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &LedgerService{repo: repo, logger: logger}
}

// WithHistory registers the history projector to notify after each commit.
func (s *LedgerService) WithHistory(h HistoryInvalidator) *LedgerService {
	s.history = h
	return s
}

// WithEvents publishes a LedgerEvent to channel after each commit.
func (s *LedgerService) WithEvents(p EventPublisher, channel string) *LedgerService {
	s.events = p
	s.channel = channel
	return s
}

// Apply validates req against the account and commits it. Checks run in
// this order, against the balance held under the account's lock:
// ownership, amount, type, then funds for withdrawals.
func (s *LedgerService) Apply(ctx context.Context, req EntryRequest) (types.LedgerReceipt, error) {
	start := time.Now()
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return types.LedgerReceipt{}, ErrInvalidIdempotencyKey
	}

	var accountNumber string
	receipt, err := s.repo.ApplyEntry(ctx, req.AccountID, req.UserID, key, func(account types.Account) (types.Transaction, error) {
		accountNumber = account.AccountNumber
		return buildEntry(account, req, key, time.Now().UTC())
	})

	outcome := outcomeOf(err, receipt.Replayed)
	metrics.LedgerApplySeconds.With("outcome", outcome).Observe(time.Since(start).Seconds())
	metrics.LedgerEntries.With("type", entryTypeLabel(req.Type), "outcome", outcome).Add(1)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LedgerReceipt{}, ErrAccountNotFound
		}
		return types.LedgerReceipt{}, err
	}
	if receipt.Replayed {
		s.logger.Log("msg", "idempotent replay", "account", req.AccountID, "transaction", receipt.Transaction.ID)
		return receipt, nil
	}

	txn := receipt.Transaction
	s.logger.Log(
		"msg", "ledger entry committed",
		"account", txn.AccountID,
		"transaction", txn.ID,
		"type", txn.Type,
		"amount", txn.Amount.StringFixed(2),
		"balance", receipt.Balance.StringFixed(2),
	)
	if s.history != nil {
		s.history.Invalidate(ctx, req.UserID)
	}
	s.publish(ctx, LedgerEvent{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		AccountNumber: accountNumber,
		UserID:        txn.UserID,
		Type:          txn.Type,
		Amount:        txn.Amount,
		Balance:       receipt.Balance,
		Description:   txn.Description,
		CreatedAt:     txn.CreatedAt,
	})
	return receipt, nil
}

// buildEntry enforces the ledger rules against the locked account state.
func buildEntry(account types.Account, req EntryRequest, key string, now time.Time) (types.Transaction, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return types.Transaction{}, ErrInvalidAmount
	}
	kind, ok := types.ParseTransactionType(req.Type)
	if !ok {
		return types.Transaction{}, ErrInvalidTransactionType
	}
	if kind == types.TransactionWithdrawal && amount.GreaterThan(account.Balance) {
		return types.Transaction{}, ErrInsufficientFunds
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("%s transaction", kind)
	}

	return types.Transaction{
		ID:             uuid.NewString(),
		AccountID:      account.ID,
		UserID:         req.UserID,
		Type:           kind,
		Amount:         amount,
		Description:    description,
		IdempotencyKey: key,
		CreatedAt:      now,
	}, nil
}

// publish is best effort. Failures are logged and counted, never returned.
func (s *LedgerService) publish(ctx context.Context, event LedgerEvent) {
	if s.events == nil || s.channel == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Log("msg", "encode ledger event", "err", err)
		return
	}
	attrs := map[string]string{
		"event":   EventTransactionApplied,
		"account": event.AccountID,
		"user":    event.UserID,
	}
	if _, err := s.events.Publish(ctx, s.channel, data, attrs); err != nil {
		metrics.EventPublishFailures.With("channel", s.channel).Add(1)
		s.logger.Log("msg", "publish ledger event", "channel", s.channel, "transaction", event.TransactionID, "err", err)
	}
}

func outcomeOf(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "committed"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidTransactionType):
		return "invalid"
	default:
		return "error"
	}
}

func entryTypeLabel(raw string) string {
	if kind, ok := types.ParseTransactionType(raw); ok {
		return kind.String()
	}
	return "unknown"
}
