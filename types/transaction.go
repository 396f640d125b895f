package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry.
type TransactionType string

// Supported transaction types.
const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// ParseTransactionType resolves a case-insensitive transaction type name.
func ParseTransactionType(raw string) (TransactionType, bool) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case TransactionDeposit:
		return TransactionDeposit, true
	case TransactionWithdrawal:
		return TransactionWithdrawal, true
	default:
		return "", false
	}
}

// Delta returns the signed balance change for amount.
func (t TransactionType) Delta(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionWithdrawal {
		return amount.Neg()
	}
	return amount
}

func (t TransactionType) String() string {
	return string(t)
}

// Transaction is an immutable ledger entry recording a single balance change.
type Transaction struct {
	// ID is the unique identifier of the transaction.
	ID string `json:"id" db:"id"`

	// AccountID identifies the account whose balance changed.
	AccountID string `json:"accountId" db:"account_id"`

	// UserID identifies the user who submitted the transaction.
	UserID string `json:"userId" db:"user_id"`

	// Type is the direction of the change.
	Type TransactionType `json:"type" db:"type"`

	// Amount is the positive magnitude of the change.
	Amount decimal.Decimal `json:"amount" db:"amount"`

	// Description is the free-text memo shown in statements.
	Description string `json:"description" db:"description"`

	// IdempotencyKey is the client-supplied key used to detect retries.
	// Empty when the client did not send one.
	IdempotencyKey string `json:"idempotencyKey,omitempty" db:"idempotency_key"`

	// CreatedAt is the timestamp when the entry was committed.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HistoryEntry is a transaction decorated with its account's display number.
type HistoryEntry struct {
	Transaction

	// AccountNumber is the display number of the owning account,
	// or "Unknown" when the account can no longer be resolved.
	AccountNumber string `json:"accountNumber"`
}

// LedgerReceipt is the outcome of applying a ledger entry.
type LedgerReceipt struct {
	// Transaction is the committed entry. For a replayed request it is
	// the entry committed by the original request.
	Transaction Transaction `json:"transaction"`

	// Balance is the account balance after the entry.
	Balance decimal.Decimal `json:"balance"`

	// Replayed reports whether the idempotency key matched an earlier entry
	// and nothing was applied.
	Replayed bool `json:"replayed"`
}
