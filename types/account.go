package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the product an account was opened as.
type AccountType string

// Supported account types.
const (
	// AccountTypeChecking is an everyday account with a low opening deposit.
	AccountTypeChecking AccountType = "Checking"

	// AccountTypeSavings is a savings account with a higher opening deposit.
	AccountTypeSavings AccountType = "Savings"
)

// ParseAccountType resolves a case-insensitive account type name.
// The second return value is false for unknown names.
func ParseAccountType(raw string) (AccountType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "checking":
		return AccountTypeChecking, true
	case "savings":
		return AccountTypeSavings, true
	default:
		return "", false
	}
}

// MinimumDeposit returns the smallest opening deposit accepted for the type.
func (t AccountType) MinimumDeposit() decimal.Decimal {
	switch t {
	case AccountTypeSavings:
		return decimal.NewFromInt(500)
	case AccountTypeChecking:
		return decimal.NewFromInt(25)
	default:
		return decimal.Zero
	}
}

func (t AccountType) String() string {
	return string(t)
}

// Account is a balance-carrying account owned by exactly one user.
type Account struct {
	// ID is the unique identifier of the account.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user.
	UserID string `json:"userId" db:"user_id"`

	// AccountNumber is the 10-digit display number shown to customers.
	AccountNumber string `json:"accountNumber" db:"account_number"`

	// AccountType is the product the account was opened as.
	AccountType AccountType `json:"accountType" db:"account_type"`

	// Balance is the current balance. It is only changed through the ledger.
	Balance decimal.Decimal `json:"balance" db:"balance"`

	// CreatedAt is the timestamp when the account was opened.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
