package services

import (
	"errors"
	"fmt"

	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

// Errors returned by the services. Handlers translate them into
// user-facing messages.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrNegativeDeposit        = errors.New("initial deposit must not be negative")
	ErrMinimumDeposit         = errors.New("initial deposit below minimum")
	ErrAccountNumberExhausted = errors.New("could not allocate a unique account number")

	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidIdempotencyKey  = errors.New("idempotency key too long")

	ErrNotificationInvalid  = errors.New("title and message are required")
	ErrNotificationType     = errors.New("invalid notification type or priority")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationExists   = errors.New("notification already recorded")

	ErrBillSplitInvalid  = errors.New("invalid bill split")
	ErrBillSplitNotFound = errors.New("bill split not found")

	ErrInvestmentInvalid  = errors.New("invalid investment")
	ErrInvestmentNotFound = errors.New("investment not found")

	ErrStorageDisabled   = errors.New("object storage is not configured")
	ErrStatementNotFound = errors.New("statement not found")
)

// MinimumDepositError reports an opening deposit below the account type's
// minimum. It matches ErrMinimumDeposit with errors.Is.
type MinimumDepositError struct {
	AccountType types.AccountType
	Minimum     decimal.Decimal
}

func (e *MinimumDepositError) Error() string {
	return fmt.Sprintf("%s accounts require a minimum deposit of $%s", e.AccountType, e.Minimum.String())
}

func (e *MinimumDepositError) Is(target error) bool {
	return target == ErrMinimumDeposit
}

// ValidationError wraps a sentinel with the detail that failed.
type ValidationError struct {
	Kind   error
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Kind.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func invalid(kind error, detail string) error {
	return &ValidationError{Kind: kind, Detail: detail}
}
