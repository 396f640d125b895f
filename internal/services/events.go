package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

// Event types carried in the "event" message attribute.
const (
	EventTransactionApplied = "transaction.applied"
)

// EventPublisher sends a payload to a named channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// LedgerEvent is published after a ledger entry commits.
type LedgerEvent struct {
	TransactionID string                `json:"transactionId"`
	AccountID     string                `json:"accountId"`
	AccountNumber string                `json:"accountNumber"`
	UserID        string                `json:"userId"`
	Type          types.TransactionType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	Balance       decimal.Decimal       `json:"balance"`
	Description   string                `json:"description"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// DecodeLedgerEvent parses a message body produced by the ledger.
func DecodeLedgerEvent(data []byte) (LedgerEvent, error) {
	var event LedgerEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
