package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Investment is a single holding in a user's portfolio.
type Investment struct {
	// ID is the unique identifier of the holding.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user.
	UserID string `json:"userId" db:"user_id"`

	// Symbol is the ticker symbol, e.g. "AAPL".
	Symbol string `json:"symbol" db:"symbol"`

	// Name is the instrument's display name.
	Name string `json:"name" db:"name"`

	// Sector is the industry classification.
	Sector string `json:"sector" db:"sector"`

	// Quantity is the number of units held.
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`

	// PurchasePrice is the per-unit cost basis.
	PurchasePrice decimal.Decimal `json:"purchasePrice" db:"purchase_price"`

	// CurrentPrice is the last known per-unit price.
	CurrentPrice decimal.Decimal `json:"currentPrice" db:"current_price"`

	// PurchaseDate is when the holding was acquired.
	PurchaseDate time.Time `json:"purchaseDate" db:"purchase_date"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// MarketValue returns quantity times current price.
func (i Investment) MarketValue() decimal.Decimal {
	return i.Quantity.Mul(i.CurrentPrice)
}

// GainLoss returns the unrealised gain (negative for a loss).
func (i Investment) GainLoss() decimal.Decimal {
	return i.MarketValue().Sub(i.Quantity.Mul(i.PurchasePrice))
}
