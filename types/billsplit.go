package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillSplit is a shared expense divided between participants.
type BillSplit struct {
	// ID is the unique identifier of the bill split.
	ID string `json:"id" db:"id"`

	// CreatedBy identifies the user who created the split.
	CreatedBy string `json:"createdBy" db:"created_by"`

	// Title describes the expense.
	Title string `json:"title" db:"title"`

	// Amount is the total cost being split.
	Amount decimal.Decimal `json:"amount" db:"amount"`

	// Category is a free-form grouping such as "dining" or "travel".
	Category string `json:"category" db:"category"`

	// Status is either "pending" or "completed".
	Status string `json:"status" db:"status"`

	// Participants lists who owes what.
	Participants []Participant `json:"participants" db:"participants"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Participant is one person's share of a bill split.
type Participant struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Share decimal.Decimal `json:"share"`
	Paid  bool            `json:"paid"`
}

// Bill split statuses.
const (
	BillSplitPending   = "pending"
	BillSplitCompleted = "completed"
)

// HasParticipant reports whether userID is listed among the participants.
func (b BillSplit) HasParticipant(userID string) bool {
	for _, p := range b.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether userID created or participates in the split.
func (b BillSplit) VisibleTo(userID string) bool {
	return b.CreatedBy == userID || b.HasParticipant(userID)
}
