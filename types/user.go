package types

import "time"

// User represents a customer of the bank.
// It contains identity, contact, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"lastName" db:"last_name"`

	// Email is the user's email address. It is unique across users
	// and compared case-insensitively.
	Email string `json:"email" db:"email"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone" db:"phone"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user registered.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent profile change.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
