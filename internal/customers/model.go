package customers

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a pharmacy customer record. Purchase statistics are derived
// fields maintained on sale completion and reconciled by a background job.
type Customer struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`

	PurchaseCount  int64           `json:"purchase_count"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	LastPurchaseAt *time.Time      `json:"last_purchase_at,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the customer does not exist.
	ErrNotFound = errors.New("customers: not found")
	// ErrDuplicatePhone indicates another active customer has the phone.
	ErrDuplicatePhone = errors.New("customers: phone already registered")
	// ErrDuplicateEmail indicates another active customer has the email.
	ErrDuplicateEmail = errors.New("customers: email already registered")
	// ErrInactive indicates a mutation against an anonymized record.
	ErrInactive = errors.New("customers: record inactive")
	// ErrNoMatch indicates no linking candidate was found.
	ErrNoMatch = errors.New("customers: no match")
)
