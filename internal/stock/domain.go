package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus enumerates the lifecycle states of a batch.
type BatchStatus string

const (
	// BatchStatusActive marks a batch that can be sold from.
	BatchStatusActive BatchStatus = "active"
	// BatchStatusExpired marks a batch past its expiry date.
	BatchStatusExpired BatchStatus = "expired"
	// BatchStatusDepleted marks a batch whose remaining quantity reached zero.
	BatchStatusDepleted BatchStatus = "depleted"
	// BatchStatusQuarantined marks a batch pulled by an administrative action.
	BatchStatusQuarantined BatchStatus = "quarantined"
)

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusActive, BatchStatusExpired, BatchStatusDepleted, BatchStatusQuarantined:
		return true
	}
	return false
}

// Batch is a discrete lot of stock received at one time, carrying its own
// cost, selling price and expiry. Quantities are in the product's base unit.
type Batch struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	BatchNumber  string          `json:"batch_number"`
	QtyRemaining int64           `json:"qty_remaining"`
	QtyOriginal  int64           `json:"qty_original"`
	QtyReserved  int64           `json:"qty_reserved"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	ReceivedAt   time.Time       `json:"received_at"`
	Status       BatchStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Sellable reports whether the batch qualifies for the active-batch rule:
// status active with stock remaining.
func (b Batch) Sellable() bool {
	return b.Status == BatchStatusActive && b.QtyRemaining > 0
}

// ExpiredAt reports whether the batch's expiry date has passed at the given
// time. Batches without an expiry never expire.
func (b Batch) ExpiredAt(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// CreateBatchInput describes a stock receipt, from manual entry or import.
type CreateBatchInput struct {
	ProductID    int64
	BatchNumber  string
	Quantity     int64
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	ExpiryDate   *time.Time
	ReceivedAt   time.Time
	ActorID      int64
}

// Deduction records how much was taken from one batch during a FIFO
// deduction.
type Deduction struct {
	BatchID     int64           `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Depleted    bool            `json:"depleted"`
}

// LowStockEntry reports a product whose sellable quantity is at or below
// its reorder level.
type LowStockEntry struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	QtyRemaining int64  `json:"qty_remaining"`
	ReorderLevel int64  `json:"reorder_level"`
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrInvalidPrice indicates a negative cost or selling price.
	ErrInvalidPrice = errors.New("stock: price must be >= 0")
	// ErrInsufficientStock indicates eligible batches cannot cover a deduction.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrDuplicateBatchNumber indicates the batch number is already taken.
	ErrDuplicateBatchNumber = errors.New("stock: batch number already exists")
	// ErrBatchNotFound indicates the batch does not exist.
	ErrBatchNotFound = errors.New("stock: batch not found")
	// ErrInvalidTransition indicates a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("stock: invalid status transition")
	// ErrExceedsOriginalQty indicates a restore past the original quantity.
	ErrExceedsOriginalQty = errors.New("stock: restore exceeds original quantity")
	// ErrReservedExceedsStock indicates a reservation past remaining quantity.
	ErrReservedExceedsStock = errors.New("stock: reserved quantity exceeds remaining")
)
