package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a sale through its lifecycle. Pending sales hold no
// stock; completion deducts stock and issues the receipt. Refunded and
// cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the sale can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusRefunded || s == StatusCancelled
}

// DiscountType identifies the statutory discount applied to the whole
// sale. PWD and senior citizen discounts are both a flat 20% and require
// an identified customer on the sale.
type DiscountType string

const (
	DiscountNone   DiscountType = "none"
	DiscountPWD    DiscountType = "pwd"
	DiscountSenior DiscountType = "senior"
)

func (d DiscountType) Valid() bool {
	switch d {
	case DiscountNone, DiscountPWD, DiscountSenior:
		return true
	}
	return false
}

// Rate returns the discount fraction for the type.
func (d DiscountType) Rate() decimal.Decimal {
	if d == DiscountPWD || d == DiscountSenior {
		return decimal.NewFromFloat(0.20)
	}
	return decimal.Zero
}

type Sale struct {
	ID             int64           `json:"id"`
	ReceiptNumber  *string         `json:"receipt_number,omitempty"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	Status         Status          `json:"status"`
	DiscountType   DiscountType    `json:"discount_type"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	ChangeDue      decimal.Decimal `json:"change_due"`
	Notes          *string         `json:"notes,omitempty"`
	RefundReason   *string         `json:"refund_reason,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []Line          `json:"lines,omitempty"`
}

// Line is one product position on a sale. ProductName and UnitPrice are
// snapshots taken at creation so later catalog edits do not rewrite
// history.
type Line struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Allocations []Allocation    `json:"allocations,omitempty"`
}

// Allocation records which batch fulfilled how much of a line. Written
// at completion time and replayed in reverse on refund.
type Allocation struct {
	ID       int64           `json:"id"`
	LineID   int64           `json:"line_id"`
	BatchID  int64           `json:"batch_id"`
	Quantity int64           `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

var (
	ErrSaleNotFound          = errors.New("sales: sale not found")
	ErrEmptySale             = errors.New("sales: sale has no lines")
	ErrNotPending            = errors.New("sales: sale is not pending")
	ErrNotCompleted          = errors.New("sales: sale is not completed")
	ErrTerminal              = errors.New("sales: sale already finalized")
	ErrInsufficientPayment   = errors.New("sales: amount paid below total")
	ErrDiscountNeedsCustomer = errors.New("sales: discount requires an identified customer")
	ErrNoSellingPrice        = errors.New("sales: no selling price available for product")
	ErrRefundWindowClosed    = errors.New("sales: refund window has closed")
)
