package sales

// CreateSaleRequest opens a pending sale. Unit prices default to the
// product's active batch selling price when omitted.
type CreateSaleRequest struct {
	CustomerID   *int64            `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	DiscountType string            `json:"discount_type" validate:"omitempty,oneof=none pwd senior"`
	Notes        *string           `json:"notes,omitempty" validate:"omitempty,max=500"`
	Lines        []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type SaleLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice *string `json:"unit_price,omitempty"`
}

// CompleteSaleRequest settles a pending sale.
type CompleteSaleRequest struct {
	AmountPaid string `json:"amount_paid" validate:"required"`
}

type RefundSaleRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ListSalesRequest struct {
	Status     *Status `json:"status,omitempty"`
	CustomerID *int64  `json:"customer_id,omitempty"`
	Limit      int     `json:"limit" validate:"gte=0,lte=200"`
	Offset     int     `json:"offset" validate:"gte=0"`
}
