package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates completed sales over a date range.
type Summary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	GrossSales    decimal.Decimal `json:"gross_sales"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	NetSales      decimal.Decimal `json:"net_sales"`
	Transactions  int64           `json:"transactions"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// DailyPoint is one day of the sales series.
type DailyPoint struct {
	Day          string          `json:"day"`
	NetSales     decimal.Decimal `json:"net_sales"`
	Transactions int64           `json:"transactions"`
}

// TopProduct ranks products by quantity sold over a range.
type TopProduct struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	QtySold   int64           `json:"qty_sold"`
	NetSales  decimal.Decimal `json:"net_sales"`
}

// ExpiringBatch flags sellable stock approaching its expiry date.
type ExpiringBatch struct {
	BatchID      int64     `json:"batch_id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	BatchNumber  string    `json:"batch_number"`
	ExpiryDate   time.Time `json:"expiry_date"`
	QtyRemaining int64     `json:"qty_remaining"`
}

// ValuationRow is one product's sellable stock valued at selling price.
type ValuationRow struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
}

// Dashboard is the combined storefront view, assembled concurrently.
type Dashboard struct {
	Summary     Summary         `json:"summary"`
	Daily       []DailyPoint    `json:"daily"`
	TopProducts []TopProduct    `json:"top_products"`
	Expiring    []ExpiringBatch `json:"expiring"`
}
