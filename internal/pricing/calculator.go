// Package pricing derives the consistent (cost, sell, margin) triple used
// across the catalog and POS forms. All functions are pure; monetary values
// are rounded to 2 decimal places at the point of computation.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DeriveMargin returns the margin percentage implied by a cost and selling
// price, rounded to 2 decimals. Non-positive inputs yield zero rather than
// an error so form auto-fill can degrade without special casing.
func DeriveMargin(cost, sell decimal.Decimal) decimal.Decimal {
	if cost.Sign() <= 0 || sell.Sign() <= 0 {
		return decimal.Zero
	}
	return sell.Sub(cost).Div(cost).Mul(hundred).Round(2)
}

// DeriveSellPrice returns cost marked up by margin percent, rounded to
// 2 decimals. Non-positive inputs yield zero.
func DeriveSellPrice(cost, margin decimal.Decimal) decimal.Decimal {
	if cost.Sign() <= 0 || margin.Sign() <= 0 {
		return decimal.Zero
	}
	return cost.Mul(decimal.NewFromInt(1).Add(margin.Div(hundred))).Round(2)
}

// Driver identifies which field an edit event changed. Exactly one field
// drives each recalculation; cost is always an independent input and is
// never derived.
type Driver int

const (
	// DriverCost marks an edit to the cost price.
	DriverCost Driver = iota
	// DriverSell marks an edit to the selling price.
	DriverSell
	// DriverMargin marks an edit to the margin percentage.
	DriverMargin
)

// Quote holds the three interdependent pricing fields.
type Quote struct {
	Cost   decimal.Decimal
	Sell   decimal.Decimal
	Margin decimal.Decimal
}

// Recalculate applies the driver rules to a quote after one field changed:
// editing cost or sell recomputes margin when both are positive; editing
// margin recomputes sell when cost is positive. Fields that cannot be
// derived are left untouched.
func Recalculate(q Quote, edited Driver) Quote {
	switch edited {
	case DriverCost, DriverSell:
		if q.Cost.Sign() > 0 && q.Sell.Sign() > 0 {
			q.Margin = DeriveMargin(q.Cost, q.Sell)
		}
	case DriverMargin:
		if q.Cost.Sign() > 0 && q.Margin.Sign() > 0 {
			q.Sell = DeriveSellPrice(q.Cost, q.Margin)
		}
	}
	return q
}
