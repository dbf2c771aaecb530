package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/catalog"
	"github.com/botica-pos/botica/internal/shared"
	"github.com/botica-pos/botica/internal/stock"
)

// Repository abstracts sale persistence.
type Repository interface {
	Create(ctx context.Context, sale Sale) (Sale, error)
	Get(ctx context.Context, id int64) (Sale, error)
	Update(ctx context.Context, sale Sale) error
	List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
	CountCompletedOn(ctx context.Context, day time.Time) (int64, error)
	ReplaceAllocations(ctx context.Context, lineID int64, allocs []Allocation) error
}

// StockPort is the slice of the stock service the checkout flow needs.
type StockPort interface {
	ActiveBatch(ctx context.Context, productID int64) (stock.Batch, bool, error)
	Deduct(ctx context.Context, input stock.DeductInput) ([]stock.Deduction, error)
	Restore(ctx context.Context, input stock.RestoreInput) (stock.Batch, error)
}

// CatalogPort resolves products for line snapshots.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// CustomerPort folds completed sales into customer statistics.
type CustomerPort interface {
	ApplySale(ctx context.Context, id int64, total decimal.Decimal, at time.Time) error
}

// SettingsPort supplies store policy knobs.
type SettingsPort interface {
	RefundWindowDays(ctx context.Context) int
	ReceiptPrefix(ctx context.Context) string
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the point-of-sale flow: pending sale, settlement with
// FIFO stock deduction, refunds and cancellation.
type Service struct {
	repo      Repository
	stockSvc  StockPort
	catalog   CatalogPort
	customers CustomerPort
	settings  SettingsPort
	audit     AuditPort
	now       func() time.Time
}

func NewService(repo Repository, stockSvc StockPort, cat CatalogPort, customers CustomerPort, settings SettingsPort, audit AuditPort) *Service {
	return &Service{
		repo:      repo,
		stockSvc:  stockSvc,
		catalog:   cat,
		customers: customers,
		settings:  settings,
		audit:     audit,
		now:       time.Now,
	}
}

// Create opens a pending sale. No stock moves yet; prices and product
// names are snapshotted so the receipt stays stable even if the catalog
// changes before settlement.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest, actorID int64) (Sale, error) {
	if len(req.Lines) == 0 {
		return Sale{}, ErrEmptySale
	}
	discount := DiscountType(req.DiscountType)
	if discount == "" {
		discount = DiscountNone
	}
	if !discount.Valid() {
		return Sale{}, fmt.Errorf("sales: unknown discount type %q", req.DiscountType)
	}
	if discount != DiscountNone && req.CustomerID == nil {
		return Sale{}, ErrDiscountNeedsCustomer
	}

	sale := Sale{
		CustomerID:   req.CustomerID,
		Status:       StatusPending,
		DiscountType: discount,
		Notes:        req.Notes,
		CreatedBy:    actorID,
	}

	subtotal := decimal.Zero
	for _, lr := range req.Lines {
		product, err := s.catalog.Get(ctx, lr.ProductID)
		if err != nil {
			return Sale{}, err
		}
		if product.Archived {
			return Sale{}, catalog.ErrProductArchived
		}
		price, err := s.linePrice(ctx, lr)
		if err != nil {
			return Sale{}, err
		}
		lineTotal := price.Mul(decimal.NewFromInt(lr.Quantity)).Round(2)
		subtotal = subtotal.Add(lineTotal)
		sale.Lines = append(sale.Lines, Line{
			ProductID:   lr.ProductID,
			ProductName: product.DisplayName(),
			Quantity:    lr.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
		})
	}

	sale.Subtotal = subtotal
	sale.DiscountAmount = subtotal.Mul(discount.Rate()).Round(2)
	sale.Total = subtotal.Sub(sale.DiscountAmount)

	created, err := s.repo.Create(ctx, sale)
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sale.create", created.ID, map[string]any{
		"total": created.Total.StringFixed(2),
		"lines": len(created.Lines),
	})
	return created, nil
}

func (s *Service) linePrice(ctx context.Context, lr SaleLineRequest) (decimal.Decimal, error) {
	if lr.UnitPrice != nil {
		price, err := decimal.NewFromString(*lr.UnitPrice)
		if err != nil || price.IsNegative() {
			return decimal.Zero, fmt.Errorf("sales: invalid unit price for product %d", lr.ProductID)
		}
		return price.Round(2), nil
	}
	batch, ok, err := s.stockSvc.ActiveBatch(ctx, lr.ProductID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, ErrNoSellingPrice
	}
	return batch.SellingPrice, nil
}

// Complete settles a pending sale: issues a receipt number, deducts
// stock FIFO per line, records the per-batch allocations and updates
// customer statistics. A deduction failure partway through is rolled
// back by restoring the batches already drawn from.
func (s *Service) Complete(ctx context.Context, id int64, req CompleteSaleRequest, actorID int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if sale.Status != StatusPending {
		return Sale{}, ErrNotPending
	}

	paid, err := decimal.NewFromString(req.AmountPaid)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: invalid amount paid")
	}
	if paid.LessThan(sale.Total) {
		return Sale{}, ErrInsufficientPayment
	}

	now := s.now()
	receipt, err := s.nextReceiptNumber(ctx, now)
	if err != nil {
		return Sale{}, err
	}

	// Refs carry the line id: the stock layer keys idempotency on
	// ref+product (and ref+batch for restores), and a sale may hold two
	// lines for the same product.
	var drawn []stock.RestoreInput
	for i, line := range sale.Lines {
		deductions, err := s.stockSvc.Deduct(ctx, stock.DeductInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Ref:       fmt.Sprintf("%s:%d", receipt, line.ID),
			ActorID:   actorID,
		})
		if err != nil {
			s.rollbackDeductions(ctx, drawn, receipt, actorID)
			return Sale{}, err
		}
		allocs := make([]Allocation, 0, len(deductions))
		for _, d := range deductions {
			allocs = append(allocs, Allocation{
				LineID:   line.ID,
				BatchID:  d.BatchID,
				Quantity: d.Quantity,
				UnitCost: d.UnitCost,
			})
			drawn = append(drawn, stock.RestoreInput{
				BatchID:  d.BatchID,
				Quantity: d.Quantity,
				Ref:      fmt.Sprintf("void:%s:%d", receipt, line.ID),
				ActorID:  actorID,
			})
		}
		if err := s.repo.ReplaceAllocations(ctx, line.ID, allocs); err != nil {
			s.rollbackDeductions(ctx, drawn, receipt, actorID)
			return Sale{}, err
		}
		sale.Lines[i].Allocations = allocs
	}

	sale.Status = StatusCompleted
	sale.ReceiptNumber = &receipt
	sale.AmountPaid = paid
	sale.ChangeDue = paid.Sub(sale.Total)
	sale.CompletedAt = &now
	if err := s.repo.Update(ctx, sale); err != nil {
		s.rollbackDeductions(ctx, drawn, receipt, actorID)
		return Sale{}, err
	}

	if sale.CustomerID != nil && s.customers != nil {
		if err := s.customers.ApplySale(ctx, *sale.CustomerID, sale.Total, now); err != nil {
			// Stats are rebuilt by the nightly reconciliation job, so a
			// miss here does not fail the sale.
			s.recordAudit(ctx, actorID, "sale.stats_skipped", sale.ID, map[string]any{"error": err.Error()})
		}
	}

	s.recordAudit(ctx, actorID, "sale.complete", sale.ID, map[string]any{
		"receipt": receipt,
		"total":   sale.Total.StringFixed(2),
	})
	return sale, nil
}

func (s *Service) rollbackDeductions(ctx context.Context, drawn []stock.RestoreInput, receipt string, actorID int64) {
	for _, input := range drawn {
		if _, err := s.stockSvc.Restore(ctx, input); err != nil {
			s.recordAudit(ctx, actorID, "sale.rollback_failed", input.BatchID, map[string]any{
				"receipt": receipt,
				"error":   err.Error(),
			})
		}
	}
}

func (s *Service) nextReceiptNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.repo.CountCompletedOn(ctx, now)
	if err != nil {
		return "", err
	}
	prefix := "OR"
	if s.settings != nil {
		if p := s.settings.ReceiptPrefix(ctx); p != "" {
			prefix = p
		}
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), seq+1), nil
}

// Refund reverses a completed sale, putting each allocation back onto
// the batch it was drawn from. The refund window counts from when the
// sale was created, not when it settled. Refunded is terminal.
func (s *Service) Refund(ctx context.Context, id int64, req RefundSaleRequest, actorID int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if sale.Status.Terminal() {
		return Sale{}, ErrTerminal
	}
	if sale.Status != StatusCompleted || sale.CompletedAt == nil {
		return Sale{}, ErrNotCompleted
	}

	now := s.now()
	days := 7
	if s.settings != nil {
		if d := s.settings.RefundWindowDays(ctx); d > 0 {
			days = d
		}
	}
	if now.After(sale.CreatedAt.Add(time.Duration(days) * 24 * time.Hour)) {
		return Sale{}, ErrRefundWindowClosed
	}

	receiptNo := deref(sale.ReceiptNumber)
	for _, line := range sale.Lines {
		ref := fmt.Sprintf("refund:%s:%d", receiptNo, line.ID)
		for _, alloc := range line.Allocations {
			_, err := s.stockSvc.Restore(ctx, stock.RestoreInput{
				BatchID:  alloc.BatchID,
				Quantity: alloc.Quantity,
				Ref:      ref,
				ActorID:  actorID,
			})
			if errors.Is(err, stock.ErrExceedsOriginalQty) {
				// The batch was restocked since the sale; leave an audit
				// trail for the quantity that stayed off the shelf.
				s.recordAudit(ctx, actorID, "sale.restore_skipped", sale.ID, map[string]any{
					"batch_id": alloc.BatchID,
					"qty":      alloc.Quantity,
				})
				continue
			}
			if err != nil {
				return Sale{}, err
			}
		}
	}

	sale.Status = StatusRefunded
	sale.RefundedAt = &now
	sale.RefundReason = &req.Reason
	if err := s.repo.Update(ctx, sale); err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sale.refund", sale.ID, map[string]any{
		"receipt": deref(sale.ReceiptNumber),
		"reason":  req.Reason,
	})
	return sale, nil
}

// Cancel abandons a pending sale. Completed sales must go through
// Refund instead.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if sale.Status != StatusPending {
		return Sale{}, ErrNotPending
	}
	now := s.now()
	sale.Status = StatusCancelled
	sale.CancelledAt = &now
	if err := s.repo.Update(ctx, sale); err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sale.cancel", sale.ID, nil)
	return sale, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
