package sales

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botica-pos/botica/internal/catalog"
	"github.com/botica-pos/botica/internal/shared"
	"github.com/botica-pos/botica/internal/stock"
)

type memoryRepo struct {
	sales      map[int64]*Sale
	nextSaleID int64
	nextLineID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sales: make(map[int64]*Sale)}
}

func (r *memoryRepo) Create(_ context.Context, sale Sale) (Sale, error) {
	r.nextSaleID++
	sale.ID = r.nextSaleID
	sale.CreatedAt = time.Now()
	for i := range sale.Lines {
		r.nextLineID++
		sale.Lines[i].ID = r.nextLineID
		sale.Lines[i].SaleID = sale.ID
	}
	stored := sale
	r.sales[sale.ID] = &stored
	return sale, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Sale, error) {
	if s, ok := r.sales[id]; ok {
		copied := *s
		copied.Lines = append([]Line(nil), s.Lines...)
		return copied, nil
	}
	return Sale{}, ErrSaleNotFound
}

func (r *memoryRepo) Update(_ context.Context, sale Sale) error {
	stored, ok := r.sales[sale.ID]
	if !ok {
		return ErrSaleNotFound
	}
	lines := stored.Lines
	*stored = sale
	if sale.Lines == nil {
		stored.Lines = lines
	}
	return nil
}

func (r *memoryRepo) List(_ context.Context, req ListSalesRequest) ([]Sale, int, error) {
	var out []Sale
	for _, s := range r.sales {
		if req.Status != nil && s.Status != *req.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) CountCompletedOn(_ context.Context, day time.Time) (int64, error) {
	var n int64
	for _, s := range r.sales {
		if s.Status == StatusCompleted && s.CompletedAt != nil &&
			s.CompletedAt.Format("20060102") == day.Format("20060102") {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) ReplaceAllocations(_ context.Context, lineID int64, allocs []Allocation) error {
	for _, s := range r.sales {
		for i := range s.Lines {
			if s.Lines[i].ID == lineID {
				s.Lines[i].Allocations = append([]Allocation(nil), allocs...)
				return nil
			}
		}
	}
	return ErrSaleNotFound
}

// fakeStock keeps per-product batches and fulfills deductions FIFO the
// way the stock service does.
type fakeStock struct {
	batches     map[int64][]*stock.Batch
	deductRefs  []string
	restoreRefs []string
	restoreErr  map[int64]error
}

func newFakeStock() *fakeStock {
	return &fakeStock{batches: make(map[int64][]*stock.Batch)}
}

func (f *fakeStock) add(b stock.Batch) *stock.Batch {
	if b.Status == "" {
		b.Status = stock.BatchStatusActive
	}
	stored := b
	f.batches[b.ProductID] = append(f.batches[b.ProductID], &stored)
	return &stored
}

func (f *fakeStock) ActiveBatch(_ context.Context, productID int64) (stock.Batch, bool, error) {
	for _, b := range f.batches[productID] {
		if b.Sellable() {
			return *b, true, nil
		}
	}
	return stock.Batch{}, false, nil
}

func (f *fakeStock) Deduct(_ context.Context, input stock.DeductInput) ([]stock.Deduction, error) {
	f.deductRefs = append(f.deductRefs, input.Ref)
	available := int64(0)
	for _, b := range f.batches[input.ProductID] {
		if b.Sellable() {
			available += b.QtyRemaining - b.QtyReserved
		}
	}
	if available < input.Quantity {
		return nil, stock.ErrInsufficientStock
	}
	remaining := input.Quantity
	var out []stock.Deduction
	for _, b := range f.batches[input.ProductID] {
		if remaining == 0 {
			break
		}
		if !b.Sellable() {
			continue
		}
		take := b.QtyRemaining - b.QtyReserved
		if take > remaining {
			take = remaining
		}
		b.QtyRemaining -= take
		if b.QtyRemaining == 0 {
			b.Status = stock.BatchStatusDepleted
		}
		remaining -= take
		out = append(out, stock.Deduction{
			BatchID:  b.ID,
			Quantity: take,
			UnitCost: b.CostPrice,
			Depleted: b.Status == stock.BatchStatusDepleted,
		})
	}
	return out, nil
}

func (f *fakeStock) Restore(_ context.Context, input stock.RestoreInput) (stock.Batch, error) {
	f.restoreRefs = append(f.restoreRefs, input.Ref)
	if err, ok := f.restoreErr[input.BatchID]; ok {
		return stock.Batch{}, err
	}
	for _, batches := range f.batches {
		for _, b := range batches {
			if b.ID == input.BatchID {
				b.QtyRemaining += input.Quantity
				if b.Status == stock.BatchStatusDepleted {
					b.Status = stock.BatchStatusActive
				}
				return *b, nil
			}
		}
	}
	return stock.Batch{}, stock.ErrBatchNotFound
}

type fakeCatalog struct {
	products map[int64]catalog.Product
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (catalog.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.actions = append(f.actions, log.Action)
	return nil
}

type fakeCustomers struct {
	applied []decimal.Decimal
}

func (f *fakeCustomers) ApplySale(_ context.Context, _ int64, total decimal.Decimal, _ time.Time) error {
	f.applied = append(f.applied, total)
	return nil
}

type fixedSettings struct {
	days   int
	prefix string
}

func (s fixedSettings) RefundWindowDays(context.Context) int { return s.days }
func (s fixedSettings) ReceiptPrefix(context.Context) string { return s.prefix }

type fixture struct {
	svc       *Service
	repo      *memoryRepo
	stock     *fakeStock
	customers *fakeCustomers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	st := newFakeStock()
	cat := &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, GenericName: "Paracetamol 500mg"},
		2: {ID: 2, GenericName: "Amoxicillin 250mg"},
	}}
	customers := &fakeCustomers{}
	svc := NewService(repo, st, cat, customers, fixedSettings{days: 7, prefix: "OR"}, nil)
	return &fixture{svc: svc, repo: repo, stock: st, customers: customers}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func int64Ptr(n int64) *int64 { return &n }

func TestCreateSnapshotsPricesAndTotals(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 100, SellingPrice: dec("5.50")})

	sale, err := f.svc.Create(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 4}},
	}, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, sale.Status)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, "Paracetamol 500mg", sale.Lines[0].ProductName)
	assert.Equal(t, "22.00", sale.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "22.00", sale.Subtotal.StringFixed(2))
	assert.True(t, sale.DiscountAmount.IsZero())
	assert.Equal(t, "22.00", sale.Total.StringFixed(2))
}

func TestCreateAppliesSeniorDiscount(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 100, SellingPrice: dec("10.00")})

	sale, err := f.svc.Create(context.Background(), CreateSaleRequest{
		CustomerID:   int64Ptr(7),
		DiscountType: "senior",
		Lines:        []SaleLineRequest{{ProductID: 1, Quantity: 10}},
	}, 1)
	require.NoError(t, err)

	assert.Equal(t, "100.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", sale.DiscountAmount.StringFixed(2))
	assert.Equal(t, "80.00", sale.Total.StringFixed(2))
}

func TestCreateDiscountRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 100, SellingPrice: dec("10.00")})

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		DiscountType: "pwd",
		Lines:        []SaleLineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	assert.ErrorIs(t, err, ErrDiscountNeedsCustomer)
}

func TestCreateRejectsArchivedProduct(t *testing.T) {
	f := newFixture(t)
	cat := &fakeCatalog{products: map[int64]catalog.Product{
		1: {ID: 1, GenericName: "Old Product", Archived: true},
	}}
	f.svc.catalog = cat

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	assert.ErrorIs(t, err, catalog.ErrProductArchived)
}

func TestCreateWithoutPriceSourceFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	assert.ErrorIs(t, err, ErrNoSellingPrice)
}

func TestCompleteDeductsAcrossBatches(t *testing.T) {
	f := newFixture(t)
	older := f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 3, SellingPrice: dec("5.00"), CostPrice: dec("3.00")})
	newer := f.stock.add(stock.Batch{ID: 11, ProductID: 1, QtyRemaining: 10, SellingPrice: dec("5.00"), CostPrice: dec("3.50")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		CustomerID: int64Ptr(7),
		Lines:      []SaleLineRequest{{ProductID: 1, Quantity: 5}},
	}, 1)
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "30.00"}, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.ReceiptNumber)
	assert.Regexp(t, `^OR-\d{8}-0001$`, *done.ReceiptNumber)
	assert.Equal(t, "5.00", done.ChangeDue.StringFixed(2))

	require.Len(t, done.Lines, 1)
	require.Len(t, done.Lines[0].Allocations, 2)
	assert.Equal(t, int64(3), done.Lines[0].Allocations[0].Quantity)
	assert.Equal(t, int64(2), done.Lines[0].Allocations[1].Quantity)

	assert.Equal(t, int64(0), older.QtyRemaining)
	assert.Equal(t, stock.BatchStatusDepleted, older.Status)
	assert.Equal(t, int64(8), newer.QtyRemaining)

	require.Len(t, f.customers.applied, 1)
	assert.Equal(t, "25.00", f.customers.applied[0].StringFixed(2))
}

func TestCompleteRejectsInsufficientPayment(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, SellingPrice: dec("10.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 2}},
	}, 1)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "19.99"}, 1)
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCompleteOnlyPending(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, SellingPrice: dec("10.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "10.00"}, 1)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "10.00"}, 1)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCompleteRollsBackOnPartialFailure(t *testing.T) {
	f := newFixture(t)
	first := f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 5, SellingPrice: dec("5.00")})
	// Product 2 has stock for creation pricing but not enough to fulfill.
	f.stock.add(stock.Batch{ID: 11, ProductID: 2, QtyRemaining: 1, SellingPrice: dec("8.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 5},
			{ProductID: 2, Quantity: 3},
		},
	}, 1)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "100.00"}, 1)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	// The first line's deduction is compensated.
	assert.Equal(t, int64(5), first.QtyRemaining)
	assert.Equal(t, stock.BatchStatusActive, first.Status)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestReceiptNumbersSequencePerDay(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 100, SellingPrice: dec("5.00")})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		sale, err := f.svc.Create(ctx, CreateSaleRequest{
			Lines: []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		}, 1)
		require.NoError(t, err)
		done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "5.00"}, 1)
		require.NoError(t, err)
		assert.Regexp(t, fmt.Sprintf(`-%04d$`, i), *done.ReceiptNumber)
	}
}

func TestRefundRestoresBatches(t *testing.T) {
	f := newFixture(t)
	batch := f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, QtyOriginal: 10, SellingPrice: dec("5.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 4}},
	}, 1)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "20.00"}, 1)
	require.NoError(t, err)
	require.Equal(t, int64(6), batch.QtyRemaining)

	refunded, err := f.svc.Refund(ctx, done.ID, RefundSaleRequest{Reason: "wrong item"}, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, int64(10), batch.QtyRemaining)

	// Refunded is terminal.
	_, err = f.svc.Refund(ctx, done.ID, RefundSaleRequest{Reason: "again"}, 1)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestRefundWindowCloses(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, QtyOriginal: 10, SellingPrice: dec("5.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 1}},
	}, 1)
	require.NoError(t, err)

	// Settled five days in, so completion is recent when the attempt
	// below lands. The window runs from creation regardless.
	f.svc.now = func() time.Time { return sale.CreatedAt.Add(5 * 24 * time.Hour) }
	done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "5.00"}, 1)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return sale.CreatedAt.Add(9 * 24 * time.Hour) }

	_, err = f.svc.Refund(ctx, done.ID, RefundSaleRequest{Reason: "too late"}, 1)
	assert.ErrorIs(t, err, ErrRefundWindowClosed)
}

func TestCompleteDuplicateProductLines(t *testing.T) {
	f := newFixture(t)
	batch := f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, QtyOriginal: 10, SellingPrice: dec("5.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 3},
		},
	}, 1)
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "25.00"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), batch.QtyRemaining)

	// Each line settles under its own movement ref so the stock layer
	// keys distinct idempotency records for the shared product.
	require.Len(t, f.stock.deductRefs, 2)
	assert.NotEqual(t, f.stock.deductRefs[0], f.stock.deductRefs[1])

	// Both lines drew from batch 10; the restores must not collide either.
	_, err = f.svc.Refund(ctx, done.ID, RefundSaleRequest{Reason: "returned"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), batch.QtyRemaining)
	require.Len(t, f.stock.restoreRefs, 2)
	assert.NotEqual(t, f.stock.restoreRefs[0], f.stock.restoreRefs[1])
}

func TestRefundRecordsSkippedRestores(t *testing.T) {
	f := newFixture(t)
	f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, QtyOriginal: 10, SellingPrice: dec("5.00")})
	ctx := context.Background()
	audit := &fakeAudit{}
	f.svc.audit = audit

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 2}},
	}, 1)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, sale.ID, CompleteSaleRequest{AmountPaid: "10.00"}, 1)
	require.NoError(t, err)

	f.stock.restoreErr = map[int64]error{10: stock.ErrExceedsOriginalQty}

	refunded, err := f.svc.Refund(ctx, done.ID, RefundSaleRequest{Reason: "returned"}, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.Contains(t, audit.actions, "sale.restore_skipped")
}

func TestCancelPendingOnly(t *testing.T) {
	f := newFixture(t)
	batch := f.stock.add(stock.Batch{ID: 10, ProductID: 1, QtyRemaining: 10, SellingPrice: dec("5.00")})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, CreateSaleRequest{
		Lines: []SaleLineRequest{{ProductID: 1, Quantity: 2}},
	}, 1)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, sale.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	// Pending sales never held stock.
	assert.Equal(t, int64(10), batch.QtyRemaining)

	_, err = f.svc.Cancel(ctx, sale.ID, 1)
	assert.ErrorIs(t, err, ErrNotPending)
}
