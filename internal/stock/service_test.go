package stock

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	batches map[int64]*Batch
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: make(map[int64]*Batch)}
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx runs fn against a scratch copy and commits only on success,
// mirroring the rollback behaviour of the real repository.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	scratch := &memoryRepo{batches: make(map[int64]*Batch, len(r.batches)), nextID: r.nextID}
	for id, b := range r.batches {
		cp := *b
		scratch.batches[id] = &cp
	}
	if err := fn(ctx, &memoryTx{repo: scratch}); err != nil {
		return err
	}
	r.batches = scratch.batches
	r.nextID = scratch.nextID
	return nil
}

func (r *memoryRepo) Get(_ context.Context, batchID int64) (Batch, error) {
	if b, ok := r.batches[batchID]; ok {
		return *b, nil
	}
	return Batch{}, ErrBatchNotFound
}

func (r *memoryRepo) ListByProduct(_ context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ProductID == productID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStock(context.Context) ([]LowStockEntry, error) { return nil, nil }

func (r *memoryRepo) MarkExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, b := range r.batches {
		if b.Status == BatchStatusActive && b.ExpiredAt(now) {
			b.Status = BatchStatusExpired
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) Insert(_ context.Context, batch Batch) (Batch, error) {
	for _, existing := range t.repo.batches {
		if existing.BatchNumber == batch.BatchNumber {
			return Batch{}, ErrDuplicateBatchNumber
		}
	}
	t.repo.nextID++
	batch.ID = t.repo.nextID
	t.repo.batches[batch.ID] = &batch
	return batch, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, batchID int64) (Batch, error) {
	return t.repo.Get(ctx, batchID)
}

func (t *memoryTx) ListSellableForUpdate(_ context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range t.repo.batches {
		if b.ProductID == productID && b.Sellable() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (t *memoryTx) UpdateState(_ context.Context, batch Batch) error {
	stored, ok := t.repo.batches[batch.ID]
	if !ok {
		return ErrBatchNotFound
	}
	*stored = batch
	return nil
}

func (t *memoryTx) CountReceivedOn(_ context.Context, day time.Time) (int64, error) {
	var count int64
	y, m, d := day.Date()
	for _, b := range t.repo.batches {
		by, bm, bd := b.ReceivedAt.Date()
		if by == y && bm == m && bd == d {
			count++
		}
	}
	return count, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, ServiceConfig{})
}

func TestCreateBatchGeneratesNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	received := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	first, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID:    1,
		Quantity:     100,
		CostPrice:    decimal.NewFromInt(50),
		SellingPrice: decimal.NewFromInt(75),
		ReceivedAt:   received,
	})
	require.NoError(t, err)
	assert.Equal(t, "BN-20260831-0001", first.BatchNumber)
	assert.Equal(t, BatchStatusActive, first.Status)
	assert.Equal(t, int64(100), first.QtyRemaining)
	assert.Equal(t, int64(100), first.QtyOriginal)

	second, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 1, Quantity: 40, ReceivedAt: received,
	})
	require.NoError(t, err)
	assert.Equal(t, "BN-20260831-0002", second.BatchNumber)
}

func TestCreateBatchValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 1, Quantity: 5, CostPrice: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.CreateBatch(ctx, CreateBatchInput{Quantity: 5})
	assert.Error(t, err)
}

func TestCreateBatchRejectsDuplicateNumber(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 1, Quantity: 10, BatchNumber: "LOT-1"})
	require.NoError(t, err)
	_, err = svc.CreateBatch(ctx, CreateBatchInput{ProductID: 2, Quantity: 10, BatchNumber: "LOT-1"})
	assert.ErrorIs(t, err, ErrDuplicateBatchNumber)
}

func TestCreateBatchAlreadyExpired(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	past := time.Now().AddDate(0, -1, 0)

	created, err := svc.CreateBatch(context.Background(), CreateBatchInput{
		ProductID: 1, Quantity: 10, ExpiryDate: &past,
	})
	require.NoError(t, err)
	assert.Equal(t, BatchStatusExpired, created.Status)
}

func TestDeductFIFOAcrossBatches(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	oldest, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 7, Quantity: 30, ReceivedAt: day(1),
		SellingPrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	newer, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 7, Quantity: 40, ReceivedAt: day(2),
		SellingPrice: decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	deductions, err := svc.Deduct(ctx, DeductInput{ProductID: 7, Quantity: 50})
	require.NoError(t, err)
	require.Len(t, deductions, 2)

	assert.Equal(t, oldest.ID, deductions[0].BatchID)
	assert.Equal(t, int64(30), deductions[0].Quantity)
	assert.True(t, deductions[0].Depleted)

	assert.Equal(t, newer.ID, deductions[1].BatchID)
	assert.Equal(t, int64(20), deductions[1].Quantity)
	assert.False(t, deductions[1].Depleted)

	got, err := svc.Get(ctx, oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusDepleted, got.Status)
	assert.Equal(t, int64(0), got.QtyRemaining)

	got, err = svc.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.QtyRemaining)
	assert.Equal(t, BatchStatusActive, got.Status)
}

func TestDeductInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 7, Quantity: 10, ReceivedAt: day(1)})
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, DeductInput{ProductID: 7, Quantity: 11})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDeductRespectsReservations(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	b, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 7, Quantity: 10, ReceivedAt: day(1)})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, b.ID, 4)
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, DeductInput{ProductID: 7, Quantity: 7})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	deductions, err := svc.Deduct(ctx, DeductInput{ProductID: 7, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(6), deductions[0].Quantity)
}

func TestRestoreRevivesDepletedBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	b, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 3, Quantity: 5, ReceivedAt: day(1)})
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, DeductInput{ProductID: 3, Quantity: 5})
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, RestoreInput{BatchID: b.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), restored.QtyRemaining)
	assert.Equal(t, BatchStatusActive, restored.Status)

	_, err = svc.Restore(ctx, RestoreInput{BatchID: b.ID, Quantity: 4})
	assert.ErrorIs(t, err, ErrExceedsOriginalQty)
}

func TestQuarantineLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	b, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 3, Quantity: 5, ReceivedAt: day(1)})
	require.NoError(t, err)

	q, err := svc.Quarantine(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusQuarantined, q.Status)

	// Quarantined stock is invisible to the selector and to deduction.
	_, ok, err := svc.ActiveBatch(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Quarantine(ctx, b.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	re, err := svc.Reactivate(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusActive, re.Status)
}

func TestReactivatePastExpiryBecomesExpired(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	future := time.Now().AddDate(0, 0, 1)
	b, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 3, Quantity: 5, ExpiryDate: &future})
	require.NoError(t, err)

	_, err = svc.Quarantine(ctx, b.ID, 1)
	require.NoError(t, err)

	// Simulate the expiry date passing while quarantined.
	past := time.Now().AddDate(0, 0, -1)
	repo.batches[b.ID].ExpiryDate = &past

	re, err := svc.Reactivate(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusExpired, re.Status)
}

func TestExpirySweep(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	past := day(1)
	future := day(30)
	_, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 1, Quantity: 5, ExpiryDate: &future, ReceivedAt: day(1)})
	require.NoError(t, err)
	b2, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 1, Quantity: 5, ReceivedAt: day(1)})
	require.NoError(t, err)
	repo.batches[b2.ID].ExpiryDate = &past

	n, err := svc.ExpirySweep(ctx, day(15))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.Get(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusExpired, got.Status)
}

func TestActiveBatchFollowsDeduction(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 9, Quantity: 5, ReceivedAt: day(1)})
	require.NoError(t, err)
	second, err := svc.CreateBatch(ctx, CreateBatchInput{ProductID: 9, Quantity: 5, ReceivedAt: day(2)})
	require.NoError(t, err)

	active, ok, err := svc.ActiveBatch(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	_, err = svc.Deduct(ctx, DeductInput{ProductID: 9, Quantity: 5})
	require.NoError(t, err)

	active, ok, err = svc.ActiveBatch(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestStockValue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 5, Quantity: 10, SellingPrice: decimal.RequireFromString("12.50"), ReceivedAt: day(1),
	})
	require.NoError(t, err)
	b, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID: 5, Quantity: 4, SellingPrice: decimal.RequireFromString("13.00"), ReceivedAt: day(2),
	})
	require.NoError(t, err)
	_, err = svc.Quarantine(ctx, b.ID, 1)
	require.NoError(t, err)

	qty, value, err := svc.StockValue(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), qty)
	assert.True(t, decimal.RequireFromString("125.00").Equal(value))
}
