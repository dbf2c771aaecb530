package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, batchID int64) (Batch, error)
	ListByProduct(ctx context.Context, productID int64) ([]Batch, error)
	LowStock(ctx context.Context) ([]LowStockEntry, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// TxRepository exposes the transactional operations the service needs.
type TxRepository interface {
	Insert(ctx context.Context, batch Batch) (Batch, error)
	GetForUpdate(ctx context.Context, batchID int64) (Batch, error)
	ListSellableForUpdate(ctx context.Context, productID int64) ([]Batch, error)
	UpdateState(ctx context.Context, batch Batch) error
	CountReceivedOn(ctx context.Context, day time.Time) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// BatchNumberPrefix prefixes generated batch numbers. Defaults to "BN".
	BatchNumberPrefix string
}

// Service coordinates batch lifecycle and FIFO stock movements.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	prefix      string
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	prefix := cfg.BatchNumberPrefix
	if prefix == "" {
		prefix = "BN"
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, prefix: prefix, now: time.Now}
}

// CreateBatch records a stock receipt. A batch number is generated from the
// received date when the input does not carry one.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	if input.ProductID == 0 {
		return Batch{}, errors.New("stock: product required")
	}
	if input.Quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if input.CostPrice.Sign() < 0 || input.SellingPrice.Sign() < 0 {
		return Batch{}, ErrInvalidPrice
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now().UTC()
	}

	var created Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number := input.BatchNumber
		if number == "" {
			seq, err := tx.CountReceivedOn(ctx, receivedAt)
			if err != nil {
				return err
			}
			number = fmt.Sprintf("%s-%s-%04d", s.prefix, receivedAt.Format("20060102"), seq+1)
		}
		batch := Batch{
			ProductID:    input.ProductID,
			BatchNumber:  number,
			QtyRemaining: input.Quantity,
			QtyOriginal:  input.Quantity,
			CostPrice:    input.CostPrice,
			SellingPrice: input.SellingPrice,
			ExpiryDate:   input.ExpiryDate,
			ReceivedAt:   receivedAt,
			Status:       BatchStatusActive,
		}
		if batch.ExpiredAt(s.now()) {
			batch.Status = BatchStatusExpired
		}
		var err error
		created, err = tx.Insert(ctx, batch)
		return err
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:receive", created.ID, map[string]any{
		"product_id":   created.ProductID,
		"batch_number": created.BatchNumber,
		"qty":          created.QtyOriginal,
	})
	return created, nil
}

// Get returns a single batch.
func (s *Service) Get(ctx context.Context, batchID int64) (Batch, error) {
	return s.repo.Get(ctx, batchID)
}

// ListByProduct returns all batches of a product, newest received last.
func (s *Service) ListByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	if productID == 0 {
		return nil, errors.New("stock: product required")
	}
	return s.repo.ListByProduct(ctx, productID)
}

// ActiveBatch returns the batch governing the product's displayed price,
// expiry and stock. The boolean is false when no batch qualifies.
func (s *Service) ActiveBatch(ctx context.Context, productID int64) (Batch, bool, error) {
	batches, err := s.ListByProduct(ctx, productID)
	if err != nil {
		return Batch{}, false, err
	}
	batch, ok := SelectActive(batches)
	return batch, ok, nil
}

// DeductInput describes an outbound movement fulfilled FIFO.
type DeductInput struct {
	ProductID int64
	Quantity  int64
	// Ref ties the movement to its originating document (e.g. a receipt
	// number) and keys idempotency when present.
	Ref     string
	ActorID int64
}

// Deduct removes quantity from the product's sellable batches in FIFO
// order, splitting across batches when the oldest cannot cover the full
// amount. Batches reaching zero are marked depleted.
func (s *Service) Deduct(ctx context.Context, input DeductInput) ([]Deduction, error) {
	if input.ProductID == 0 {
		return nil, errors.New("stock: product required")
	}
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	insertedKey := ""
	if s.idempotency != nil && input.Ref != "" {
		key := fmt.Sprintf("deduct:%s:%d", input.Ref, input.ProductID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return nil, err
		}
		insertedKey = key
	}

	var deductions []Deduction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batches, err := tx.ListSellableForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		sortFIFO(batches)

		remaining := input.Quantity
		for i := range batches {
			if remaining == 0 {
				break
			}
			b := batches[i]
			available := b.QtyRemaining - b.QtyReserved
			if available <= 0 {
				continue
			}
			take := available
			if take > remaining {
				take = remaining
			}
			b.QtyRemaining -= take
			if b.QtyRemaining == 0 {
				b.Status = BatchStatusDepleted
			}
			if err := tx.UpdateState(ctx, b); err != nil {
				return err
			}
			deductions = append(deductions, Deduction{
				BatchID:     b.ID,
				BatchNumber: b.BatchNumber,
				Quantity:    take,
				UnitCost:    b.CostPrice,
				UnitPrice:   b.SellingPrice,
				Depleted:    b.Status == BatchStatusDepleted,
			})
			remaining -= take
		}
		if remaining > 0 {
			return fmt.Errorf("%w: short %d for product %d", ErrInsufficientStock, remaining, input.ProductID)
		}
		return nil
	})
	if err != nil {
		if insertedKey != "" {
			_ = s.idempotency.Delete(ctx, insertedKey)
		}
		return nil, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:deduct", input.ProductID, map[string]any{
		"qty": input.Quantity,
		"ref": input.Ref,
	})
	return deductions, nil
}

// RestoreInput describes a refund-driven quantity restoration.
type RestoreInput struct {
	BatchID  int64
	Quantity int64
	Ref      string
	ActorID  int64
}

// Restore puts refunded quantity back onto its original batch, capped at
// the batch's original quantity. A depleted batch becomes active again;
// expired and quarantined batches keep their status.
func (s *Service) Restore(ctx context.Context, input RestoreInput) (Batch, error) {
	if input.Quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}

	insertedKey := ""
	if s.idempotency != nil && input.Ref != "" {
		key := fmt.Sprintf("restore:%s:%d", input.Ref, input.BatchID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return Batch{}, err
		}
		insertedKey = key
	}

	var restored Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, input.BatchID)
		if err != nil {
			return err
		}
		if b.QtyRemaining+input.Quantity > b.QtyOriginal {
			return ErrExceedsOriginalQty
		}
		b.QtyRemaining += input.Quantity
		if b.Status == BatchStatusDepleted {
			b.Status = BatchStatusActive
			if b.ExpiredAt(s.now()) {
				b.Status = BatchStatusExpired
			}
		}
		restored = b
		return tx.UpdateState(ctx, b)
	})
	if err != nil {
		if insertedKey != "" {
			_ = s.idempotency.Delete(ctx, insertedKey)
		}
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:restore", input.BatchID, map[string]any{
		"qty": input.Quantity,
		"ref": input.Ref,
	})
	return restored, nil
}

// Restock adds quantity to an existing batch, raising both remaining and
// original quantities.
func (s *Service) Restock(ctx context.Context, batchID, quantity, actorID int64) (Batch, error) {
	if quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Status == BatchStatusQuarantined {
			return fmt.Errorf("%w: cannot restock quarantined batch", ErrInvalidTransition)
		}
		b.QtyRemaining += quantity
		b.QtyOriginal += quantity
		if b.Status == BatchStatusDepleted {
			b.Status = BatchStatusActive
			if b.ExpiredAt(s.now()) {
				b.Status = BatchStatusExpired
			}
		}
		updated = b
		return tx.UpdateState(ctx, b)
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "stock:restock", batchID, map[string]any{"qty": quantity})
	return updated, nil
}

// Quarantine pulls a batch from sale. Only active or expired batches can be
// quarantined; the state holds until an explicit reactivation.
func (s *Service) Quarantine(ctx context.Context, batchID, actorID int64) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Status != BatchStatusActive && b.Status != BatchStatusExpired {
			return fmt.Errorf("%w: %s -> quarantined", ErrInvalidTransition, b.Status)
		}
		b.Status = BatchStatusQuarantined
		updated = b
		return tx.UpdateState(ctx, b)
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "stock:quarantine", batchID, nil)
	return updated, nil
}

// Reactivate releases a quarantined batch. The resulting status is derived
// from its expiry and remaining quantity.
func (s *Service) Reactivate(ctx context.Context, batchID, actorID int64) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Status != BatchStatusQuarantined {
			return fmt.Errorf("%w: %s -> active", ErrInvalidTransition, b.Status)
		}
		switch {
		case b.ExpiredAt(s.now()):
			b.Status = BatchStatusExpired
		case b.QtyRemaining == 0:
			b.Status = BatchStatusDepleted
		default:
			b.Status = BatchStatusActive
		}
		updated = b
		return tx.UpdateState(ctx, b)
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "stock:reactivate", batchID, nil)
	return updated, nil
}

// Reserve holds quantity on a batch, e.g. for an in-flight POS cart.
func (s *Service) Reserve(ctx context.Context, batchID, quantity int64) (Batch, error) {
	return s.adjustReservation(ctx, batchID, quantity)
}

// Release frees a previous reservation.
func (s *Service) Release(ctx context.Context, batchID, quantity int64) (Batch, error) {
	return s.adjustReservation(ctx, batchID, -quantity)
}

func (s *Service) adjustReservation(ctx context.Context, batchID, delta int64) (Batch, error) {
	if delta == 0 {
		return Batch{}, ErrInvalidQuantity
	}
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		next := b.QtyReserved + delta
		if next < 0 {
			next = 0
		}
		if next > b.QtyRemaining {
			return ErrReservedExceedsStock
		}
		b.QtyReserved = next
		updated = b
		return tx.UpdateState(ctx, b)
	})
	if err != nil {
		return Batch{}, err
	}
	return updated, nil
}

// ExpirySweep advances active batches past their expiry date to expired and
// returns how many changed. Invoked by the scheduled maintenance task.
func (s *Service) ExpirySweep(ctx context.Context, now time.Time) (int64, error) {
	if now.IsZero() {
		now = s.now().UTC()
	}
	return s.repo.MarkExpired(ctx, now)
}

// LowStock lists products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]LowStockEntry, error) {
	return s.repo.LowStock(ctx)
}

// StockValue returns the sellable quantity and its value at selling price
// for a product, from the sellable batches.
func (s *Service) StockValue(ctx context.Context, productID int64) (int64, decimal.Decimal, error) {
	batches, err := s.ListByProduct(ctx, productID)
	if err != nil {
		return 0, decimal.Zero, err
	}
	var qty int64
	value := decimal.Zero
	for _, b := range batches {
		if !b.Sellable() {
			continue
		}
		qty += b.QtyRemaining
		value = value.Add(b.SellingPrice.Mul(decimal.NewFromInt(b.QtyRemaining)))
	}
	return qty, value.Round(2), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "batch",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
