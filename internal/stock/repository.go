package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botica-pos/botica/internal/platform/db"
)

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const batchColumns = `id, product_id, batch_number, qty_remaining, qty_original, qty_reserved,
	cost_price, selling_price, expiry_date, received_at, status, created_at, updated_at`

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) Get(ctx context.Context, batchID int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, batchID)
	return scanBatch(row)
}

func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE product_id = $1 ORDER BY received_at, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (r *Repository) LowStock(ctx context.Context) ([]LowStockEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.generic_name, COALESCE(SUM(b.qty_remaining) FILTER (WHERE b.status = 'active'), 0), p.reorder_level
		FROM products p
		LEFT JOIN batches b ON b.product_id = p.id
		WHERE NOT p.archived
		GROUP BY p.id, p.generic_name, p.reorder_level
		HAVING COALESCE(SUM(b.qty_remaining) FILTER (WHERE b.status = 'active'), 0) <= p.reorder_level
		ORDER BY p.generic_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LowStockEntry
	for rows.Next() {
		var e LowStockEntry
		if err := rows.Scan(&e.ProductID, &e.ProductName, &e.QtyRemaining, &e.ReorderLevel); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE batches SET status = 'expired', updated_at = NOW()
		 WHERE status = 'active' AND expiry_date IS NOT NULL AND expiry_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) Insert(ctx context.Context, batch Batch) (Batch, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO batches (product_id, batch_number, qty_remaining, qty_original, qty_reserved,
			cost_price, selling_price, expiry_date, received_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+batchColumns,
		batch.ProductID, batch.BatchNumber, batch.QtyRemaining, batch.QtyOriginal, batch.QtyReserved,
		db.NumericFromDecimal(batch.CostPrice), db.NumericFromDecimal(batch.SellingPrice),
		batch.ExpiryDate, batch.ReceivedAt, string(batch.Status))
	created, err := scanBatch(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Batch{}, ErrDuplicateBatchNumber
		}
		return Batch{}, err
	}
	return created, nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, batchID int64) (Batch, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID)
	return scanBatch(row)
}

func (t *txRepository) ListSellableForUpdate(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+batchColumns+` FROM batches
		WHERE product_id = $1 AND status = 'active' AND qty_remaining > 0
		ORDER BY received_at, expiry_date NULLS LAST, id
		FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (t *txRepository) UpdateState(ctx context.Context, batch Batch) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE batches
		SET qty_remaining = $2, qty_reserved = $3, qty_original = $4, status = $5, updated_at = NOW()
		WHERE id = $1`,
		batch.ID, batch.QtyRemaining, batch.QtyReserved, batch.QtyOriginal, string(batch.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (t *txRepository) CountReceivedOn(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM batches WHERE received_at::date = $1::date`, day).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		b      Batch
		cost   pgtype.Numeric
		sell   pgtype.Numeric
		status string
	)
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.QtyRemaining, &b.QtyOriginal, &b.QtyReserved,
		&cost, &sell, &b.ExpiryDate, &b.ReceivedAt, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	b.CostPrice = db.DecimalFromNumeric(cost)
	b.SellingPrice = db.DecimalFromNumeric(sell)
	b.Status = BatchStatus(status)
	return b, nil
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
