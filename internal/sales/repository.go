package sales

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botica-pos/botica/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed sales repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const saleColumns = `id, receipt_number, customer_id, status, discount_type, subtotal,
	discount_amount, total, amount_paid, change_due, notes, refund_reason, created_by,
	completed_at, refunded_at, cancelled_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, sale Sale) (Sale, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO sales (customer_id, status, discount_type, subtotal, discount_amount,
				total, amount_paid, change_due, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at`,
			sale.CustomerID, sale.Status, sale.DiscountType,
			db.NumericFromDecimal(sale.Subtotal), db.NumericFromDecimal(sale.DiscountAmount),
			db.NumericFromDecimal(sale.Total), db.NumericFromDecimal(sale.AmountPaid),
			db.NumericFromDecimal(sale.ChangeDue), sale.Notes, sale.CreatedBy)
		if err := row.Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
			return err
		}
		for i := range sale.Lines {
			line := &sale.Lines[i]
			line.SaleID = sale.ID
			row := tx.QueryRow(ctx, `
				INSERT INTO sale_lines (sale_id, product_id, product_name, quantity, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				line.SaleID, line.ProductID, line.ProductName, line.Quantity,
				db.NumericFromDecimal(line.UnitPrice), db.NumericFromDecimal(line.LineTotal))
			if err := row.Scan(&line.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, err
	}
	if sale.Lines, err = r.lines(ctx, id); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (r *repository) lines(ctx context.Context, saleID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, line_total
		FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			line  Line
			price pgtype.Numeric
			total pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName,
			&line.Quantity, &price, &total); err != nil {
			return nil, err
		}
		line.UnitPrice = db.DecimalFromNumeric(price)
		line.LineTotal = db.DecimalFromNumeric(total)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lines {
		if lines[i].Allocations, err = r.allocations(ctx, lines[i].ID); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

func (r *repository) allocations(ctx context.Context, lineID int64) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, line_id, batch_id, quantity, unit_cost
		FROM sale_allocations WHERE line_id = $1 ORDER BY id`, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []Allocation
	for rows.Next() {
		var (
			a    Allocation
			cost pgtype.Numeric
		)
		if err := rows.Scan(&a.ID, &a.LineID, &a.BatchID, &a.Quantity, &cost); err != nil {
			return nil, err
		}
		a.UnitCost = db.DecimalFromNumeric(cost)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func (r *repository) Update(ctx context.Context, sale Sale) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales SET receipt_number = $2, status = $3, amount_paid = $4, change_due = $5,
			refund_reason = $6, completed_at = $7, refunded_at = $8, cancelled_at = $9,
			updated_at = now()
		WHERE id = $1`,
		sale.ID, sale.ReceiptNumber, sale.Status,
		db.NumericFromDecimal(sale.AmountPaid), db.NumericFromDecimal(sale.ChangeDue),
		sale.RefundReason, sale.CompletedAt, sale.RefundedAt, sale.CancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM sales WHERE 1=1`
	var args []any
	clause := ""

	if req.Status != nil {
		args = append(args, *req.Status)
		clause += ` AND status = $` + strconv.Itoa(len(args))
	}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		clause += ` AND customer_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query += clause + ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) +
		` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}

func (r *repository) CountCompletedOn(ctx context.Context, day time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sales
		WHERE status = 'completed' AND completed_at::date = $1::date`, day).Scan(&n)
	return n, err
}

func (r *repository) ReplaceAllocations(ctx context.Context, lineID int64, allocs []Allocation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sale_allocations WHERE line_id = $1`, lineID); err != nil {
			return err
		}
		for _, a := range allocs {
			_, err := tx.Exec(ctx, `
				INSERT INTO sale_allocations (line_id, batch_id, quantity, unit_cost)
				VALUES ($1, $2, $3, $4)`,
				lineID, a.BatchID, a.Quantity, db.NumericFromDecimal(a.UnitCost))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (Sale, error) {
	var (
		sale     Sale
		subtotal pgtype.Numeric
		discount pgtype.Numeric
		total    pgtype.Numeric
		paid     pgtype.Numeric
		change   pgtype.Numeric
	)
	err := row.Scan(&sale.ID, &sale.ReceiptNumber, &sale.CustomerID, &sale.Status,
		&sale.DiscountType, &subtotal, &discount, &total, &paid, &change,
		&sale.Notes, &sale.RefundReason, &sale.CreatedBy,
		&sale.CompletedAt, &sale.RefundedAt, &sale.CancelledAt,
		&sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	sale.Subtotal = db.DecimalFromNumeric(subtotal)
	sale.DiscountAmount = db.DecimalFromNumeric(discount)
	sale.Total = db.DecimalFromNumeric(total)
	sale.AmountPaid = db.DecimalFromNumeric(paid)
	sale.ChangeDue = db.DecimalFromNumeric(change)
	return sale, nil
}
