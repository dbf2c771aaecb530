package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed reports repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	var (
		gross, discount, net pgtype.Numeric
		count                int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(subtotal), 0), COALESCE(SUM(discount_amount), 0),
			COALESCE(SUM(total), 0), COUNT(*)
		FROM sales
		WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2`,
		from, to).Scan(&gross, &discount, &net, &count)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		From:          from,
		To:            to,
		GrossSales:    db.DecimalFromNumeric(gross),
		DiscountTotal: db.DecimalFromNumeric(discount),
		NetSales:      db.DecimalFromNumeric(net),
		Transactions:  count,
	}
	if count > 0 {
		s.AverageTicket = s.NetSales.Div(decimal.NewFromInt(count)).Round(2)
	}
	return s, nil
}

func (r *repository) Daily(ctx context.Context, from, to time.Time) ([]DailyPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT completed_at::date AS day, COALESCE(SUM(total), 0), COUNT(*)
		FROM sales
		WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2
		GROUP BY day ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []DailyPoint
	for rows.Next() {
		var (
			day time.Time
			net pgtype.Numeric
			n   int64
		)
		if err := rows.Scan(&day, &net, &n); err != nil {
			return nil, err
		}
		points = append(points, DailyPoint{
			Day:          day.Format("2006-01-02"),
			NetSales:     db.DecimalFromNumeric(net),
			Transactions: n,
		})
	}
	return points, rows.Err()
}

func (r *repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.product_id, l.product_name, SUM(l.quantity), COALESCE(SUM(l.line_total), 0)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.status = 'completed' AND s.completed_at >= $1 AND s.completed_at < $2
		GROUP BY l.product_id, l.product_name
		ORDER BY SUM(l.quantity) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []TopProduct
	for rows.Next() {
		var (
			p   TopProduct
			net pgtype.Numeric
		)
		if err := rows.Scan(&p.ProductID, &p.Name, &p.QtySold, &net); err != nil {
			return nil, err
		}
		p.NetSales = db.DecimalFromNumeric(net)
		top = append(top, p)
	}
	return top, rows.Err()
}

func (r *repository) Expiring(ctx context.Context, within time.Duration) ([]ExpiringBatch, error) {
	cutoff := time.Now().Add(within)
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.product_id, COALESCE(p.brand_name, p.generic_name), b.batch_number,
			b.expiry_date, b.qty_remaining
		FROM batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.status = 'active' AND b.qty_remaining > 0
			AND b.expiry_date IS NOT NULL AND b.expiry_date <= $1
		ORDER BY b.expiry_date, b.id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiringBatch
	for rows.Next() {
		var e ExpiringBatch
		if err := rows.Scan(&e.BatchID, &e.ProductID, &e.ProductName, &e.BatchNumber,
			&e.ExpiryDate, &e.QtyRemaining); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) Valuation(ctx context.Context) ([]ValuationRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, COALESCE(p.brand_name, p.generic_name),
			COALESCE(SUM(b.qty_remaining), 0),
			COALESCE(SUM(b.qty_remaining * b.selling_price), 0)
		FROM products p
		LEFT JOIN batches b ON b.product_id = p.id AND b.status = 'active' AND b.qty_remaining > 0
		WHERE NOT p.archived
		GROUP BY p.id ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValuationRow
	for rows.Next() {
		var (
			row   ValuationRow
			value pgtype.Numeric
		)
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Quantity, &value); err != nil {
			return nil, err
		}
		row.Value = db.DecimalFromNumeric(value).Round(2)
		out = append(out, row)
	}
	return out, rows.Err()
}
