package customers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed customer repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, name, phone, email, address, purchase_count, total_spent,
	last_purchase_at, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (r *repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM customers WHERE 1=1`
	var args []any
	clause := ""

	if req.ActiveOnly {
		clause += ` AND is_active`
	}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		n := strconv.Itoa(len(args))
		clause += ` AND (name ILIKE $` + n + ` OR phone ILIKE $` + n + ` OR email ILIKE $` + n + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit)
	limitArg := strconv.Itoa(len(args))
	args = append(args, req.Offset)
	offsetArg := strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx,
		query+clause+` ORDER BY name, id LIMIT $`+limitArg+` OFFSET $`+offsetArg, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email, address, purchase_count, total_spent, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, TRUE, NOW(), NOW())
		RETURNING `+customerColumns,
		c.Name, c.Phone, c.Email, c.Address)
	created, err := scanCustomer(row)
	if err != nil {
		return Customer{}, mapUniqueViolation(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, c Customer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.IsActive)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) FindActiveByPhone(ctx context.Context, phone string) (Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone = $1 AND is_active`, phone)
	return scanCustomer(row)
}

func (r *repository) FindActiveByEmail(ctx context.Context, email string) (Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = LOWER($1) AND is_active`, email)
	return scanCustomer(row)
}

func (r *repository) FindActiveByName(ctx context.Context, name string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE LOWER(name) = LOWER($1) AND is_active
		ORDER BY last_purchase_at DESC NULLS LAST, id
		LIMIT 1`, name)
	return scanCustomer(row)
}

func (r *repository) ApplySale(ctx context.Context, id int64, total decimal.Decimal, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET purchase_count = purchase_count + 1,
			total_spent = total_spent + $2,
			last_purchase_at = GREATEST(COALESCE(last_purchase_at, $3), $3),
			updated_at = NOW()
		WHERE id = $1`,
		id, db.NumericFromDecimal(total), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) RecalculateStats(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers c
		SET purchase_count = agg.cnt,
			total_spent = agg.sum,
			last_purchase_at = agg.last,
			updated_at = NOW()
		FROM (
			SELECT customer_id, COUNT(*) AS cnt, COALESCE(SUM(total), 0) AS sum, MAX(completed_at) AS last
			FROM sales
			WHERE status = 'completed' AND customer_id IS NOT NULL
			GROUP BY customer_id
		) agg
		WHERE c.id = agg.customer_id`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var (
		c     Customer
		spent pgtype.Numeric
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.PurchaseCount, &spent,
		&c.LastPurchaseAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	c.TotalSpent = db.DecimalFromNumeric(spent)
	return c, nil
}

// mapUniqueViolation translates the partial unique indexes on phone and
// email into domain errors.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "customers_email_active_key" {
			return ErrDuplicateEmail
		}
		return ErrDuplicatePhone
	}
	return err
}
