package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botica-pos/botica/internal/units"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, generic_name, brand_name, category_id, packaging, reorder_level,
	legacy_batch_number, archived, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	var args []any
	clause := ""

	if !filter.IncludeArchived {
		clause += ` AND NOT archived`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		clause += ` AND (generic_name ILIKE $` + n + ` OR brand_name ILIKE $` + n + `)`
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clause += ` AND category_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit)
	limitArg := strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetArg := strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx,
		query+clause+` ORDER BY generic_name, id LIMIT $`+limitArg+` OFFSET $`+offsetArg, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	packaging, err := marshalPackaging(p.Packaging)
	if err != nil {
		return Product{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (generic_name, brand_name, category_id, packaging, reorder_level,
			legacy_batch_number, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())
		RETURNING `+productColumns,
		p.GenericName, p.BrandName, p.CategoryID, packaging, p.ReorderLevel, p.LegacyBatchNumber)
	return scanProduct(row)
}

func (r *repository) Update(ctx context.Context, p Product) error {
	packaging, err := marshalPackaging(p.Packaging)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET generic_name = $2, brand_name = $3, category_id = $4, packaging = $5,
			reorder_level = $6, legacy_batch_number = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.GenericName, p.BrandName, p.CategoryID, packaging, p.ReorderLevel, p.LegacyBatchNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repository) SetArchived(ctx context.Context, id int64, archived bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET archived = $2, updated_at = NOW() WHERE id = $1`, id, archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repository) CreateCategory(ctx context.Context, name string) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, NOW()) RETURNING id, name, created_at`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, ErrDuplicateCategory
		}
		return Category{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p         Product
		packaging []byte
	)
	err := row.Scan(&p.ID, &p.GenericName, &p.BrandName, &p.CategoryID, &packaging,
		&p.ReorderLevel, &p.LegacyBatchNumber, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	if len(packaging) > 0 {
		if err := json.Unmarshal(packaging, &p.Packaging); err != nil {
			return Product{}, err
		}
	}
	return p, nil
}

func marshalPackaging(tiers []units.Tier) ([]byte, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	return json.Marshal(tiers)
}
