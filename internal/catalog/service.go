package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/botica-pos/botica/internal/pricing"
	"github.com/botica-pos/botica/internal/stock"
	"github.com/botica-pos/botica/internal/units"
)

// Repository abstracts catalog persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) error
	SetArchived(ctx context.Context, id int64, archived bool) error
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
}

// StockPort exposes the batch figures the catalog needs for display.
type StockPort interface {
	ActiveBatch(ctx context.Context, productID int64) (stock.Batch, bool, error)
	StockValue(ctx context.Context, productID int64) (int64, decimal.Decimal, error)
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search          string
	CategoryID      *int64
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Service coordinates catalog operations.
type Service struct {
	repo    Repository
	stock   StockPort
	titling cases.Caser
}

// NewService builds Service.
func NewService(repo Repository, stockPort StockPort) *Service {
	return &Service{repo: repo, stock: stockPort, titling: cases.Title(language.English)}
}

// CreateProductInput carries catalog entry fields.
type CreateProductInput struct {
	GenericName  string
	BrandName    *string
	CategoryID   *int64
	Packaging    []units.Tier
	ReorderLevel int64
}

// CreateProduct validates and stores a new product. The packaging
// descriptor must satisfy the strictly-increasing multiplier rule.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	name := strings.TrimSpace(input.GenericName)
	if name == "" {
		return Product{}, ErrNameRequired
	}
	if input.ReorderLevel < 0 {
		return Product{}, fmt.Errorf("catalog: reorder level must be >= 0")
	}
	if _, err := units.NewPackaging(input.Packaging); err != nil {
		return Product{}, err
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			return Product{}, err
		}
	}
	return s.repo.Create(ctx, Product{
		GenericName:  name,
		BrandName:    input.BrandName,
		CategoryID:   input.CategoryID,
		Packaging:    input.Packaging,
		ReorderLevel: input.ReorderLevel,
	})
}

// UpdateProductInput mutates product metadata. Nil fields are left alone.
type UpdateProductInput struct {
	GenericName  *string
	BrandName    *string
	CategoryID   *int64
	Packaging    []units.Tier
	ReorderLevel *int64
}

// UpdateProduct edits metadata only; quantities and prices are owned by
// the stock and sales services.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.Archived {
		return Product{}, ErrProductArchived
	}
	if input.GenericName != nil {
		name := strings.TrimSpace(*input.GenericName)
		if name == "" {
			return Product{}, ErrNameRequired
		}
		p.GenericName = name
	}
	if input.BrandName != nil {
		p.BrandName = input.BrandName
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			return Product{}, err
		}
		p.CategoryID = input.CategoryID
	}
	if input.Packaging != nil {
		if _, err := units.NewPackaging(input.Packaging); err != nil {
			return Product{}, err
		}
		p.Packaging = input.Packaging
	}
	if input.ReorderLevel != nil {
		if *input.ReorderLevel < 0 {
			return Product{}, fmt.Errorf("catalog: reorder level must be >= 0")
		}
		p.ReorderLevel = *input.ReorderLevel
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ArchiveProduct flags a product archived. Products are never physically
// deleted.
func (s *Service) ArchiveProduct(ctx context.Context, id int64) error {
	return s.repo.SetArchived(ctx, id, true)
}

// RestoreProduct clears the archived flag.
func (s *Service) RestoreProduct(ctx context.Context, id int64) error {
	return s.repo.SetArchived(ctx, id, false)
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// CreateCategory normalizes the name to title case and stores it.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = s.titling.String(strings.TrimSpace(name))
	if name == "" {
		return Category{}, fmt.Errorf("catalog: category name required")
	}
	return s.repo.CreateCategory(ctx, name)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// DisplayInfo is the reconciled product view the POS screens render: the
// metadata plus the price, expiry and stock figures governed by the active
// batch.
type DisplayInfo struct {
	Product      Product           `json:"product"`
	DisplayName  string            `json:"display_name"`
	InStock      bool              `json:"in_stock"`
	// BatchNumber is the active batch's number, or the legacy fallback
	// when no batch qualifies.
	BatchNumber  *string           `json:"batch_number,omitempty"`
	SellingPrice *decimal.Decimal  `json:"selling_price,omitempty"`
	CostPrice    *decimal.Decimal  `json:"cost_price,omitempty"`
	MarginPct    *decimal.Decimal  `json:"margin_pct,omitempty"`
	ExpiryDate   *string           `json:"expiry_date,omitempty"`
	QtyBaseUnits int64             `json:"qty_base_units"`
	Breakdown    []units.TierCount `json:"breakdown"`
	StockValue   decimal.Decimal   `json:"stock_value"`
}

// Display assembles the reconciled view for one product. When no batch is
// eligible the price and expiry fields stay nil and the caller renders
// "not specified"; the cached legacy batch number is surfaced for display
// only.
func (s *Service) Display(ctx context.Context, productID int64) (DisplayInfo, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return DisplayInfo{}, err
	}
	packaging, err := units.NewPackaging(p.Packaging)
	if err != nil {
		return DisplayInfo{}, err
	}

	info := DisplayInfo{Product: p, DisplayName: p.DisplayName()}

	qty, value, err := s.stock.StockValue(ctx, productID)
	if err != nil {
		return DisplayInfo{}, err
	}
	info.QtyBaseUnits = qty
	info.StockValue = value
	if info.Breakdown, err = packaging.Breakdown(qty); err != nil {
		return DisplayInfo{}, err
	}

	active, ok, err := s.stock.ActiveBatch(ctx, productID)
	if err != nil {
		return DisplayInfo{}, err
	}
	if !ok {
		info.BatchNumber = p.LegacyBatchNumber
		return info, nil
	}
	info.InStock = true
	info.BatchNumber = &active.BatchNumber
	info.SellingPrice = &active.SellingPrice
	info.CostPrice = &active.CostPrice
	margin := pricing.DeriveMargin(active.CostPrice, active.SellingPrice)
	info.MarginPct = &margin
	if active.ExpiryDate != nil {
		formatted := active.ExpiryDate.Format("2006-01-02")
		info.ExpiryDate = &formatted
	}
	return info, nil
}
