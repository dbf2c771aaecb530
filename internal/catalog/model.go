package catalog

import (
	"errors"
	"time"

	"github.com/botica-pos/botica/internal/units"
)

// Product is the canonical, slow-changing record for a sellable item.
// Stock-affecting figures live on batches; the product only carries
// metadata and the packaging descriptor.
type Product struct {
	ID          int64        `json:"id"`
	GenericName string       `json:"generic_name"`
	BrandName   *string      `json:"brand_name,omitempty"`
	CategoryID  *int64       `json:"category_id,omitempty"`
	Packaging   []units.Tier `json:"packaging,omitempty"`
	// ReorderLevel is the base-unit quantity at or below which the product
	// shows up in low-stock reports.
	ReorderLevel int64 `json:"reorder_level"`
	// LegacyBatchNumber is a display-only fallback kept from imported data;
	// it never participates in stock arithmetic.
	LegacyBatchNumber *string   `json:"legacy_batch_number,omitempty"`
	Archived          bool      `json:"archived"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DisplayName returns the brand name when present, otherwise the generic
// name.
func (p Product) DisplayName() string {
	if p.BrandName != nil && *p.BrandName != "" {
		return *p.BrandName
	}
	return p.GenericName
}

// Category is a managed grouping for catalog browsing.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCategoryNotFound indicates the category does not exist.
	ErrCategoryNotFound = errors.New("catalog: category not found")
	// ErrDuplicateCategory indicates the category name is already taken.
	ErrDuplicateCategory = errors.New("catalog: category already exists")
	// ErrProductArchived indicates a mutation against an archived product.
	ErrProductArchived = errors.New("catalog: product archived")
	// ErrNameRequired indicates a missing generic name.
	ErrNameRequired = errors.New("catalog: generic name required")
)
