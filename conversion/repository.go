package conversion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MASTER DATA - Read-only collaborators
// =============================================================================

// Product is the slice of product master data the engine reads.
type Product struct {
	ID                 string
	Name               string
	DensityKgPerL      *decimal.Decimal
	DensityVersion     int
	DensityEffectiveAt time.Time
	DensityValidatedBy string
	DensityValidatedAt *time.Time
}

// Packaging is a packaging-master record as stored. No business rules are
// applied at this level: inactive or zero-capacity rows are returned as-is.
type Packaging struct {
	ID                 string
	Code               string
	Name               string
	CapacityLiters     decimal.Decimal
	TareWeightKg       *decimal.Decimal
	NetWeightKgDefault *decimal.Decimal
	IsActive           bool
	Version            int
}

// ProductReader fetches a product by id. A missing product is (nil, nil).
type ProductReader interface {
	ProductByID(ctx context.Context, id string) (*Product, error)
}

// PackagingReader fetches a packaging type by id. A missing row is (nil, nil).
type PackagingReader interface {
	PackagingByID(ctx context.Context, id string) (*Packaging, error)
}

// MasterData is everything the engine needs from persistence.
// Implementations:
//   - conversion/store.Memory: in-memory, for tests and dev
//   - store/sqlite.Store: SQLite
type MasterData interface {
	ProductReader
	PackagingReader
}
