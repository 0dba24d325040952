// Package store provides MasterData implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/uom-engine/conversion"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a by-id master-data store. Writes and reads copy records,
// pointer fields included, so callers never share state with the store.
type Memory struct {
	mu        sync.RWMutex
	products  map[string]conversion.Product
	packaging map[string]conversion.Packaging
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[string]conversion.Product),
		packaging: make(map[string]conversion.Packaging),
	}
}

// PutProduct inserts or replaces a product.
func (m *Memory) PutProduct(p conversion.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = cloneProduct(p)
}

// PutPackaging inserts or replaces a packaging type. Replacing bumps Version
// when the caller did not set a higher one.
func (m *Memory) PutPackaging(p conversion.Packaging) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.packaging[p.ID]; ok && p.Version <= existing.Version {
		p.Version = existing.Version + 1
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.packaging[p.ID] = clonePackaging(p)
}

func (m *Memory) ProductByID(_ context.Context, id string) (*conversion.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	p = cloneProduct(p)
	return &p, nil
}

func (m *Memory) PackagingByID(_ context.Context, id string) (*conversion.Packaging, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.packaging[id]
	if !ok {
		return nil, nil
	}
	p = clonePackaging(p)
	return &p, nil
}

// ListPackaging returns all packaging types ordered by id.
func (m *Memory) ListPackaging(_ context.Context) ([]conversion.Packaging, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]conversion.Packaging, 0, len(m.packaging))
	for _, p := range m.packaging {
		result = append(result, clonePackaging(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// cloneProduct and clonePackaging copy pointer fields so stored records share
// nothing with callers.
func cloneProduct(p conversion.Product) conversion.Product {
	p.DensityKgPerL = cloneDecimal(p.DensityKgPerL)
	if p.DensityValidatedAt != nil {
		t := *p.DensityValidatedAt
		p.DensityValidatedAt = &t
	}
	return p
}

func clonePackaging(p conversion.Packaging) conversion.Packaging {
	p.TareWeightKg = cloneDecimal(p.TareWeightKg)
	p.NetWeightKgDefault = cloneDecimal(p.NetWeightKgDefault)
	return p
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
