/*
Package sqlite provides a SQLite-backed master-data store.

PURPOSE:
  Implements conversion.MasterData (by-id product and packaging lookups)
  plus the write operations the HTTP layer needs to maintain master data.
  In production the same patterns apply to PostgreSQL with minor dialect
  differences.

NO BUSINESS RULES:
  Lookups are dumb by-id fetches. An inactive or zero-capacity packaging row
  is returned exactly as stored; deciding whether it is usable is the
  engine's PackagingResolver's job.

KEY TABLES:
  products:        density_kg_per_l plus density version/validation metadata
  packaging_types: capacity, weights, is_active, version

DECIMALS:
  Quantities are stored as TEXT in canonical decimal form so no value ever
  passes through float64.

VERSIONING:
  SavePackaging increments version on every update so snapshots can be
  traced back to the master-data revision they copied.

USAGE:
  store, err := sqlite.New("./data/uom.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := conversion.New(store)

SEE ALSO:
  - conversion/repository.go: Interface definitions
  - conversion/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/uom-engine/conversion"
)

// Store implements conversion.MasterData using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		density_kg_per_l TEXT,
		density_version INTEGER NOT NULL DEFAULT 0,
		density_effective_at TEXT,
		density_validated_by TEXT,
		density_validated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS packaging_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		capacity_liters TEXT NOT NULL,
		tare_weight_kg TEXT,
		net_weight_kg_default TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_packaging_code
		ON packaging_types(code);
	CREATE INDEX IF NOT EXISTS idx_packaging_active
		ON packaging_types(is_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all master data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"products", "packaging_types"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// SaveProduct inserts or replaces a product.
func (s *Store) SaveProduct(ctx context.Context, p conversion.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products (id, name, density_kg_per_l, density_version, density_effective_at,
			density_validated_by, density_validated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			density_kg_per_l = excluded.density_kg_per_l,
			density_version = excluded.density_version,
			density_effective_at = excluded.density_effective_at,
			density_validated_by = excluded.density_validated_by,
			density_validated_at = excluded.density_validated_at,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, nullDecimal(p.DensityKgPerL), p.DensityVersion,
		nullTime(&p.DensityEffectiveAt), nullString(p.DensityValidatedBy), nullTime(p.DensityValidatedAt),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

const productColumns = `id, name, density_kg_per_l, density_version, density_effective_at,
	density_validated_by, density_validated_at`

// ProductByID returns the product or (nil, nil) if it does not exist.
func (s *Store) ProductByID(ctx context.Context, id string) (*conversion.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// ListProducts returns all products ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]conversion.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []conversion.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row scanner) (conversion.Product, error) {
	var p conversion.Product
	var density, effectiveAt, validatedBy, validatedAt sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &density, &p.DensityVersion, &effectiveAt, &validatedBy, &validatedAt); err != nil {
		return p, err
	}
	d, err := parseNullDecimal(density)
	if err != nil {
		return p, fmt.Errorf("product %s density: %w", p.ID, err)
	}
	p.DensityKgPerL = d
	if t := parseNullTime(effectiveAt); t != nil {
		p.DensityEffectiveAt = *t
	}
	p.DensityValidatedBy = validatedBy.String
	p.DensityValidatedAt = parseNullTime(validatedAt)
	return p, nil
}

// =============================================================================
// PACKAGING
// =============================================================================

// SavePackaging inserts a packaging type at version 1 or updates it and
// increments its version.
func (s *Store) SavePackaging(ctx context.Context, p conversion.Packaging) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO packaging_types (id, code, name, capacity_liters, tare_weight_kg,
			net_weight_kg_default, is_active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			capacity_liters = excluded.capacity_liters,
			tare_weight_kg = excluded.tare_weight_kg,
			net_weight_kg_default = excluded.net_weight_kg_default,
			is_active = excluded.is_active,
			version = packaging_types.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Code, p.Name, p.CapacityLiters.String(),
		nullDecimal(p.TareWeightKg), nullDecimal(p.NetWeightKgDefault),
		p.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("save packaging %s: %w", p.ID, err)
	}
	return nil
}

// DeactivatePackaging marks a packaging type inactive. Returns false if no
// such row exists.
func (s *Store) DeactivatePackaging(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE packaging_types SET is_active = 0, version = version + 1, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate packaging %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const packagingColumns = `id, code, name, capacity_liters, tare_weight_kg, net_weight_kg_default, is_active, version`

// PackagingByID returns the packaging row or (nil, nil) if it does not exist.
func (s *Store) PackagingByID(ctx context.Context, id string) (*conversion.Packaging, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+packagingColumns+" FROM packaging_types WHERE id = ?", id)
	p, err := scanPackaging(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get packaging %s: %w", id, err)
	}
	return &p, nil
}

// ListPackaging returns all packaging types, active or not, ordered by code.
func (s *Store) ListPackaging(ctx context.Context) ([]conversion.Packaging, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+packagingColumns+" FROM packaging_types ORDER BY code, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []conversion.Packaging
	for rows.Next() {
		p, err := scanPackaging(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPackaging(row scanner) (conversion.Packaging, error) {
	var p conversion.Packaging
	var capacity string
	var tare, net sql.NullString
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &capacity, &tare, &net, &p.IsActive, &p.Version); err != nil {
		return p, err
	}
	c, err := decimal.NewFromString(capacity)
	if err != nil {
		return p, fmt.Errorf("packaging %s capacity: %w", p.ID, err)
	}
	p.CapacityLiters = c
	if p.TareWeightKg, err = parseNullDecimal(tare); err != nil {
		return p, fmt.Errorf("packaging %s tare: %w", p.ID, err)
	}
	if p.NetWeightKgDefault, err = parseNullDecimal(net); err != nil {
		return p, fmt.Errorf("packaging %s net weight: %w", p.ID, err)
	}
	return p, nil
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
