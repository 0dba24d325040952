package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DensityResolver picks the kg-per-liter density for a conversion.
//
// Priority:
//  1. frozen density from an earlier step of the same transaction (verbatim);
//     a new override alongside it is DENSITY_ALREADY_FROZEN
//  2. manual override, subject to approval
//  3. product master; absent or non-positive yields (nil, nil)
type DensityResolver struct {
	repo ProductReader
}

func NewDensityResolver(repo ProductReader) *DensityResolver {
	return &DensityResolver{repo: repo}
}

func (r *DensityResolver) Resolve(ctx context.Context, productID string, override *DensityOverride, frozen *DensityInfo, requestedAt time.Time) (*DensityInfo, error) {
	if frozen != nil {
		if override != nil {
			return nil, newError(CodeDensityAlreadyFrozen, "density_override",
				"density %s is frozen for this transaction and cannot be overridden", frozen.Value)
		}
		if !frozen.Value.IsPositive() {
			return nil, newError(CodeMissingDensity, "existing_density",
				"frozen density %s is not positive", frozen.Value)
		}
		d := *frozen
		d.ValidatedAt = copyTime(frozen.ValidatedAt)
		return &d, nil
	}

	if override != nil {
		return resolveOverride(*override, requestedAt)
	}

	p, err := r.repo.ProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	if p == nil || p.DensityKgPerL == nil || !p.DensityKgPerL.IsPositive() {
		return nil, nil
	}
	return &DensityInfo{
		Value:         *p.DensityKgPerL,
		Source:        DensityFromProductMaster,
		Version:       p.DensityVersion,
		EffectiveDate: p.DensityEffectiveAt,
		ValidatedBy:   p.DensityValidatedBy,
		ValidatedAt:   copyTime(p.DensityValidatedAt),
	}, nil
}

func resolveOverride(o DensityOverride, requestedAt time.Time) (*DensityInfo, error) {
	if o.RequiresApproval() && o.ApprovedBy == "" {
		return nil, newError(CodeDensityOverrideUnapproved, "density_override.approved_by",
			"density override %s requires approval", o.Value)
	}
	if !o.Value.IsPositive() {
		return nil, newError(CodeMissingDensity, "density_override.value",
			"density override %s is not positive", o.Value)
	}
	effective := requestedAt
	if o.ApprovedAt != nil {
		effective = *o.ApprovedAt
	}
	return &DensityInfo{
		Value:         o.Value,
		Source:        DensityFromOverride,
		EffectiveDate: effective,
		ValidatedBy:   o.ApprovedBy,
		ValidatedAt:   copyTime(o.ApprovedAt),
	}, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
