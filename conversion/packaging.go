package conversion

import (
	"context"
	"fmt"
	"time"
)

// PackagingResolver turns a packaging id into a PackagingSnapshot.
// Validation of "usable" (active, positive capacity) lives here, not in the
// data-access layer beneath it.
type PackagingResolver struct {
	repo PackagingReader
	now  func() time.Time
}

func NewPackagingResolver(repo PackagingReader, now func() time.Time) *PackagingResolver {
	if now == nil {
		now = time.Now
	}
	return &PackagingResolver{repo: repo, now: now}
}

// Resolve re-reads current master data on every call and returns a fresh
// snapshot stamped with the current time and the record's version.
func (r *PackagingResolver) Resolve(ctx context.Context, packagingID string) (*PackagingSnapshot, error) {
	p, err := r.repo.PackagingByID(ctx, packagingID)
	if err != nil {
		return nil, fmt.Errorf("load packaging %s: %w", packagingID, err)
	}
	if p == nil {
		return nil, newError(CodePackagingNotFound, "packaging_type_id",
			"packaging %q does not exist", packagingID)
	}
	if !p.IsActive {
		return nil, newError(CodePackagingNotFound, "packaging_type_id",
			"packaging %q is inactive", packagingID)
	}
	if !p.CapacityLiters.IsPositive() {
		return nil, newError(CodePackagingNotFound, "packaging_type_id",
			"packaging %q has non-positive capacity %s", packagingID, p.CapacityLiters)
	}

	return &PackagingSnapshot{
		PackagingID:        p.ID,
		Code:               p.Code,
		Name:               p.Name,
		CapacityLiters:     p.CapacityLiters,
		TareWeightKg:       copyDecimal(p.TareWeightKg),
		NetWeightKgDefault: copyDecimal(p.NetWeightKgDefault),
		SnapshotAt:         r.now().UTC(),
		SnapshotVersion:    p.Version,
	}, nil
}
