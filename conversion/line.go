package conversion

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION LINES - Guard for entities that carry a quantity
// =============================================================================

// TransactionLine is a quantity-bearing line of an order, job, GRN or
// dispatch as stored by the surrounding application. Older documents may
// only carry LegacyQuantityKg.
type TransactionLine struct {
	ProductID        string
	Quantity         decimal.Decimal
	UOM              string
	LegacyQuantityKg *decimal.Decimal
	PackagingID      string
	Context          TransactionContext
}

// CheckLine rejects lines without an explicit unit. The engine never falls
// back to a legacy kg field or assumes a default unit.
func CheckLine(line TransactionLine) error {
	if strings.TrimSpace(line.UOM) != "" {
		return nil
	}
	if line.LegacyQuantityKg != nil {
		return newError(CodeLegacyFallbackBlocked, "uom",
			"line for product %q has only a legacy kg quantity (%s); an explicit unit is required",
			line.ProductID, *line.LegacyQuantityKg)
	}
	return newError(CodeUnitlessTransactionEntity, "uom",
		"line for product %q has no unit of measure", line.ProductID)
}

// Request builds the ConversionRequest for a line that passed CheckLine.
func (line TransactionLine) Request(requestedBy string) ConversionRequest {
	return ConversionRequest{
		ProductID:     line.ProductID,
		CommercialQty: line.Quantity,
		CommercialUOM: line.UOM,
		Context:       line.Context,
		PackagingID:   line.PackagingID,
		RequestedBy:   requestedBy,
	}
}

// =============================================================================
// QUERYING RESULTS
// =============================================================================

// QuantityIn returns a successful result's quantity in unit: the commercial
// unit itself, LTR, KG or MT. Anything else, and any non-SUCCESS result,
// is INCOMPATIBLE_UNITS.
func (r ConversionResult) QuantityIn(unit Unit) (decimal.Decimal, error) {
	if r.Status != StatusSuccess {
		return decimal.Zero, newError(CodeIncompatibleUnits, "status",
			"result has status %s; quantities are not usable", r.Status)
	}

	var v *decimal.Decimal
	switch {
	case unit == r.CommercialUOM:
		q := r.CommercialQty
		v = &q
	case unit == UnitLiter:
		v = r.PhysicalQtyLiters
	case unit == UnitKg:
		v = r.AccountingQtyKg
	case unit == UnitMT:
		v = r.AccountingQtyMT
	}
	if v == nil {
		return decimal.Zero, newError(CodeIncompatibleUnits, "unit",
			"result in %s cannot be expressed in %s", r.CommercialUOM, unit)
	}
	return *v, nil
}
