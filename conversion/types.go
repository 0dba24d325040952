/*
Package conversion provides the unit conversion engine.

PURPOSE:
  Turns a commercially-entered quantity (cartons, pails, drums, IBCs, each,
  liters, kilograms, metric tons) into three simultaneously-valid layers:
  the commercial quantity the user typed, the physical quantity in liters,
  and the accounting quantity in kilograms and metric tons.

KEY CONCEPTS IN THIS FILE (types.go):
  - ConversionRequest: Immutable input, created fresh per call
  - PackagingSnapshot: Point-in-time copy of packaging master data
  - DensityInfo:       The kg-per-liter value used and where it came from
  - ConversionStep:    One audited arithmetic step
  - ConversionResult:  Status, the three layers, breakdown, errors

DESIGN PRINCIPLES:
  1. Explicit units: every quantity carries a canonical unit, never inferred
  2. Precision: decimal.Decimal everywhere, one rounding mode (half-up)
  3. No side effects: the engine reads master data and never writes
  4. Auditability: every value-changing step is recorded with its factor source

USAGE:
  engine := conversion.New(store.NewMemory())
  res := engine.Convert(ctx, conversion.ConversionRequest{
      ProductID:     "prod-1",
      CommercialQty: decimal.NewFromInt(15960),
      CommercialUOM: "pails",
      Context:       conversion.ContextSalesOrder,
      PackagingID:   "pail-20l",
  })
  if res.Status != conversion.StatusSuccess {
      // never use quantities from an ERROR result
  }

SEE ALSO:
  - engine.go: The pipeline
  - units.go: Canonical units and aliases
  - precision.go: Rounding rules
*/
package conversion

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// TransactionContext is the business step requesting the conversion.
type TransactionContext string

const (
	ContextQuotation         TransactionContext = "QUOTATION"
	ContextSalesOrder        TransactionContext = "SALES_ORDER"
	ContextJobOrder          TransactionContext = "JOB_ORDER"
	ContextGRN               TransactionContext = "GRN"
	ContextDispatch          TransactionContext = "DISPATCH"
	ContextStockAdjustment   TransactionContext = "STOCK_ADJUSTMENT"
	ContextAvailabilityCheck TransactionContext = "AVAILABILITY_CHECK"
)

func (c TransactionContext) Valid() bool {
	switch c {
	case ContextQuotation, ContextSalesOrder, ContextJobOrder, ContextGRN,
		ContextDispatch, ContextStockAdjustment, ContextAvailabilityCheck:
		return true
	}
	return false
}

// backDerivesLiters reports whether weight-entered quantities need liters
// for costing in this context.
func (c TransactionContext) backDerivesLiters() bool {
	return c == ContextQuotation || c == ContextAvailabilityCheck
}

type DensitySource string

const (
	DensityFromProductMaster DensitySource = "PRODUCT_MASTER"
	DensityFromOverride      DensitySource = "MANUAL_OVERRIDE"
	DensityFromFrozen        DensitySource = "FROZEN_TRANSACTION"
)

type FactorSource string

const (
	FactorPackagingSnapshot FactorSource = "PACKAGING_SNAPSHOT"
	FactorDensity           FactorSource = "DENSITY"
	FactorFixed1000         FactorSource = "FIXED_1000"
	FactorIdentity          FactorSource = "IDENTITY"
)

// Operation says how Factor is applied to FromQty.
type Operation string

const (
	OpMultiply Operation = "MULTIPLY"
	OpDivide   Operation = "DIVIDE"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL" // reserved; the pipeline is all-or-nothing
	StatusError   Status = "ERROR"
)

// =============================================================================
// REQUEST
// =============================================================================

// DensityOverride is a manually supplied density. ApprovalRequired defaults
// to true when nil.
type DensityOverride struct {
	Value            decimal.Decimal `json:"value"`
	Reason           string          `json:"reason"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	ApprovalRequired *bool           `json:"approval_required,omitempty"`
}

func (o DensityOverride) RequiresApproval() bool {
	return o.ApprovalRequired == nil || *o.ApprovalRequired
}

type ConversionRequest struct {
	ProductID         string             `json:"product_id"`
	CommercialQty     decimal.Decimal    `json:"commercial_qty"`
	CommercialUOM     string             `json:"commercial_uom"`
	Context           TransactionContext `json:"transaction_context"`
	PackagingID       string             `json:"packaging_type_id,omitempty"`
	DensityOverride   *DensityOverride   `json:"density_override,omitempty"`
	PrecisionOverride *PrecisionRule     `json:"precision_override,omitempty"`
	ExistingDensity   *DensityInfo       `json:"existing_density,omitempty"`
	RequestedBy       string             `json:"requested_by"`
	RequestedAt       time.Time          `json:"requested_at"`
}

// =============================================================================
// RESOLVED MASTER DATA
// =============================================================================

// PackagingSnapshot is an immutable copy of packaging dimensions taken at
// conversion time. Later master-data edits do not touch it.
type PackagingSnapshot struct {
	PackagingID        string           `json:"packaging_id"`
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	CapacityLiters     decimal.Decimal  `json:"capacity_liters"`
	TareWeightKg       *decimal.Decimal `json:"tare_weight_kg,omitempty"`
	NetWeightKgDefault *decimal.Decimal `json:"net_weight_kg_default,omitempty"`
	SnapshotAt         time.Time        `json:"snapshot_at"`
	SnapshotVersion    int              `json:"snapshot_version"`
}

// DensityInfo is the density a conversion used. The resolver sets Source for
// product and override densities; a replayed frozen density keeps the Source
// its caller tagged it with, normally DensityFromFrozen.
type DensityInfo struct {
	Value         decimal.Decimal `json:"value"`
	Source        DensitySource   `json:"source"`
	Version       int             `json:"version"`
	EffectiveDate time.Time       `json:"effective_date"`
	ValidatedBy   string          `json:"validated_by,omitempty"`
	ValidatedAt   *time.Time      `json:"validated_at,omitempty"`
}

// =============================================================================
// RESULT
// =============================================================================

type ConversionStep struct {
	StepNumber   int             `json:"step_number"`
	FromUnit     Unit            `json:"from_unit"`
	FromQty      decimal.Decimal `json:"from_qty"`
	ToUnit       Unit            `json:"to_unit"`
	ToQty        decimal.Decimal `json:"to_qty"`
	Factor       decimal.Decimal `json:"conversion_factor"`
	Operation    Operation       `json:"operation"`
	FactorSource FactorSource    `json:"factor_source"`
	Formula      string          `json:"formula"`
	// PrecisionApplied is set only when rounding changed the value.
	PrecisionApplied *PrecisionRule  `json:"precision_applied,omitempty"`
	RawValue         decimal.Decimal `json:"raw_value"`
}

type ConversionBreakdown struct {
	Steps        []ConversionStep `json:"steps"`
	TotalSteps   int              `json:"total_steps"`
	IsReversible bool             `json:"is_reversible"`
}

// ConversionResult always carries a Status. Quantity fields are only
// meaningful when Status is SUCCESS.
type ConversionResult struct {
	CommercialQty      decimal.Decimal     `json:"commercial_qty"`
	CommercialUOM      Unit                `json:"commercial_uom"`
	PhysicalQtyLiters  *decimal.Decimal    `json:"physical_qty_liters,omitempty"`
	AccountingQtyKg    *decimal.Decimal    `json:"accounting_qty_kg,omitempty"`
	AccountingQtyMT    *decimal.Decimal    `json:"accounting_qty_mt,omitempty"`
	PackagingSnapshot  *PackagingSnapshot  `json:"packaging_snapshot,omitempty"`
	DensityUsed        *DensityInfo        `json:"density_used,omitempty"`
	Breakdown          ConversionBreakdown `json:"conversion_breakdown"`
	Status             Status              `json:"status"`
	Errors             []ConversionError   `json:"errors"`
	Warnings           []string            `json:"warnings"`
	CalculatedAt       time.Time           `json:"calculated_at"`
	CalculationVersion string              `json:"calculation_version"`
}

// Succeeded is shorthand for Status == SUCCESS.
func (r ConversionResult) Succeeded() bool { return r.Status == StatusSuccess }
