/*
engine.go - The conversion pipeline

PURPOSE:
  Orchestrates one conversion from a ConversionRequest to a
  ConversionResult. The public entry point never returns an error and never
  panics outward: every failure becomes an ERROR result.

STAGES (linear, no branching back):
  NORMALIZE -> VALIDATE -> SAFETY_CHECK -> PACKAGING_RESOLUTION ->
  DENSITY_RESOLUTION -> PHYSICAL_CONVERSION -> ACCOUNTING_KG ->
  ACCOUNTING_MT -> FINALIZE

  The first failing stage ends the run. There is no retry state.

LAYERS:
  commercial (as entered) -> physical (LTR) -> accounting (KG, MT)

  Package units:  qty x snapshot capacity -> LTR, LTR x density -> KG
  LTR:            identity, LTR x density -> KG
  KG:             identity
  MT:             MT x 1000 -> KG
  All:            KG / 1000 -> MT

  Weight units in QUOTATION and AVAILABILITY_CHECK back-derive liters as
  KG / density so costing has a physical layer.

CONCURRENCY:
  Engine holds only immutable configuration. Convert may be called from any
  number of goroutines. Master data is re-read on every call unless the
  request carries a frozen density.

SEE ALSO:
  - packaging.go, density.go: Resolvers
  - precision.go: Rounding
  - errors.go: Taxonomy
*/
package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stage names a pipeline state, used in logs.
type Stage string

const (
	StageNormalize    Stage = "NORMALIZE"
	StageValidate     Stage = "VALIDATE"
	StageSafetyCheck  Stage = "SAFETY_CHECK"
	StagePackaging    Stage = "PACKAGING_RESOLUTION"
	StageDensity      Stage = "DENSITY_RESOLUTION"
	StagePhysical     Stage = "PHYSICAL_CONVERSION"
	StageAccountingKg Stage = "ACCOUNTING_KG"
	StageAccountingMT Stage = "ACCOUNTING_MT"
	StageFinalize     Stage = "FINALIZE"
)

var thousand = decimal.NewFromInt(1000)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	version    string
	normalizer *Normalizer
	rounder    *Rounder
	packaging  *PackagingResolver
	density    *DensityResolver
	now        func() time.Time
	logger     *slog.Logger
	cfg        Config
}

// New builds an engine over repo. Without options it uses DefaultConfig,
// time.Now and a discarding logger.
func New(repo MasterData, opts ...Option) *Engine {
	e := &Engine{cfg: DefaultConfig(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.cfg.Aliases == nil {
		e.cfg.Aliases = DefaultAliases()
	}
	if e.cfg.Precision == nil {
		e.cfg.Precision = DefaultPrecisionRules()
	}
	e.version = e.cfg.Version
	if e.version == "" {
		e.version = DefaultVersion
	}

	e.normalizer = NewNormalizer(e.cfg.Aliases)
	e.rounder = NewRounder(e.cfg.Precision)
	e.packaging = NewPackagingResolver(repo, e.now)
	e.density = NewDensityResolver(repo)
	return e
}

func (e *Engine) Version() string         { return e.version }
func (e *Engine) Normalizer() *Normalizer { return e.normalizer }
func (e *Engine) Rounder() *Rounder       { return e.rounder }

// Convert runs the pipeline. Callers must branch on Status; quantities on an
// ERROR result are cleared and must not be used.
func (e *Engine) Convert(ctx context.Context, req ConversionRequest) (res ConversionResult) {
	c := &calculation{
		engine: e,
		req:    req,
		res: ConversionResult{
			CommercialQty:      req.CommercialQty,
			CommercialUOM:      Unit(strings.ToUpper(strings.TrimSpace(req.CommercialUOM))),
			Errors:             []ConversionError{},
			Warnings:           []string{},
			CalculatedAt:       e.now().UTC(),
			CalculationVersion: e.version,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			res = c.fail(ctx, newError(CodeUnexpectedError, "", "panic in %s: %v", c.stage, r))
		}
	}()

	if err := c.run(ctx); err != nil {
		return c.fail(ctx, err)
	}
	return c.finish(ctx)
}

// =============================================================================
// CALCULATION - State for a single Convert call
// =============================================================================

type calculation struct {
	engine *Engine
	req    ConversionRequest
	res    ConversionResult

	stage           Stage
	unit            Unit
	override        *PrecisionRule
	steps           []ConversionStep
	roundingChanged bool
}

func (c *calculation) enter(ctx context.Context, s Stage) {
	c.stage = s
	c.engine.logger.DebugContext(ctx, "conversion stage",
		"stage", s,
		"product_id", c.req.ProductID,
		"context", c.req.Context,
	)
}

func (c *calculation) run(ctx context.Context) error {
	c.enter(ctx, StageNormalize)
	unit, err := c.engine.normalizer.Normalize(c.req.CommercialUOM)
	if err != nil {
		return err
	}
	c.unit = unit
	c.res.CommercialUOM = unit

	c.enter(ctx, StageValidate)
	qty := c.req.CommercialQty
	if !qty.IsPositive() {
		return newError(CodeNegativeQuantity, "commercial_qty",
			"commercial quantity must be greater than zero, got %s", qty)
	}
	if !c.req.Context.Valid() {
		return newError(CodeUnexpectedError, "transaction_context",
			"unknown transaction context %q", c.req.Context)
	}
	if c.req.PrecisionOverride != nil {
		override, err := c.engine.checkOverride(*c.req.PrecisionOverride)
		if err != nil {
			return err
		}
		c.override = &override
	}

	c.enter(ctx, StageSafetyCheck)
	if c.req.Context == ContextDispatch && unit.IsWeight() {
		return newError(CodeDispatchVolumeConversionBlocked, "commercial_uom",
			"dispatch must be entered in package or volume units; %s cannot be verified against the loaded goods", unit)
	}

	c.enter(ctx, StagePackaging)
	if unit.IsPackage() {
		if c.req.PackagingID == "" {
			return newError(CodeMissingPackagingDefinition, "packaging_type_id",
				"unit %s requires a packaging_type_id", unit)
		}
		snap, err := c.engine.packaging.Resolve(ctx, c.req.PackagingID)
		if err != nil {
			return err
		}
		c.res.PackagingSnapshot = snap
	}

	c.enter(ctx, StageDensity)
	needed := unit.IsPackage() || unit.IsVolume() ||
		(unit.IsWeight() && c.req.Context.backDerivesLiters())
	// Supplied override and frozen inputs are validated even when the unit
	// itself needs no density.
	if needed || c.req.DensityOverride != nil || c.req.ExistingDensity != nil {
		density, err := c.engine.density.Resolve(ctx, c.req.ProductID,
			c.req.DensityOverride, c.req.ExistingDensity, c.req.RequestedAt)
		if err != nil {
			return err
		}
		if needed {
			if density == nil {
				return newError(CodeMissingDensity, "product_id",
					"product %q has no usable density; required to convert %s", c.req.ProductID, unit)
			}
			c.res.DensityUsed = density
		}
	}

	c.enter(ctx, StagePhysical)
	var liters *decimal.Decimal
	switch {
	case unit.IsPackage():
		v := c.step(unit, qty, UnitLiter, c.res.PackagingSnapshot.CapacityLiters, OpMultiply, FactorPackagingSnapshot)
		liters = &v
	case unit.IsVolume():
		v := c.step(UnitLiter, qty, UnitLiter, decimal.NewFromInt(1), OpMultiply, FactorIdentity)
		liters = &v
	}

	c.enter(ctx, StageAccountingKg)
	var kg decimal.Decimal
	switch {
	case liters != nil:
		kg = c.step(UnitLiter, *liters, UnitKg, c.res.DensityUsed.Value, OpMultiply, FactorDensity)
	case unit == UnitKg:
		kg = c.step(UnitKg, qty, UnitKg, decimal.NewFromInt(1), OpMultiply, FactorIdentity)
	case unit == UnitMT:
		kg = c.step(UnitMT, qty, UnitKg, thousand, OpMultiply, FactorFixed1000)
	default:
		return newError(CodeIncompatibleUnits, "commercial_uom",
			"no accounting path for unit %s", unit)
	}
	if unit.IsWeight() && c.res.DensityUsed != nil {
		v := c.step(UnitKg, kg, UnitLiter, c.res.DensityUsed.Value, OpDivide, FactorDensity)
		liters = &v
		c.res.Warnings = append(c.res.Warnings,
			fmt.Sprintf("physical quantity back-derived from %s using density %s kg/L", unit, c.res.DensityUsed.Value))
	}

	c.enter(ctx, StageAccountingMT)
	mt := c.step(UnitKg, kg, UnitMT, thousand, OpDivide, FactorFixed1000)

	c.enter(ctx, StageFinalize)
	c.res.PhysicalQtyLiters = liters
	c.res.AccountingQtyKg = &kg
	c.res.AccountingQtyMT = &mt
	return nil
}

// checkOverride returns the override with its unit in canonical form.
func (e *Engine) checkOverride(o PrecisionRule) (PrecisionRule, error) {
	unit, err := e.normalizer.Normalize(string(o.Unit))
	if err != nil {
		return PrecisionRule{}, newError(CodeUnknownUnit, "precision_override.unit",
			"precision override unit %q is not recognized; allowed units: %s", o.Unit, allowedUnits())
	}
	if o.DecimalPlaces < 0 || o.DecimalPlaces > MaxDecimalPlaces {
		return PrecisionRule{}, newError(CodeUnexpectedError, "precision_override.decimal_places",
			"precision override decimal_places must be between 0 and %d, got %d", MaxDecimalPlaces, o.DecimalPlaces)
	}
	o.Unit = unit
	if o.Method == "" {
		o.Method = RoundHalfUp
	}
	return o, nil
}

// step computes from (x or /) factor, rounds to the target unit's rule and
// records the step. Identity steps that did not round are not recorded.
func (c *calculation) step(fromUnit Unit, from decimal.Decimal, toUnit Unit, factor decimal.Decimal, op Operation, source FactorSource) decimal.Decimal {
	raw := from.Mul(factor)
	if op == OpDivide {
		raw = from.Div(factor)
	}
	rounded, rule, changed := c.engine.rounder.Round(raw, toUnit, c.override)
	if source == FactorIdentity && !changed {
		return rounded
	}

	n := len(c.steps) + 1
	s := ConversionStep{
		StepNumber:   n,
		FromUnit:     fromUnit,
		FromQty:      from,
		ToUnit:       toUnit,
		ToQty:        rounded,
		Factor:       factor,
		Operation:    op,
		FactorSource: source,
		Formula:      formula(fromUnit, from, toUnit, rounded, factor, op, source),
		RawValue:     raw,
	}
	if changed {
		applied := rule
		s.PrecisionApplied = &applied
		s.Formula += fmt.Sprintf(" (rounded from %s)", raw)
		c.roundingChanged = true
		c.res.Warnings = append(c.res.Warnings,
			fmt.Sprintf("step %d: %s rounded from %s to %s (%d decimal places)", n, toUnit, raw, rounded, rule.DecimalPlaces))
	}
	c.steps = append(c.steps, s)
	return rounded
}

func formula(fromUnit Unit, from decimal.Decimal, toUnit Unit, to, factor decimal.Decimal, op Operation, source FactorSource) string {
	if source == FactorIdentity {
		return fmt.Sprintf("%s %s = %s %s", from, fromUnit, to, toUnit)
	}
	sign := "×"
	if op == OpDivide {
		sign = "÷"
	}
	return fmt.Sprintf("%s %s %s %s %s = %s %s", from, fromUnit, sign, factor, factorLabel(source, fromUnit), to, toUnit)
}

func factorLabel(source FactorSource, fromUnit Unit) string {
	switch source {
	case FactorPackagingSnapshot:
		return "L/" + string(fromUnit)
	case FactorDensity:
		return "kg/L"
	case FactorFixed1000:
		return "kg/MT"
	}
	return ""
}

func (c *calculation) breakdown(reversible bool) ConversionBreakdown {
	steps := c.steps
	if steps == nil {
		steps = []ConversionStep{}
	}
	return ConversionBreakdown{Steps: steps, TotalSteps: len(steps), IsReversible: reversible}
}

func (c *calculation) finish(ctx context.Context) ConversionResult {
	overrideUsed := c.res.DensityUsed != nil && c.res.DensityUsed.Source == DensityFromOverride
	if overrideUsed {
		d := c.res.DensityUsed
		c.res.Warnings = append(c.res.Warnings,
			fmt.Sprintf("manual density override %s kg/L approved by %q applied", d.Value, d.ValidatedBy))
	}
	c.res.Breakdown = c.breakdown(!overrideUsed && !c.roundingChanged)
	c.res.Status = StatusSuccess

	c.engine.logger.DebugContext(ctx, "conversion succeeded",
		"product_id", c.req.ProductID,
		"uom", c.unit,
		"steps", c.res.Breakdown.TotalSteps,
		"reversible", c.res.Breakdown.IsReversible,
	)
	return c.res
}

func (c *calculation) fail(ctx context.Context, err error) ConversionResult {
	ce := asConversionError(err)
	c.res.Status = StatusError
	c.res.Errors = []ConversionError{*ce}
	c.res.PhysicalQtyLiters = nil
	c.res.AccountingQtyKg = nil
	c.res.AccountingQtyMT = nil
	c.res.Breakdown = c.breakdown(false)

	c.engine.logger.WarnContext(ctx, "conversion failed",
		"stage", c.stage,
		"error_code", ce.Code,
		"product_id", c.req.ProductID,
		"uom", c.req.CommercialUOM,
		"context", c.req.Context,
		"error", ce.Message,
	)
	return c.res
}
