package conversion

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PRECISION RULES
// =============================================================================

// RoundingMethod names a rounding mode. Only RoundHalfUp is applied; the
// other values may be declared in configuration and are carried through to
// the audit trail unchanged.
type RoundingMethod string

const (
	RoundHalfUp   RoundingMethod = "ROUND_HALF_UP"
	RoundHalfEven RoundingMethod = "ROUND_HALF_EVEN"
	RoundDown     RoundingMethod = "ROUND_DOWN"
	RoundUp       RoundingMethod = "ROUND_UP"
)

// MaxDecimalPlaces bounds every precision rule, configured or per request.
const MaxDecimalPlaces int32 = 10

// PrecisionRule fixes the decimal places for a unit.
type PrecisionRule struct {
	Unit          Unit           `json:"unit" yaml:"unit"`
	DecimalPlaces int32          `json:"decimal_places" yaml:"decimal_places"`
	Method        RoundingMethod `json:"rounding_method" yaml:"rounding_method"`
}

// DefaultPrecisionRules returns a fresh copy of the built-in rules:
// package units are whole numbers, volume and weight carry two decimals.
func DefaultPrecisionRules() map[Unit]PrecisionRule {
	rules := make(map[Unit]PrecisionRule, len(unitClasses))
	for u, class := range unitClasses {
		places := int32(2)
		if class == ClassPackage {
			places = 0
		}
		rules[u] = PrecisionRule{Unit: u, DecimalPlaces: places, Method: RoundHalfUp}
	}
	return rules
}

// =============================================================================
// ROUNDER
// =============================================================================

// Rounder applies per-unit precision rules using exact decimal arithmetic.
type Rounder struct {
	rules map[Unit]PrecisionRule
}

// NewRounder copies rules. Units without a rule fall back to two decimals.
func NewRounder(rules map[Unit]PrecisionRule) *Rounder {
	table := make(map[Unit]PrecisionRule, len(rules))
	for u, r := range rules {
		table[u] = r
	}
	return &Rounder{rules: table}
}

// Rule returns the rule in force for unit, honoring an override for the same unit.
func (r *Rounder) Rule(unit Unit, override *PrecisionRule) PrecisionRule {
	if override != nil && override.Unit == unit {
		return *override
	}
	if rule, ok := r.rules[unit]; ok {
		return rule
	}
	return PrecisionRule{Unit: unit, DecimalPlaces: 2, Method: RoundHalfUp}
}

// Round returns the rounded value, the rule used, and whether rounding
// changed the value.
func (r *Rounder) Round(value decimal.Decimal, unit Unit, override *PrecisionRule) (decimal.Decimal, PrecisionRule, bool) {
	rule := r.Rule(unit, override)
	rounded := roundHalfUp(value, rule.DecimalPlaces)
	return rounded, rule, !rounded.Equal(value)
}

// roundHalfUp rounds ties away from zero, which is half-up for the
// positive quantities the engine works with.
func roundHalfUp(value decimal.Decimal, places int32) decimal.Decimal {
	return value.Round(places)
}
