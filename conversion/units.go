package conversion

import (
	"sort"
	"strings"
)

// =============================================================================
// COMMERCIAL UNITS - Closed set, never inferred
// =============================================================================

// Unit is a canonical commercial unit of measure.
type Unit string

const (
	UnitCarton Unit = "CARTON"
	UnitPail   Unit = "PAIL"
	UnitDrum   Unit = "DRUM"
	UnitIBC    Unit = "IBC"
	UnitEach   Unit = "EA"
	UnitLiter  Unit = "LTR"
	UnitKg     Unit = "KG"
	UnitMT     Unit = "MT"
)

// UnitClass partitions the canonical units.
type UnitClass string

const (
	ClassPackage UnitClass = "package"
	ClassVolume  UnitClass = "volume"
	ClassWeight  UnitClass = "weight"
)

var unitClasses = map[Unit]UnitClass{
	UnitCarton: ClassPackage,
	UnitPail:   ClassPackage,
	UnitDrum:   ClassPackage,
	UnitIBC:    ClassPackage,
	UnitEach:   ClassPackage,
	UnitLiter:  ClassVolume,
	UnitKg:     ClassWeight,
	UnitMT:     ClassWeight,
}

// Units returns the canonical units in declaration order.
func Units() []Unit {
	return []Unit{UnitCarton, UnitPail, UnitDrum, UnitIBC, UnitEach, UnitLiter, UnitKg, UnitMT}
}

func (u Unit) Valid() bool { _, ok := unitClasses[u]; return ok }

// Class returns the unit's class, or "" for a non-canonical value.
func (u Unit) Class() UnitClass { return unitClasses[u] }

func (u Unit) IsPackage() bool { return u.Class() == ClassPackage }
func (u Unit) IsVolume() bool  { return u.Class() == ClassVolume }
func (u Unit) IsWeight() bool  { return u.Class() == ClassWeight }

// =============================================================================
// ALIASES
// =============================================================================

// DefaultAliases returns a fresh copy of the built-in alias table.
// Keys are upper-case, trimmed spellings.
func DefaultAliases() map[string]Unit {
	return map[string]Unit{
		"CARTONS":   UnitCarton,
		"CRTN":      UnitCarton,
		"CTN":       UnitCarton,
		"CTNS":      UnitCarton,
		"PAILS":     UnitPail,
		"PL":        UnitPail,
		"DRUMS":     UnitDrum,
		"DRM":       UnitDrum,
		"IBCS":      UnitIBC,
		"TOTE":      UnitIBC,
		"EACH":      UnitEach,
		"PCS":       UnitEach,
		"PC":        UnitEach,
		"UNIT":      UnitEach,
		"UNITS":     UnitEach,
		"L":         UnitLiter,
		"LT":        UnitLiter,
		"LTRS":      UnitLiter,
		"LITER":     UnitLiter,
		"LITERS":    UnitLiter,
		"LITRE":     UnitLiter,
		"LITRES":    UnitLiter,
		"KGS":       UnitKg,
		"KILO":      UnitKg,
		"KILOS":     UnitKg,
		"KILOGRAM":  UnitKg,
		"KILOGRAMS": UnitKg,
		"TON":       UnitMT,
		"TONS":      UnitMT,
		"TONNE":     UnitMT,
		"TONNES":    UnitMT,
		"MTS":       UnitMT,
	}
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer maps free-form unit strings onto canonical units.
// Lookup is exact after trimming and upper-casing; there is no fuzzy matching.
type Normalizer struct {
	aliases map[string]Unit
}

// NewNormalizer copies aliases and adds every canonical unit as its own alias.
func NewNormalizer(aliases map[string]Unit) *Normalizer {
	table := make(map[string]Unit, len(aliases)+len(unitClasses))
	for k, v := range aliases {
		table[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	for u := range unitClasses {
		table[string(u)] = u
	}
	return &Normalizer{aliases: table}
}

// Normalize returns the canonical unit for raw or an UNKNOWN_UNIT error.
func (n *Normalizer) Normalize(raw string) (Unit, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if u, ok := n.aliases[key]; ok {
		return u, nil
	}
	return "", newError(CodeUnknownUnit, "commercial_uom",
		"unit %q is not recognized; allowed units: %s", raw, allowedUnits())
}

// Aliases returns a copy of the lookup table.
func (n *Normalizer) Aliases() map[string]Unit {
	out := make(map[string]Unit, len(n.aliases))
	for k, v := range n.aliases {
		out[k] = v
	}
	return out
}

func allowedUnits() string {
	names := make([]string, 0, len(unitClasses))
	for _, u := range Units() {
		names = append(names, string(u))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
