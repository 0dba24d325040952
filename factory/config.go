/*
Package factory provides document to engine configuration conversion.

PURPOSE:
  Builds an immutable conversion.Config from a JSON or YAML document so that
  alias tables and precision rules can be changed without code changes.
  The resulting Config is injected into conversion.New via WithConfig.

DOCUMENT SCHEMA (JSON shown, YAML uses the same keys):
  {
    "version": "uom-engine/1.1.0",
    "replace_defaults": false,
    "aliases": {
      "BKT": "PAIL",
      "JERRYCAN": "EA"
    },
    "precision": {
      "MT": {"decimal_places": 3, "rounding_method": "ROUND_HALF_UP"}
    }
  }

MERGE RULES:
  - Without replace_defaults, aliases and precision rules are layered on top
    of the built-in tables; a key in the document wins.
  - With replace_defaults, only the document's aliases are used. Precision
    rules for units the document omits still come from the defaults, so
    every canonical unit always has a rule.

VALIDATION:
  - Alias targets and precision keys must be canonical units
  - decimal_places must be between 0 and 10
  - rounding_method defaults to ROUND_HALF_UP and must be a declared method

USAGE:
  f := factory.NewConfigFactory()
  cfg, err := f.LoadFile("engine.yaml")
  engine := conversion.New(store, conversion.WithConfig(cfg))

SEE ALSO:
  - conversion/config.go: Config type and options
  - conversion/units.go, conversion/precision.go: Built-in tables
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/uom-engine/conversion"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// ConfigDocument is the serialized form of an engine configuration.
type ConfigDocument struct {
	Version         string                   `json:"version,omitempty" yaml:"version,omitempty"`
	ReplaceDefaults bool                     `json:"replace_defaults,omitempty" yaml:"replace_defaults,omitempty"`
	Aliases         map[string]string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Precision       map[string]PrecisionJSON `json:"precision,omitempty" yaml:"precision,omitempty"`
}

// PrecisionJSON is one unit's rounding rule.
type PrecisionJSON struct {
	DecimalPlaces  int    `json:"decimal_places" yaml:"decimal_places"`
	RoundingMethod string `json:"rounding_method,omitempty" yaml:"rounding_method,omitempty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts documents to conversion.Config values.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseJSON parses a JSON document.
func (f *ConfigFactory) ParseJSON(data []byte) (conversion.Config, error) {
	var doc ConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return conversion.Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseYAML parses a YAML document.
func (f *ConfigFactory) ParseYAML(data []byte) (conversion.Config, error) {
	var doc ConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return conversion.Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return f.FromDocument(doc)
}

// LoadFile reads path and picks the parser by extension (.yaml/.yml or JSON).
func (f *ConfigFactory) LoadFile(path string) (conversion.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return conversion.Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	default:
		return f.ParseJSON(data)
	}
}

// FromDocument validates doc and merges it with the built-in tables.
func (f *ConfigFactory) FromDocument(doc ConfigDocument) (conversion.Config, error) {
	cfg := conversion.DefaultConfig()
	if doc.Version != "" {
		cfg.Version = doc.Version
	}
	if doc.ReplaceDefaults {
		cfg.Aliases = make(map[string]conversion.Unit, len(doc.Aliases))
	}

	for alias, target := range doc.Aliases {
		unit, err := parseUnit(target)
		if err != nil {
			return conversion.Config{}, fmt.Errorf("alias %q: %w", alias, err)
		}
		key := strings.ToUpper(strings.TrimSpace(alias))
		if key == "" {
			return conversion.Config{}, fmt.Errorf("alias for %s is empty", unit)
		}
		cfg.Aliases[key] = unit
	}

	for name, pj := range doc.Precision {
		unit, err := parseUnit(name)
		if err != nil {
			return conversion.Config{}, fmt.Errorf("precision rule %q: %w", name, err)
		}
		rule, err := parsePrecision(unit, pj)
		if err != nil {
			return conversion.Config{}, err
		}
		cfg.Precision[unit] = rule
	}

	return cfg, nil
}

func parseUnit(s string) (conversion.Unit, error) {
	u := conversion.Unit(strings.ToUpper(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("%q is not a canonical unit", s)
	}
	return u, nil
}

func parsePrecision(unit conversion.Unit, pj PrecisionJSON) (conversion.PrecisionRule, error) {
	if pj.DecimalPlaces < 0 || pj.DecimalPlaces > int(conversion.MaxDecimalPlaces) {
		return conversion.PrecisionRule{}, fmt.Errorf("precision rule %s: decimal_places %d out of range 0-%d",
			unit, pj.DecimalPlaces, conversion.MaxDecimalPlaces)
	}
	method := conversion.RoundingMethod(strings.ToUpper(strings.TrimSpace(pj.RoundingMethod)))
	switch method {
	case "":
		method = conversion.RoundHalfUp
	case conversion.RoundHalfUp, conversion.RoundHalfEven, conversion.RoundDown, conversion.RoundUp:
	default:
		return conversion.PrecisionRule{}, fmt.Errorf("precision rule %s: unknown rounding_method %q", unit, pj.RoundingMethod)
	}
	return conversion.PrecisionRule{Unit: unit, DecimalPlaces: int32(pj.DecimalPlaces), Method: method}, nil
}

// =============================================================================
// PACKAGE-LEVEL HELPERS
// =============================================================================

var defaultFactory = NewConfigFactory()

// ParseConfig builds a Config from a JSON document.
func ParseConfig(data []byte) (conversion.Config, error) { return defaultFactory.ParseJSON(data) }

// ParseConfigYAML builds a Config from a YAML document.
func ParseConfigYAML(data []byte) (conversion.Config, error) { return defaultFactory.ParseYAML(data) }

// LoadConfigFile builds a Config from a file on disk.
func LoadConfigFile(path string) (conversion.Config, error) { return defaultFactory.LoadFile(path) }
