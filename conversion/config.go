package conversion

import (
	"log/slog"
	"time"
)

// DefaultVersion is stamped on every result as calculation_version.
const DefaultVersion = "uom-engine/1.0.0"

// Config is the engine's static configuration. The engine copies it on
// construction, so a Config may be reused or mutated afterwards freely.
type Config struct {
	Version   string
	Aliases   map[string]Unit
	Precision map[Unit]PrecisionRule
}

// DefaultConfig returns a fresh copy of the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Version:   DefaultVersion,
		Aliases:   DefaultAliases(),
		Precision: DefaultPrecisionRules(),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the alias table, precision rules and version.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithClock sets the time source used for snapshot and calculation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}
