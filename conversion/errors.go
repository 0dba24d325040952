/*
errors.go - Typed error taxonomy for the conversion engine

PURPOSE:
  Every failure the engine can report has a stable ErrorCode. Resolvers
  return *ConversionError values; the pipeline is the single place that
  turns them into the errors[] list of an ERROR result.

ERROR CATEGORIES:
  1. Input errors      - UNKNOWN_UNIT, NEGATIVE_QUANTITY, UNITLESS_TRANSACTION_ENTITY
  2. Master data       - MISSING_PACKAGING_DEFINITION, PACKAGING_NOT_FOUND, MISSING_DENSITY
  3. Density governance - DENSITY_OVERRIDE_UNAPPROVED, DENSITY_ALREADY_FROZEN
  4. Safety gates      - DISPATCH_VOLUME_CONVERSION_BLOCKED, LEGACY_FALLBACK_BLOCKED
  5. Everything else   - INCOMPATIBLE_UNITS, UNEXPECTED_ERROR

USAGE:
  Callers holding a ConversionError can match on the code or on the
  sentinel it unwraps to:

    if errors.Is(err, conversion.ErrMissingDensity) {
        ...
    }

SEE ALSO:
  - engine.go: Converts errors into result status
  - line.go: Transaction-line guard codes
*/
package conversion

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a failure class. Codes are part of the wire contract.
type ErrorCode string

const (
	CodeUnknownUnit                     ErrorCode = "UNKNOWN_UNIT"
	CodeNegativeQuantity                ErrorCode = "NEGATIVE_QUANTITY"
	CodeMissingPackagingDefinition      ErrorCode = "MISSING_PACKAGING_DEFINITION"
	CodePackagingNotFound               ErrorCode = "PACKAGING_NOT_FOUND"
	CodeMissingDensity                  ErrorCode = "MISSING_DENSITY"
	CodeDensityOverrideUnapproved       ErrorCode = "DENSITY_OVERRIDE_UNAPPROVED"
	CodeDensityAlreadyFrozen            ErrorCode = "DENSITY_ALREADY_FROZEN"
	CodeIncompatibleUnits               ErrorCode = "INCOMPATIBLE_UNITS"
	CodeDispatchVolumeConversionBlocked ErrorCode = "DISPATCH_VOLUME_CONVERSION_BLOCKED"
	CodeUnitlessTransactionEntity       ErrorCode = "UNITLESS_TRANSACTION_ENTITY"
	CodeLegacyFallbackBlocked           ErrorCode = "LEGACY_FALLBACK_BLOCKED"
	CodeUnexpectedError                 ErrorCode = "UNEXPECTED_ERROR"
)

// Severity of a ConversionError. Only hard errors exist today.
type Severity string

const SeverityHardError Severity = "HARD_ERROR"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnknownUnit                     = errors.New("unknown unit")
	ErrNegativeQuantity                = errors.New("quantity must be positive")
	ErrMissingPackagingDefinition      = errors.New("packaging definition required")
	ErrPackagingNotFound               = errors.New("packaging not found")
	ErrMissingDensity                  = errors.New("density not available")
	ErrDensityOverrideUnapproved       = errors.New("density override not approved")
	ErrDensityAlreadyFrozen            = errors.New("density already frozen for transaction")
	ErrIncompatibleUnits               = errors.New("incompatible units")
	ErrDispatchVolumeConversionBlocked = errors.New("weight units blocked for dispatch")
	ErrUnitlessTransactionEntity       = errors.New("transaction entity has no unit")
	ErrLegacyFallbackBlocked           = errors.New("legacy quantity fallback blocked")
	ErrUnexpected                      = errors.New("unexpected conversion error")
)

var sentinels = map[ErrorCode]error{
	CodeUnknownUnit:                     ErrUnknownUnit,
	CodeNegativeQuantity:                ErrNegativeQuantity,
	CodeMissingPackagingDefinition:      ErrMissingPackagingDefinition,
	CodePackagingNotFound:               ErrPackagingNotFound,
	CodeMissingDensity:                  ErrMissingDensity,
	CodeDensityOverrideUnapproved:       ErrDensityOverrideUnapproved,
	CodeDensityAlreadyFrozen:            ErrDensityAlreadyFrozen,
	CodeIncompatibleUnits:               ErrIncompatibleUnits,
	CodeDispatchVolumeConversionBlocked: ErrDispatchVolumeConversionBlocked,
	CodeUnitlessTransactionEntity:       ErrUnitlessTransactionEntity,
	CodeLegacyFallbackBlocked:           ErrLegacyFallbackBlocked,
	CodeUnexpectedError:                 ErrUnexpected,
}

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// ConversionError is a typed failure carried in ConversionResult.Errors.
type ConversionError struct {
	Code     ErrorCode `json:"error_code"`
	Message  string    `json:"message"`
	Field    string    `json:"field,omitempty"`
	Severity Severity  `json:"severity"`
}

func (e *ConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConversionError) Unwrap() error {
	if s, ok := sentinels[e.Code]; ok {
		return s
	}
	return ErrUnexpected
}

func newError(code ErrorCode, field, format string, args ...any) *ConversionError {
	return &ConversionError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
		Severity: SeverityHardError,
	}
}

// asConversionError classifies any error raised inside the pipeline.
// Untyped errors (repository failures, recovered panics) become UNEXPECTED_ERROR.
func asConversionError(err error) *ConversionError {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce
	}
	return newError(CodeUnexpectedError, "", "%v", err)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a ConversionError.
func CodeOf(err error) ErrorCode {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
