/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Master-data records are
  mapped to DTOs so the repository types stay free of wire tags; conversion
  results are returned as conversion.ConversionResult, whose JSON shape is the
  published contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Master data:
    ProductDTO, SaveProductRequest
    PackagingDTO, SavePackagingRequest

  Conversions:
    ConvertRequest, BatchConvertRequest, BatchConvertResponse
    LineRequest, LinesRequest

  Reference:
    UnitDTO, UnitsResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Shape validation uses go-playground/validator struct tags and runs in
  decodeAndValidate before a handler sees the body. Business validation
  (positive quantity, known unit, approved override) is the engine's job and
  surfaces as a 422 ERROR result, never as a 400.

SEE ALSO:
  - handlers.go: Uses these types
  - conversion/types.go: ConversionRequest, ConversionResult
*/
package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/uom-engine/conversion"
)

// MaxBatchSize bounds POST /api/conversions/batch and /lines.
const MaxBatchSize = 500

var validate = validator.New()

// =============================================================================
// MASTER DATA
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	DensityKgPerL      *decimal.Decimal `json:"density_kg_per_l,omitempty"`
	DensityVersion     int              `json:"density_version"`
	DensityEffectiveAt *time.Time       `json:"density_effective_at,omitempty"`
	DensityValidatedBy string           `json:"density_validated_by,omitempty"`
	DensityValidatedAt *time.Time       `json:"density_validated_at,omitempty"`
}

// SaveProductRequest creates or replaces a product. An empty ID gets a UUID.
type SaveProductRequest struct {
	ID                 string           `json:"id" validate:"omitempty,max=64"`
	Name               string           `json:"name" validate:"required,max=200"`
	DensityKgPerL      *decimal.Decimal `json:"density_kg_per_l"`
	DensityVersion     int              `json:"density_version" validate:"gte=0"`
	DensityEffectiveAt *time.Time       `json:"density_effective_at"`
	DensityValidatedBy string           `json:"density_validated_by" validate:"max=128"`
	DensityValidatedAt *time.Time       `json:"density_validated_at"`
}

// PackagingDTO represents a packaging type in API responses.
type PackagingDTO struct {
	ID                 string           `json:"id"`
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	CapacityLiters     decimal.Decimal  `json:"capacity_liters"`
	TareWeightKg       *decimal.Decimal `json:"tare_weight_kg,omitempty"`
	NetWeightKgDefault *decimal.Decimal `json:"net_weight_kg_default,omitempty"`
	IsActive           bool             `json:"is_active"`
	Version            int              `json:"version"`
}

// SavePackagingRequest creates or updates a packaging type. IsActive defaults
// to true when omitted.
type SavePackagingRequest struct {
	ID                 string           `json:"id" validate:"omitempty,max=64"`
	Code               string           `json:"code" validate:"required,max=32"`
	Name               string           `json:"name" validate:"required,max=200"`
	CapacityLiters     decimal.Decimal  `json:"capacity_liters"`
	TareWeightKg       *decimal.Decimal `json:"tare_weight_kg"`
	NetWeightKgDefault *decimal.Decimal `json:"net_weight_kg_default"`
	IsActive           *bool            `json:"is_active"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ConvertRequest mirrors conversion.ConversionRequest with shape validation.
type ConvertRequest struct {
	ProductID          string                      `json:"product_id" validate:"required,max=64"`
	CommercialQty      decimal.Decimal             `json:"commercial_qty"`
	CommercialUOM      string                      `json:"commercial_uom" validate:"max=32"`
	TransactionContext string                      `json:"transaction_context" validate:"required,max=32"`
	PackagingTypeID    string                      `json:"packaging_type_id" validate:"max=64"`
	DensityOverride    *conversion.DensityOverride `json:"density_override"`
	PrecisionOverride  *PrecisionOverrideRequest   `json:"precision_override"`
	ExistingDensity    *conversion.DensityInfo     `json:"existing_density"`
	RequestedBy        string                      `json:"requested_by" validate:"max=128"`
	RequestedAt        *time.Time                  `json:"requested_at"`
}

// PrecisionOverrideRequest is a per-request rounding rule. The unit may be
// any alias; the engine normalizes it.
type PrecisionOverrideRequest struct {
	Unit           string `json:"unit" validate:"required,max=32"`
	DecimalPlaces  int32  `json:"decimal_places" validate:"gte=0,lte=10"`
	RoundingMethod string `json:"rounding_method" validate:"omitempty,oneof=ROUND_HALF_UP ROUND_HALF_EVEN ROUND_DOWN ROUND_UP"`
}

// BatchConvertRequest carries up to MaxBatchSize requests.
type BatchConvertRequest struct {
	Requests []ConvertRequest `json:"requests" validate:"required,min=1,max=500,dive"`
}

// BatchConvertResponse returns results in request order.
type BatchConvertResponse struct {
	BatchID   string                        `json:"batch_id"`
	Results   []conversion.ConversionResult `json:"results"`
	Succeeded int                           `json:"succeeded"`
	Failed    int                           `json:"failed"`
}

// LineRequest is a transaction line as captured by an order or dispatch screen.
type LineRequest struct {
	ProductID        string           `json:"product_id" validate:"required,max=64"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UOM              string           `json:"uom" validate:"max=32"`
	LegacyQuantityKg *decimal.Decimal `json:"legacy_quantity_kg"`
	PackagingTypeID  string           `json:"packaging_type_id" validate:"max=64"`
	Context          string           `json:"context" validate:"required,max=32"`
}

// LinesRequest converts a set of transaction lines.
type LinesRequest struct {
	RequestedBy string        `json:"requested_by" validate:"max=128"`
	Lines       []LineRequest `json:"lines" validate:"required,min=1,max=500,dive"`
}

// LineResultDTO is one line's outcome. Result is absent when the line guard
// rejected the line before conversion.
type LineResultDTO struct {
	Index  int                          `json:"index"`
	Error  *conversion.ConversionError  `json:"error,omitempty"`
	Result *conversion.ConversionResult `json:"result,omitempty"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// UnitDTO describes a canonical unit.
type UnitDTO struct {
	Code           conversion.Unit           `json:"code"`
	Class          conversion.UnitClass      `json:"class"`
	DecimalPlaces  int32                     `json:"decimal_places"`
	RoundingMethod conversion.RoundingMethod `json:"rounding_method"`
	Aliases        []string                  `json:"aliases"`
}

// UnitsResponse is returned by GET /api/units.
type UnitsResponse struct {
	Version string    `json:"calculation_version"`
	Units   []UnitDTO `json:"units"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toProductDTO(p conversion.Product) ProductDTO {
	dto := ProductDTO{
		ID:                 p.ID,
		Name:               p.Name,
		DensityKgPerL:      p.DensityKgPerL,
		DensityVersion:     p.DensityVersion,
		DensityValidatedBy: p.DensityValidatedBy,
		DensityValidatedAt: p.DensityValidatedAt,
	}
	if !p.DensityEffectiveAt.IsZero() {
		t := p.DensityEffectiveAt
		dto.DensityEffectiveAt = &t
	}
	return dto
}

func toPackagingDTO(p conversion.Packaging) PackagingDTO {
	return PackagingDTO{
		ID:                 p.ID,
		Code:               p.Code,
		Name:               p.Name,
		CapacityLiters:     p.CapacityLiters,
		TareWeightKg:       p.TareWeightKg,
		NetWeightKgDefault: p.NetWeightKgDefault,
		IsActive:           p.IsActive,
		Version:            p.Version,
	}
}

func (r SaveProductRequest) toProduct(id string) conversion.Product {
	p := conversion.Product{
		ID:                 id,
		Name:               r.Name,
		DensityKgPerL:      r.DensityKgPerL,
		DensityVersion:     r.DensityVersion,
		DensityValidatedBy: r.DensityValidatedBy,
		DensityValidatedAt: r.DensityValidatedAt,
	}
	if r.DensityEffectiveAt != nil {
		p.DensityEffectiveAt = *r.DensityEffectiveAt
	}
	return p
}

func (r SavePackagingRequest) toPackaging(id string) conversion.Packaging {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return conversion.Packaging{
		ID:                 id,
		Code:               r.Code,
		Name:               r.Name,
		CapacityLiters:     r.CapacityLiters,
		TareWeightKg:       r.TareWeightKg,
		NetWeightKgDefault: r.NetWeightKgDefault,
		IsActive:           active,
	}
}

// toDomain fills requested_at with now when the client left it out.
func (r ConvertRequest) toDomain(now time.Time) conversion.ConversionRequest {
	requestedAt := now
	if r.RequestedAt != nil {
		requestedAt = *r.RequestedAt
	}
	var override *conversion.PrecisionRule
	if r.PrecisionOverride != nil {
		override = &conversion.PrecisionRule{
			Unit:          conversion.Unit(r.PrecisionOverride.Unit),
			DecimalPlaces: r.PrecisionOverride.DecimalPlaces,
			Method:        conversion.RoundingMethod(r.PrecisionOverride.RoundingMethod),
		}
	}
	return conversion.ConversionRequest{
		ProductID:         r.ProductID,
		CommercialQty:     r.CommercialQty,
		CommercialUOM:     r.CommercialUOM,
		Context:           conversion.TransactionContext(r.TransactionContext),
		PackagingID:       r.PackagingTypeID,
		DensityOverride:   r.DensityOverride,
		PrecisionOverride: override,
		ExistingDensity:   r.ExistingDensity,
		RequestedBy:       r.RequestedBy,
		RequestedAt:       requestedAt,
	}
}

func (r LineRequest) toLine() conversion.TransactionLine {
	return conversion.TransactionLine{
		ProductID:        r.ProductID,
		Quantity:         r.Quantity,
		UOM:              r.UOM,
		LegacyQuantityKg: r.LegacyQuantityKg,
		PackagingID:      r.PackagingTypeID,
		Context:          conversion.TransactionContext(r.Context),
	}
}
