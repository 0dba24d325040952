/*
handlers_test.go - HTTP tests for the conversion API

Tests for:
- Single, batch and line conversions (status codes, result bodies)
- Master data administration and its effect on later conversions
- Reference data, scenarios and metrics exposition
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/uom-engine/conversion"
	"github.com/warp/uom-engine/store/sqlite"
)

var testNow = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, SeedScenario(context.Background(), store, ScenarioLubricants))

	engine := conversion.New(store, conversion.WithClock(func() time.Time { return testNow }))
	h := NewHandler(store, engine, nil)
	h.now = func() time.Time { return testNow }
	h.SetCurrentScenario(ScenarioLubricants)
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func TestConvert_PailsToAllLayers(t *testing.T) {
	// GIVEN: the lubricants scenario (20 L pail, engine oil at 0.9 kg/L)
	// WHEN: 15960 pails are converted using an alias
	// THEN: 200 with liters, kg and mt

	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions", `{
		"product_id": "eng-oil-15w40",
		"commercial_qty": 15960,
		"commercial_uom": "pails",
		"transaction_context": "SALES_ORDER",
		"packaging_type_id": "pail-20l",
		"requested_by": "sales-1"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[conversion.ConversionResult](t, rec)
	assert.Equal(t, conversion.StatusSuccess, res.Status)
	assert.Equal(t, conversion.UnitPail, res.CommercialUOM)
	assert.Equal(t, "319200", res.PhysicalQtyLiters.String())
	assert.Equal(t, "287280", res.AccountingQtyKg.String())
	assert.Equal(t, "287.28", res.AccountingQtyMT.String())
	require.NotNil(t, res.PackagingSnapshot)
	assert.Equal(t, 1, res.PackagingSnapshot.SnapshotVersion)
	assert.True(t, res.Breakdown.IsReversible)
	assert.Equal(t, conversion.DefaultVersion, res.CalculationVersion)
}

func TestConvert_ErrorResultIs422(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions", `{
		"product_id": "eng-oil-15w40",
		"commercial_qty": "1200",
		"commercial_uom": "KG",
		"transaction_context": "DISPATCH"
	}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	res := decode[conversion.ConversionResult](t, rec)
	assert.Equal(t, conversion.StatusError, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, conversion.CodeDispatchVolumeConversionBlocked, res.Errors[0].Code)
	assert.Nil(t, res.AccountingQtyKg)
}

func TestConvert_MissingDensityForGrease(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions", `{
		"product_id": "grease-ep2",
		"commercial_qty": "2",
		"commercial_uom": "DRUM",
		"transaction_context": "SALES_ORDER",
		"packaging_type_id": "drum-208l"
	}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode[conversion.ConversionResult](t, rec)
	assert.Equal(t, conversion.CodeMissingDensity, res.Errors[0].Code)
	assert.NotNil(t, res.PackagingSnapshot, "partial context is kept")
}

func TestConvert_BadRequests(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions", `{"product_id": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/conversions", `{"commercial_qty": "1", "commercial_uom": "LTR", "transaction_context": "GRN"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "ProductID")
}

func TestConvert_PrecisionOverride(t *testing.T) {
	// GIVEN: 15960 pails with a kg precision override
	// WHEN: decimal_places is negative or huge
	// THEN: 400 before the engine runs; a valid alias override still applies

	_, router := setupTestServer(t)

	body := func(override string) string {
		return `{"product_id": "eng-oil-15w40", "commercial_qty": "15960", "commercial_uom": "PAIL",
			"transaction_context": "SALES_ORDER", "packaging_type_id": "pail-20l",
			"precision_override": ` + override + `}`
	}

	for _, override := range []string{
		`{"unit": "KG", "decimal_places": -3}`,
		`{"unit": "KG", "decimal_places": 20000000}`,
		`{"decimal_places": 2}`,
	} {
		rec := do(t, router, http.MethodPost, "/api/conversions", body(override))
		assert.Equal(t, http.StatusBadRequest, rec.Code, override)
	}

	rec := do(t, router, http.MethodPost, "/api/conversions", `{"product_id": "eng-oil-15w40", "commercial_qty": "1234",
		"commercial_uom": "KG", "transaction_context": "SALES_ORDER",
		"precision_override": {"unit": "tonnes", "decimal_places": 3}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1.234", decode[conversion.ConversionResult](t, rec).AccountingQtyMT.String())

	rec = do(t, router, http.MethodPost, "/api/conversions", body(`{"unit": "BOTTLE", "decimal_places": 2}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode[conversion.ConversionResult](t, rec)
	assert.Equal(t, conversion.CodeUnknownUnit, res.Errors[0].Code)
	assert.Equal(t, "precision_override.unit", res.Errors[0].Field)
}

func TestConvertBatch_KeepsOrderAndCounts(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions/batch", `{"requests": [
		{"product_id": "eng-oil-15w40", "commercial_qty": "8000", "commercial_uom": "CARTON", "transaction_context": "SALES_ORDER", "packaging_type_id": "carton-12l"},
		{"product_id": "eng-oil-15w40", "commercial_qty": "3", "commercial_uom": "BOTTLE", "transaction_context": "SALES_ORDER"},
		{"product_id": "hyd-oil-iso68", "commercial_qty": "2", "commercial_uom": "IBC", "transaction_context": "GRN", "packaging_type_id": "ibc-1000l"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[BatchConvertResponse](t, rec)
	_, err := uuid.Parse(resp.BatchID)
	assert.NoError(t, err)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "86400", resp.Results[0].AccountingQtyKg.String())
	assert.Equal(t, conversion.CodeUnknownUnit, resp.Results[1].Errors[0].Code)
	assert.Equal(t, "1700", resp.Results[2].AccountingQtyKg.String())
	assert.Equal(t, "1.7", resp.Results[2].AccountingQtyMT.String())
}

func TestConvertBatch_RejectsEmptyAndOversized(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions/batch", `{"requests": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	item := `{"product_id": "eng-oil-15w40", "commercial_qty": "1", "commercial_uom": "LTR", "transaction_context": "GRN"}`
	items := make([]string, MaxBatchSize+1)
	for i := range items {
		items[i] = item
	}
	rec = do(t, router, http.MethodPost, "/api/conversions/batch", `{"requests": [`+strings.Join(items, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertLines_GuardsUnitlessLines(t *testing.T) {
	// GIVEN: one proper line, one legacy kg-only line, one line with no unit
	// WHEN: the lines are submitted
	// THEN: only the first is converted; the others carry guard errors

	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/conversions/lines", `{
		"requested_by": "dispatch-2",
		"lines": [
			{"product_id": "eng-oil-15w40", "quantity": "10", "uom": "DRUM", "packaging_type_id": "drum-208l", "context": "DISPATCH"},
			{"product_id": "eng-oil-15w40", "quantity": "0", "legacy_quantity_kg": "187.2", "context": "DISPATCH"},
			{"product_id": "eng-oil-15w40", "quantity": "5", "context": "DISPATCH"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[[]LineResultDTO](t, rec)
	require.Len(t, out, 3)

	require.NotNil(t, out[0].Result)
	assert.Equal(t, "2080", out[0].Result.PhysicalQtyLiters.String())
	assert.Equal(t, "1872", out[0].Result.AccountingQtyKg.String())
	assert.Nil(t, out[0].Error)

	require.NotNil(t, out[1].Error)
	assert.Equal(t, conversion.CodeLegacyFallbackBlocked, out[1].Error.Code)
	assert.Nil(t, out[1].Result)

	require.NotNil(t, out[2].Error)
	assert.Equal(t, conversion.CodeUnitlessTransactionEntity, out[2].Error.Code)
	assert.Equal(t, 2, out[2].Index)
}

// =============================================================================
// MASTER DATA
// =============================================================================

func TestPackaging_CreateDeactivateAndConvert(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/packaging", `{"code": "PAIL", "name": "Pail 5 L", "capacity_liters": "5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PackagingDTO](t, rec)
	_, err := uuid.Parse(created.ID)
	assert.NoError(t, err, "generated id")
	assert.True(t, created.IsActive)
	assert.Equal(t, 1, created.Version)

	convert := `{"product_id": "eng-oil-15w40", "commercial_qty": "4", "commercial_uom": "PAIL",
		"transaction_context": "SALES_ORDER", "packaging_type_id": "` + created.ID + `"}`
	rec = do(t, router, http.MethodPost, "/api/conversions", convert)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "18", decode[conversion.ConversionResult](t, rec).AccountingQtyKg.String())

	rec = do(t, router, http.MethodPost, "/api/packaging/"+created.ID+"/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	deactivated := decode[PackagingDTO](t, rec)
	assert.False(t, deactivated.IsActive)
	assert.Equal(t, 2, deactivated.Version)

	rec = do(t, router, http.MethodPost, "/api/conversions", convert)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, conversion.CodePackagingNotFound, decode[conversion.ConversionResult](t, rec).Errors[0].Code)

	rec = do(t, router, http.MethodPost, "/api/packaging/nope/deactivate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPackaging_ListAndGet(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/packaging", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PackagingDTO](t, rec), 5)

	rec = do(t, router, http.MethodGet, "/api/packaging/pail-18l-retired", "")
	require.Equal(t, http.StatusOK, rec.Code)
	retired := decode[PackagingDTO](t, rec)
	assert.False(t, retired.IsActive)
	assert.Equal(t, 2, retired.Version)

	rec = do(t, router, http.MethodGet, "/api/packaging/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/packaging", `{"code": "DRUM"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_SaveAndGet(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/products", `{
		"id": "gear-oil-80w90", "name": "Gear Oil 80W-90",
		"density_kg_per_l": "0.89", "density_version": 1, "density_validated_by": "qa-lab"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/products/gear-oil-80w90", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[ProductDTO](t, rec)
	assert.Equal(t, "0.89", p.DensityKgPerL.String())
	assert.Nil(t, p.DensityEffectiveAt)

	rec = do(t, router, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ProductDTO](t, rec), 4)

	rec = do(t, router, http.MethodGet, "/api/products/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/products", `{"id": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REFERENCE, SCENARIOS, METRICS
// =============================================================================

func TestListUnits(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/units", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[UnitsResponse](t, rec)
	require.Len(t, resp.Units, len(conversion.Units()))

	byCode := make(map[conversion.Unit]UnitDTO)
	for _, u := range resp.Units {
		byCode[u.Code] = u
	}
	assert.Contains(t, byCode[conversion.UnitPail].Aliases, "PAILS")
	assert.NotContains(t, byCode[conversion.UnitPail].Aliases, "PAIL")
	assert.Equal(t, int32(0), byCode[conversion.UnitDrum].DecimalPlaces)
	assert.Equal(t, int32(2), byCode[conversion.UnitMT].DecimalPlaces)
	assert.Equal(t, conversion.ClassWeight, byCode[conversion.UnitKg].Class)
}

func TestScenarios_LoadAndReset(t *testing.T) {
	h, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/products", "")
	assert.Empty(t, decode[[]ProductDTO](t, rec))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "unknown"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "lubricants"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ScenarioLubricants, h.currentScenario)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, ScenarioLubricants, decode[ScenarioDTO](t, rec).ID)
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupTestServer(t)

	do(t, router, http.MethodPost, "/api/conversions", `{"product_id": "eng-oil-15w40", "commercial_qty": "-1",
		"commercial_uom": "LTR", "transaction_context": "GRN"}`)

	rec := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "uom_conversions_total")
	assert.Contains(t, body, `uom_conversion_errors_total{error_code="NEGATIVE_QUANTITY"}`)
}
