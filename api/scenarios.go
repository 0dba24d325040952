/*
scenarios.go - Demo master data for testing and demonstrations

PURPOSE:

	Provides pre-built master data so the conversion endpoints can be tried
	without hand-entering products and packaging types.

AVAILABLE SCENARIOS:

	lubricants: Two oils with densities, one grease without a density,
	            CARTON/PAIL/DRUM/IBC packaging and one retired pail

HOW SCENARIOS WORK:
 1. Reset database (clear all master data)
 2. Save products
 3. Save packaging types (the retired one is deactivated after saving)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "lubricants"}

USAGE AT STARTUP:

	./server -seed=lubricants

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Master data handlers
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/uom-engine/conversion"
	"github.com/warp/uom-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioLubricants is the default demo data set.
const ScenarioLubricants = "lubricants"

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioLubricants,
		Name:        "Lubricants",
		Description: "Engine and hydraulic oil in cartons, pails, drums and IBCs; grease without density",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, store *sqlite.Store) error{
	ScenarioLubricants: loadLubricantsScenario,
}

// SeedScenario resets the store and loads the named scenario.
func SeedScenario(ctx context.Context, store *sqlite.Store, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return load(ctx, store)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := SeedScenario(r.Context(), h.Store, req.ScenarioID); err != nil {
		h.internalError(w, r, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
	})
}

// SetCurrentScenario records a scenario seeded outside the HTTP API.
func (h *Handler) SetCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// ResetDatabase clears all master data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.internalError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadLubricantsScenario(ctx context.Context, store *sqlite.Store) error {
	effective := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	validated := time.Date(2024, time.December, 18, 14, 0, 0, 0, time.UTC)

	products := []conversion.Product{
		{
			ID:                 "eng-oil-15w40",
			Name:               "Engine Oil 15W-40",
			DensityKgPerL:      decimalPtr("0.9"),
			DensityVersion:     1,
			DensityEffectiveAt: effective,
			DensityValidatedBy: "qa-lab",
			DensityValidatedAt: &validated,
		},
		{
			ID:                 "hyd-oil-iso68",
			Name:               "Hydraulic Oil ISO VG 68",
			DensityKgPerL:      decimalPtr("0.85"),
			DensityVersion:     1,
			DensityEffectiveAt: effective,
			DensityValidatedBy: "qa-lab",
			DensityValidatedAt: &validated,
		},
		{ID: "grease-ep2", Name: "EP2 Lithium Grease"},
	}
	for _, p := range products {
		if err := store.SaveProduct(ctx, p); err != nil {
			return err
		}
	}

	packaging := []conversion.Packaging{
		{ID: "carton-12l", Code: "CARTON", Name: "Carton 12 x 1 L", CapacityLiters: decimal.NewFromInt(12), TareWeightKg: decimalPtr("0.8"), IsActive: true},
		{ID: "pail-20l", Code: "PAIL", Name: "Pail 20 L", CapacityLiters: decimal.NewFromInt(20), TareWeightKg: decimalPtr("1.1"), NetWeightKgDefault: decimalPtr("18"), IsActive: true},
		{ID: "drum-208l", Code: "DRUM", Name: "Steel Drum 208 L", CapacityLiters: decimal.NewFromInt(208), TareWeightKg: decimalPtr("17.5"), NetWeightKgDefault: decimalPtr("187.2"), IsActive: true},
		{ID: "ibc-1000l", Code: "IBC", Name: "IBC Tote 1000 L", CapacityLiters: decimal.NewFromInt(1000), TareWeightKg: decimalPtr("62"), IsActive: true},
		{ID: "pail-18l-retired", Code: "PAIL", Name: "Pail 18 L (retired)", CapacityLiters: decimal.NewFromInt(18), TareWeightKg: decimalPtr("1"), IsActive: true},
	}
	for _, p := range packaging {
		if err := store.SavePackaging(ctx, p); err != nil {
			return err
		}
	}

	// The retired pail ends at version 2, inactive.
	if _, err := store.DeactivatePackaging(ctx, "pail-18l-retired"); err != nil {
		return err
	}
	return nil
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
