/*
handlers.go - HTTP API handlers for the unit conversion engine

PURPOSE:
  Exposes the conversion engine and its master data via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the engine
  and the SQLite store.

ENDPOINTS:
  Products:
    GET    /api/products                  List all products
    POST   /api/products                  Create or replace a product
    GET    /api/products/{id}             Get product

  Packaging:
    GET    /api/packaging                 List all packaging types
    POST   /api/packaging                 Create or update (bumps version)
    GET    /api/packaging/{id}            Get packaging type
    POST   /api/packaging/{id}/deactivate Mark inactive (bumps version)

  Conversions:
    POST   /api/conversions               Convert one request
    POST   /api/conversions/batch         Convert up to 500 requests
    POST   /api/conversions/lines         Guard then convert transaction lines

  Reference:
    GET    /api/units                     Canonical units, precision, aliases

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    POST   /api/scenarios/load            Load a demo scenario
    POST   /api/scenarios/reset           Clear all master data

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Master data (also the engine's repository)
  - Engine: Stateless conversion pipeline
  - logger: Structured logger for internal failures

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed JSON, DTO validation failures
  - 404: Unknown product or packaging id
  - 422: Conversion returned status ERROR (full result in body)
  - 500: Store failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo master data
  - server.go: Router setup and middleware
  - metrics.go: Prometheus collectors
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/uom-engine/conversion"
	"github.com/warp/uom-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds concurrent conversions within one batch call.
const batchConcurrency = 16

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *conversion.Engine

	logger *slog.Logger
	now    func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger discards output.
func NewHandler(store *sqlite.Store, engine *conversion.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		Store:  store,
		Engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.ProductByID(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "Failed to get product", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// SaveProduct creates or replaces a product.
// POST /api/products
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var req SaveProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := h.Store.SaveProduct(r.Context(), req.toProduct(id)); err != nil {
		h.internalError(w, r, "Failed to save product", err)
		return
	}

	saved, err := h.Store.ProductByID(r.Context(), id)
	if err != nil || saved == nil {
		h.internalError(w, r, "Failed to reload product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*saved))
}

// =============================================================================
// PACKAGING HANDLERS
// =============================================================================

// ListPackaging returns all packaging types, active or not.
func (h *Handler) ListPackaging(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListPackaging(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list packaging", err)
		return
	}

	dtos := make([]PackagingDTO, len(items))
	for i, p := range items {
		dtos[i] = toPackagingDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPackaging returns a single packaging type.
func (h *Handler) GetPackaging(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.PackagingByID(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "Failed to get packaging", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Packaging not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPackagingDTO(*p))
}

// SavePackaging creates or updates a packaging type. Every update bumps the
// version that later snapshots carry.
// POST /api/packaging
func (h *Handler) SavePackaging(w http.ResponseWriter, r *http.Request) {
	var req SavePackagingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := h.Store.SavePackaging(r.Context(), req.toPackaging(id)); err != nil {
		h.internalError(w, r, "Failed to save packaging", err)
		return
	}

	saved, err := h.Store.PackagingByID(r.Context(), id)
	if err != nil || saved == nil {
		h.internalError(w, r, "Failed to reload packaging", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPackagingDTO(*saved))
}

// DeactivatePackaging marks a packaging type inactive.
// POST /api/packaging/{id}/deactivate
func (h *Handler) DeactivatePackaging(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeactivatePackaging(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "Failed to deactivate packaging", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Packaging not found", nil)
		return
	}

	p, err := h.Store.PackagingByID(r.Context(), id)
	if err != nil || p == nil {
		h.internalError(w, r, "Failed to reload packaging", err)
		return
	}
	writeJSON(w, http.StatusOK, toPackagingDTO(*p))
}

// =============================================================================
// CONVERSION HANDLERS
// =============================================================================

// Convert runs a single conversion.
// POST /api/conversions
//
// Returns 200 with the result on SUCCESS and 422 with the full result
// (errors, partial breakdown) on ERROR.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res := h.convert(r.Context(), req.toDomain(h.now().UTC()))
	status := http.StatusOK
	if !res.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// ConvertBatch converts up to MaxBatchSize requests concurrently. One
// failing item never aborts the batch; results keep request order.
// POST /api/conversions/batch
func (h *Handler) ConvertBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchConvertRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.now().UTC()
	results := make([]conversion.ConversionResult, len(req.Requests))
	err := h.forEach(r.Context(), len(req.Requests), func(ctx context.Context, i int) {
		results[i] = h.convert(ctx, req.Requests[i].toDomain(now))
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Batch cancelled", err)
		return
	}

	resp := BatchConvertResponse{BatchID: uuid.NewString(), Results: results}
	for _, res := range results {
		if res.Succeeded() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConvertLines applies the unit guard to each transaction line and converts
// the lines that pass.
// POST /api/conversions/lines
func (h *Handler) ConvertLines(w http.ResponseWriter, r *http.Request) {
	var req LinesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.now().UTC()
	out := make([]LineResultDTO, len(req.Lines))
	err := h.forEach(r.Context(), len(req.Lines), func(ctx context.Context, i int) {
		line := req.Lines[i].toLine()
		out[i].Index = i

		if err := conversion.CheckLine(line); err != nil {
			var ce *conversion.ConversionError
			if errors.As(err, &ce) {
				out[i].Error = ce
				lineGuardRejections.WithLabelValues(string(ce.Code)).Inc()
			}
			return
		}

		cr := line.Request(req.RequestedBy)
		cr.RequestedAt = now
		res := h.convert(ctx, cr)
		out[i].Result = &res
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Line conversion cancelled", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// convert runs the engine and records metrics.
func (h *Handler) convert(ctx context.Context, req conversion.ConversionRequest) conversion.ConversionResult {
	start := time.Now()
	res := h.Engine.Convert(ctx, req)
	observeConversion(req, res, time.Since(start))
	return res
}

// forEach runs fn for 0..n-1 with at most batchConcurrency in flight. It
// returns the context error if the request was cancelled before every item
// started.
func (h *Handler) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			fn(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// =============================================================================
// REFERENCE HANDLERS
// =============================================================================

// ListUnits returns the canonical units with their precision rule and the
// aliases that normalize to each.
// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	byUnit := make(map[conversion.Unit][]string)
	for alias, unit := range h.Engine.Normalizer().Aliases() {
		if alias == string(unit) {
			continue
		}
		byUnit[unit] = append(byUnit[unit], alias)
	}

	resp := UnitsResponse{Version: h.Engine.Version()}
	for _, u := range conversion.Units() {
		rule := h.Engine.Rounder().Rule(u, nil)
		aliases := byUnit[u]
		sort.Strings(aliases)
		if aliases == nil {
			aliases = []string{}
		}
		resp.Units = append(resp.Units, UnitDTO{
			Code:           u,
			Class:          u.Class(),
			DecimalPlaces:  rule.DecimalPlaces,
			RoundingMethod: rule.Method,
			Aliases:        aliases,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.ErrorContext(r.Context(), message, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
