package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/uom-engine/conversion"
	"github.com/warp/uom-engine/conversion/store"
	"github.com/warp/uom-engine/factory"
)

func TestParseJSON_MergesWithDefaults(t *testing.T) {
	f := factory.NewConfigFactory()
	cfg, err := f.ParseJSON([]byte(`{
		"version": "uom-engine/1.1.0",
		"aliases": {"bkt": "pail", "JERRYCAN": "EA"},
		"precision": {"MT": {"decimal_places": 3}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "uom-engine/1.1.0", cfg.Version)
	assert.Equal(t, conversion.UnitPail, cfg.Aliases["BKT"])
	assert.Equal(t, conversion.UnitEach, cfg.Aliases["JERRYCAN"])
	assert.Equal(t, conversion.UnitLiter, cfg.Aliases["LITRES"], "defaults kept")
	assert.Equal(t, int32(3), cfg.Precision[conversion.UnitMT].DecimalPlaces)
	assert.Equal(t, conversion.RoundHalfUp, cfg.Precision[conversion.UnitMT].Method)
	assert.Equal(t, int32(2), cfg.Precision[conversion.UnitKg].DecimalPlaces)
}

func TestParseYAML_ReplaceDefaults(t *testing.T) {
	f := factory.NewConfigFactory()
	cfg, err := f.ParseYAML([]byte(`
replace_defaults: true
aliases:
  BKT: PAIL
precision:
  LTR:
    decimal_places: 1
    rounding_method: round_half_even
`))
	require.NoError(t, err)

	assert.Len(t, cfg.Aliases, 1)
	assert.Equal(t, conversion.RoundHalfEven, cfg.Precision[conversion.UnitLiter].Method)
	assert.Equal(t, conversion.DefaultVersion, cfg.Version)
	assert.Len(t, cfg.Precision, len(conversion.Units()))
}

func TestFromDocument_Rejects(t *testing.T) {
	f := factory.NewConfigFactory()

	cases := map[string]factory.ConfigDocument{
		"unknown alias target": {Aliases: map[string]string{"BOTTLE": "BTL"}},
		"empty alias":          {Aliases: map[string]string{"  ": "LTR"}},
		"unknown precision":    {Precision: map[string]factory.PrecisionJSON{"GAL": {DecimalPlaces: 2}}},
		"negative places":      {Precision: map[string]factory.PrecisionJSON{"KG": {DecimalPlaces: -1}}},
		"unknown method":       {Precision: map[string]factory.PrecisionJSON{"KG": {DecimalPlaces: 2, RoundingMethod: "ROUND_RANDOM"}}},
	}
	for name, doc := range cases {
		_, err := f.FromDocument(doc)
		assert.Error(t, err, name)
	}

	_, err := f.ParseJSON([]byte(`{"aliases": [`))
	assert.Error(t, err)
}

func TestLoadFile_ConfiguresEngine(t *testing.T) {
	// GIVEN: a YAML file adding a BKT alias
	// WHEN: the engine is built with it
	// THEN: BKT normalizes to PAIL

	path := filepath.Join(t.TempDir(), "engine.yml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  BKT: PAIL\n"), 0o600))

	cfg, err := factory.NewConfigFactory().LoadFile(path)
	require.NoError(t, err)

	repo := store.NewMemory()
	d := decimal.RequireFromString("0.9")
	repo.PutProduct(conversion.Product{ID: "oil", DensityKgPerL: &d})
	repo.PutPackaging(conversion.Packaging{ID: "pail", Code: "PAIL", CapacityLiters: decimal.NewFromInt(20), IsActive: true})

	engine := conversion.New(repo, conversion.WithConfig(cfg))
	res := engine.Convert(context.Background(), conversion.ConversionRequest{
		ProductID: "oil", CommercialQty: decimal.NewFromInt(2), CommercialUOM: "bkt",
		Context: conversion.ContextSalesOrder, PackagingID: "pail",
	})
	require.Equal(t, conversion.StatusSuccess, res.Status, "errors: %v", res.Errors)
	assert.Equal(t, conversion.UnitPail, res.CommercialUOM)
	assert.Equal(t, "40", res.PhysicalQtyLiters.String())

	_, err = factory.NewConfigFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
