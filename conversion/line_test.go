package conversion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/uom-engine/conversion"
)

func TestCheckLine(t *testing.T) {
	t.Run("explicit unit passes", func(t *testing.T) {
		line := conversion.TransactionLine{ProductID: "oil-15w40", Quantity: dec("5"), UOM: "PAIL"}
		assert.NoError(t, conversion.CheckLine(line))
	})

	t.Run("legacy kg only is blocked", func(t *testing.T) {
		line := conversion.TransactionLine{ProductID: "oil-15w40", Quantity: dec("5"), LegacyQuantityKg: decPtr("90")}
		err := conversion.CheckLine(line)
		assert.True(t, errors.Is(err, conversion.ErrLegacyFallbackBlocked))
	})

	t.Run("no unit at all", func(t *testing.T) {
		line := conversion.TransactionLine{ProductID: "oil-15w40", Quantity: dec("5"), UOM: "  "}
		err := conversion.CheckLine(line)
		assert.Equal(t, conversion.CodeUnitlessTransactionEntity, conversion.CodeOf(err))
	})
}

func TestQuantityIn(t *testing.T) {
	engine := newTestEngine(seededStore())
	line := conversion.TransactionLine{
		ProductID: "oil-15w40", Quantity: dec("15960"), UOM: "PAIL",
		PackagingID: "pail-20l", Context: conversion.ContextSalesOrder,
	}
	res := engine.Convert(context.Background(), line.Request("tester"))
	require.True(t, res.Succeeded())

	for unit, want := range map[conversion.Unit]string{
		conversion.UnitPail:  "15960",
		conversion.UnitLiter: "319200",
		conversion.UnitKg:    "287280",
		conversion.UnitMT:    "287.28",
	} {
		got, err := res.QuantityIn(unit)
		require.NoError(t, err, unit)
		assert.True(t, dec(want).Equal(got), "%s: got %s", unit, got)
	}

	_, err := res.QuantityIn(conversion.UnitDrum)
	assert.True(t, errors.Is(err, conversion.ErrIncompatibleUnits))
}

func TestQuantityIn_MissingLayerOrErrorResult(t *testing.T) {
	engine := newTestEngine(seededStore())

	kg := engine.Convert(context.Background(), request("100", "KG", conversion.ContextSalesOrder, ""))
	_, err := kg.QuantityIn(conversion.UnitLiter)
	assert.Equal(t, conversion.CodeIncompatibleUnits, conversion.CodeOf(err))

	failed := engine.Convert(context.Background(), request("-1", "KG", conversion.ContextSalesOrder, ""))
	_, err = failed.QuantityIn(conversion.UnitKg)
	assert.Equal(t, conversion.CodeIncompatibleUnits, conversion.CodeOf(err))
}
