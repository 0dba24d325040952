package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/uom-engine/conversion"
)

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

var (
	// conversionsTotal counts conversions by terminal status and context.
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uom_conversions_total",
		Help: "Total conversions by status and transaction context",
	}, []string{"status", "transaction_context"})

	// conversionErrorsTotal counts ERROR results by error code.
	conversionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uom_conversion_errors_total",
		Help: "Total failed conversions by error code",
	}, []string{"error_code"})

	conversionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uom_conversion_duration_seconds",
		Help:    "Conversion duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
	}, []string{"status"})

	// lineGuardRejections counts transaction lines refused before conversion.
	lineGuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uom_line_guard_rejections_total",
		Help: "Transaction lines rejected by the unit guard, by error code",
	}, []string{"error_code"})
)

func observeConversion(req conversion.ConversionRequest, res conversion.ConversionResult, elapsed time.Duration) {
	ctx := string(req.Context)
	if !req.Context.Valid() {
		ctx = "invalid"
	}
	conversionsTotal.WithLabelValues(string(res.Status), ctx).Inc()
	conversionDuration.WithLabelValues(string(res.Status)).Observe(elapsed.Seconds())
	for _, e := range res.Errors {
		conversionErrorsTotal.WithLabelValues(string(e.Code)).Inc()
	}
}
