// Package metrics exposes Prometheus metrics for the quoting and hedging
// agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PositionLots is the net filled quantity in the quoted instrument.
	PositionLots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autohedger_position_lots",
		Help: "Net filled quantity in the quoted instrument",
	})

	// HedgePositionLots is the net quantity dealt via hedge orders.
	HedgePositionLots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autohedger_hedge_position_lots",
		Help: "Net quantity dealt in the hedge instrument",
	})

	// UnhedgedExposureLots is position + hedge position.
	UnhedgedExposureLots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autohedger_unhedged_exposure_lots",
		Help: "Combined exposure across both instruments",
	})

	// OrdersSubmitted counts quote orders sent, by side.
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autohedger_orders_submitted_total",
		Help: "Quote orders submitted to the venue",
	}, []string{"side"})

	// OrdersCanceled counts cancel requests sent.
	OrdersCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autohedger_orders_canceled_total",
		Help: "Cancel requests submitted to the venue",
	})

	// HedgeOrders counts corrective hedge orders sent, by side.
	HedgeOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autohedger_hedge_orders_total",
		Help: "Hedge orders submitted to the venue",
	}, []string{"side"})

	// OrderFills counts fills against the trader's resting orders.
	OrderFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autohedger_order_fills_total",
		Help: "Fills received on resting orders",
	})

	// VenueErrors counts error callbacks from the venue.
	VenueErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autohedger_venue_errors_total",
		Help: "Error events received from the venue",
	})

	// BookUpdates counts order book snapshots, by instrument.
	BookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autohedger_book_updates_total",
		Help: "Order book snapshots processed",
	}, []string{"instrument"})

	// StaleBookUpdates counts snapshots dropped for stale sequence numbers.
	StaleBookUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autohedger_stale_book_updates_total",
		Help: "Order book snapshots dropped as out of order",
	})
)

// UpdateExposure refreshes the position gauges in one call.
func UpdateExposure(position, hedgePosition int64) {
	PositionLots.Set(float64(position))
	HedgePositionLots.Set(float64(hedgePosition))
	UnhedgedExposureLots.Set(float64(position + hedgePosition))
}

// Serve exposes /metrics on addr in a background goroutine. An empty addr
// disables the server.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
