// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CartMerges counts guest-cart merges by trigger (auto, manual) and
	// result (merged, empty, failed, skipped).
	CartMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redbead_cart_merges_total",
		Help: "Guest cart merge attempts by trigger and result",
	}, []string{"trigger", "result"})

	// CheckoutExpiries counts watchdog teardowns by reason (expired, fetch_error).
	CheckoutExpiries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redbead_checkout_expiries_total",
		Help: "Checkout sessions torn down by the watchdog",
	}, []string{"reason"})

	// CheckoutWarnings counts one-time expiry warnings.
	CheckoutWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redbead_checkout_expiry_warnings_total",
		Help: "Checkout expiry warnings shown",
	})

	// InactivitySignOuts counts forced sign-outs after inactivity.
	InactivitySignOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redbead_inactivity_signouts_total",
		Help: "Sessions signed out after inactivity",
	})

	// ActiveSessions tracks open websocket session mounts.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redbead_sessions_active",
		Help: "Open session mounts",
	})
)
