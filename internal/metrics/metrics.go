package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesComputedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_quotes_computed_total",
		Help: "Total number of pricing quotes computed",
	})

	IntentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_hosted_intents_created_total",
		Help: "Total number of hosted payment intents created",
	})

	IntentsSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_hosted_intents_superseded_total",
		Help: "Total number of hosted intents discarded by a newer request",
	})

	ConfirmAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_hosted_confirm_attempts_total",
		Help: "Total number of hosted confirmation attempts",
	})

	ConfirmDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_hosted_confirm_declined_total",
		Help: "Total number of declined hosted confirmations",
	})

	WalletOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_wallet_orders_created_total",
		Help: "Total number of wallet orders created",
	})

	WalletCapturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_wallet_captures_total",
		Help: "Total number of wallet order captures issued",
	})

	WalletCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_wallet_cancelled_total",
		Help: "Total number of wallet attempts that ended without capture",
	}, []string{"reason"})

	WalletSignalsIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_wallet_signals_ignored_total",
		Help: "Total number of completion signals dropped after consumption",
	})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_finalized_total",
		Help: "Total number of orders materialized after payment success",
	})

	CaptureLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_wallet_capture_latency_seconds",
		Help:    "Latency of wallet capture calls",
		Buckets: prometheus.DefBuckets,
	})
)
