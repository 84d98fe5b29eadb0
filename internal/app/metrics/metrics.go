package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics aggregates the counters the admin dashboards read.
type OrderMetrics struct {
	OrdersCreatedTotal   *prometheus.CounterVec
	OrdersCompletedTotal prometheus.Counter
	OrdersCancelledTotal prometheus.Counter

	WalletDepositsTotal      prometheus.Counter
	WalletDepositAmountTotal prometheus.Counter
	WalletPurchasesTotal     prometheus.Counter

	FunctionInvocationsTotal *prometheus.CounterVec
	SyncAttemptsTotal        prometheus.Counter
	SyncTransitionsTotal     prometheus.Counter

	OrderCompletionDuration prometheus.Histogram
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	factory := promauto.With(reg)
	return &OrderMetrics{
		OrdersCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "instafly_orders_created_total",
			Help: "Orders created, by platform and payment method.",
		}, []string{"platform", "payment_method"}),
		OrdersCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_orders_completed_total",
			Help: "Orders that reached the completed status.",
		}),
		OrdersCancelledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_orders_cancelled_total",
			Help: "Orders cancelled or refunded.",
		}),
		WalletDepositsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_wallet_deposits_total",
			Help: "Confirmed wallet deposits.",
		}),
		WalletDepositAmountTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_wallet_deposit_amount_total",
			Help: "Sum of confirmed deposit amounts, bonus included.",
		}),
		WalletPurchasesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_wallet_purchases_total",
			Help: "Orders paid from wallet balance.",
		}),
		FunctionInvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "instafly_function_invocations_total",
			Help: "Hosted function invocations, by function and outcome.",
		}, []string{"function", "outcome"}),
		SyncAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_sync_attempts_total",
			Help: "Order status sync attempts.",
		}),
		SyncTransitionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "instafly_sync_transitions_total",
			Help: "Status changes observed by the sync worker.",
		}),
		OrderCompletionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "instafly_order_completion_duration_seconds",
			Help:    "Time from order creation to completion.",
			Buckets: prometheus.ExponentialBuckets(60, 2, 12),
		}),
	}
}
