// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTotal counts summary reconciliation runs by outcome.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multipinbot_reconcile_total",
		Help: "Total summary reconciliation runs, labeled by result.",
	}, []string{"result"})

	// GatewayCallTotal counts Telegram API calls by method and outcome.
	GatewayCallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multipinbot_gateway_calls_total",
		Help: "Total Telegram gateway calls, labeled by method and result.",
	}, []string{"method", "result"})

	// UpdateTotal counts handled Telegram updates by kind.
	UpdateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multipinbot_updates_total",
		Help: "Total handled Telegram updates, labeled by kind.",
	}, []string{"kind"})
)
