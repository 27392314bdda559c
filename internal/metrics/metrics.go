// Package metrics holds the process-wide Prometheus instruments. They are
// registered on the default registry; main exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts refresh attempts by result ("ok" | "error").
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "firstbites",
		Subsystem: "cache",
		Name:      "refresh_total",
		Help:      "Number of exposure cache refresh attempts by result.",
	}, []string{"result"})

	// PersistFailures counts snapshot-file writes that failed. These never
	// fail a refresh; the counter is how they stay visible.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firstbites",
		Subsystem: "cache",
		Name:      "persist_failures_total",
		Help:      "Number of snapshot persistence failures (logged, non-fatal).",
	})

	// ConnectedClients tracks currently registered broadcast subscribers.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "firstbites",
		Subsystem: "ws",
		Name:      "connected_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// NotificationsSent counts successful webhook notification deliveries.
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "firstbites",
		Subsystem: "push",
		Name:      "notifications_sent_total",
		Help:      "Number of webhook notifications delivered successfully.",
	})
)
