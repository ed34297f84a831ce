package epoll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the counters/gauges pattern seen in the teacher's
// infra services (e.g. cmd/infra/ursrv/serve/metrics.go): package-level
// promauto collectors under a stable namespace/subsystem, incremented
// from the hot control/notify/collect paths.
var (
	metricWatchesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vepoll",
		Subsystem: "core",
		Name:      "watches_active",
		Help:      "Number of Watches currently in a Watch Table.",
	})
	metricNotifiesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vepoll",
		Subsystem: "core",
		Name:      "notifies_scheduled_total",
		Help:      "Deferred notify tasks scheduled by the Notification Controller.",
	})
	metricEventsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vepoll",
		Subsystem: "core",
		Name:      "events_collected_total",
		Help:      "Events returned by Collect, by source.",
	}, []string{"source"})
	metricOSOraclePolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vepoll",
		Subsystem: "core",
		Name:      "os_oracle_polls_total",
		Help:      "Nonblocking OS-oracle peeks performed during check.",
	})
)

func init() {
	metricEventsCollected.WithLabelValues("virtual")
	metricEventsCollected.WithLabelValues("os")
}
