package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "reminder_scans_total",
			Help:      "Total number of reminder scans by outcome.",
		},
		[]string{"outcome"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "reminder_notifications_total",
			Help:      "Total number of task reminder notifications by result.",
		},
		[]string{"result"},
	)

	dedupSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "reminder_dedup_suppressed_total",
			Help:      "Reminders suppressed by the dedup ledger.",
		},
	)

	tokensInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "push_tokens_invalidated_total",
			Help:      "Device tokens deactivated after provider-reported invalidity.",
		},
	)

	sendRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "push_send_retries_total",
			Help:      "Push delivery retry attempts.",
		},
	)

	ticksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Scheduler ticks skipped because a scan was in flight.",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "getitdone",
			Name:      "reminder_scan_duration_seconds",
			Help:      "Time to complete one reminder scan.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10},
		},
	)

	cacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "getitdone",
			Name:      "reminder_cache_entries",
			Help:      "Current number of dedup ledger entries.",
		},
	)
)
