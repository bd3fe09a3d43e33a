package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quiz"

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Rooms currently held by the registry.",
	})

	TicksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "countdown_ticks_total",
		Help:      "Countdown ticks handed to the broadcast dispatcher.",
	})

	CountdownJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "countdown_jobs_total",
		Help:      "Countdown jobs by outcome.",
	}, []string{"outcome"})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_delivery_failures_total",
		Help:      "Per-handle delivery failures during broadcasts.",
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_cache_requests_total",
		Help:      "Question batch lookups by result.",
	}, []string{"backend", "result"})

	CacheFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_cache_fetches_total",
		Help:      "Data store fetches performed to populate the question cache.",
	}, []string{"backend"})
)

// Job outcomes.
const (
	OutcomeExpired   = "expired"
	OutcomeCancelled = "cancelled"
	OutcomeOrphaned  = "orphaned"
)
