package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts adapter page calls, successful or not.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doctorworker_pages_fetched_total",
		Help: "Pages requested per adapter.",
	}, []string{"adapter"})

	// RecordsSaved counts records accepted by the sink, per strategy.
	RecordsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doctorworker_records_saved_total",
		Help: "Records pushed to the sink.",
	}, []string{"strategy"})

	// RecordsDropped counts merged records discarded for lacking a name.
	RecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doctorworker_records_dropped_total",
		Help: "Records discarded because no name was found.",
	})

	// DetailFailures counts profile pages that failed after all retries.
	DetailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doctorworker_detail_failures_total",
		Help: "Profile page fetches that failed and were skipped.",
	})

	// SinkFailures counts records the sink refused.
	SinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doctorworker_sink_failures_total",
		Help: "Records the sink failed to accept.",
	})

	// Fallbacks counts strategy switches.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doctorworker_fallbacks_total",
		Help: "Strategy fallbacks taken by the orchestrator.",
	}, []string{"from", "to"})
)
