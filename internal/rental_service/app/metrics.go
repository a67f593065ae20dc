package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "updates_received_total",
			Help:      "Total number of inbound chat updates dispatched.",
		},
		[]string{"kind"}, // message, callback, other
	)

	updatesIgnoredCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "updates_ignored_total",
			Help:      "Inbound updates that matched no route.",
		},
		[]string{"kind"},
	)

	useCaseDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental_bot",
			Name:      "use_case_duration_seconds",
			Help:      "Duration of matching engine use cases, excluding delivery.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"use_case"},
	)

	numberTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "number_transitions_total",
			Help:      "Committed number lifecycle transitions.",
		},
		[]string{"kind"},
	)

	accessAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "access_attempts_total",
			Help:      "Buyer access phrase attempts.",
		},
		[]string{"result"}, // success, failure
	)

	deliveriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "deliveries_total",
			Help:      "Outbound transport calls by method and result.",
		},
		[]string{"method", "result"}, // method: send_message, answer_callback
	)

	pollErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "poll_errors_total",
			Help:      "Failed long-poll requests.",
		},
	)

	eventsPublishedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_bot",
			Name:      "rental_events_published_total",
			Help:      "Rental lifecycle events handed to sinks.",
		},
		[]string{"sink", "status"},
	)
)
