package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OffersCreatedTotal counts offers written by the dispatcher.
	OffersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offers_created_total",
		Help: "Total number of offers created by the matching dispatcher",
	})

	// OfferAcceptTotal counts accept attempts by outcome (won, lost, rejected_precondition).
	OfferAcceptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_accept_total",
		Help: "Total number of offer accept attempts by outcome",
	}, []string{"outcome"})

	// OffersExpiredTotal counts expirations by reason (sweep, cascade, cancel).
	OffersExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_expired_total",
		Help: "Total number of offers expired by reason",
	}, []string{"reason"})

	// DispatchAttemptsTotal counts dispatch runs by outcome (proposed, no_drivers, error).
	DispatchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Total number of dispatch attempts by outcome",
	}, []string{"outcome"})

	// DispatchQueueDepth tracks jobs waiting for a dispatch worker.
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Number of dispatch jobs waiting in the queue",
	})

	// HTTPRequestsTotal counts HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
