package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardgate_fills_total",
		Help: "Fill attempts by outcome",
	}, []string{"outcome"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardgate_rejections_total",
		Help: "Fill rejections by rejection code",
	}, []string{"code"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	OffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardgate_offer_transitions_total",
		Help: "Offer lifecycle transitions by target status",
	}, []string{"status"})

	SandboxDivergence = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardgate_sandbox_divergence_total",
		Help: "Accepted fills whose sandbox replay did not produce a matching proof",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardgate_receipt_sink_errors_total",
		Help: "Receipt sink write failures",
	}, []string{"sink"})
)
