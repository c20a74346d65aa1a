// Package metrics defines Prometheus metrics for surplus-ml.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sml"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	HTTPPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Total handler panics recovered by the HTTP server.",
	})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 if the last liveness probe succeeded.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 if the last readiness probe succeeded.",
	})
)

// Inference metrics.
var (
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_predictions_total",
		Help:      "Total price predictions by result source (ml_model, error, unavailable).",
	}, []string{"source"})

	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Total recommendation requests by result source and personalization.",
	}, []string{"source", "personalized"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_duration_seconds",
		Help:      "Duration of a single predict or recommend call in seconds.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"model"})
)

// Model lifecycle metrics.
var (
	ModelAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_available",
		Help:      "1 if the named model artifact is loaded.",
	}, []string{"model"})

	ModelReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_reloads_total",
		Help:      "Total model load attempts by outcome.",
	}, []string{"model", "outcome"})
)

// Training metrics.
var (
	TrainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "training_runs_total",
		Help:      "Total training attempts by model and outcome (success, insufficient_data, error, skipped).",
	}, []string{"model", "outcome"})

	TrainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "training_duration_seconds",
		Help:      "Duration of model training in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})

	TrainingSamples = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "training_samples",
		Help:      "Number of samples used by the last successful training run.",
	}, []string{"model"})
)

// Notification metrics.
var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total training notifications by outcome (sent, failed).",
	}, []string{"outcome"})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of webhook notification delivery in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Model names used as label values.
const (
	ModelPrice          = "price"
	ModelRecommendation = "recommendation"
)

// SetAvailable records the availability gauge for a model.
func SetAvailable(model string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	ModelAvailable.WithLabelValues(model).Set(v)
}
