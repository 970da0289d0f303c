package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "media_predict"

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of prediction service calls, labeled by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	APIRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of prediction service calls (seconds).",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StatusPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Total number of task status polls, labeled by observed state class.",
		},
		[]string{"state"},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of end-to-end predictions, labeled by prediction type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	PredictionLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "End-to-end latency from begin to results (seconds).",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"type", "outcome"},
	)

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded to signed storage targets.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDurationSeconds,
		StatusPollsTotal,
		PredictionsTotal,
		PredictionLatencySeconds,
		UploadBytesTotal,
	)
}

// ObserveAPICall records one service call
func ObserveAPICall(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	APIRequestsTotal.WithLabelValues(operation, outcome).Inc()
	APIRequestDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObservePrediction records one completed orchestration
func ObservePrediction(predictionType, outcome string, start time.Time) {
	PredictionsTotal.WithLabelValues(predictionType, outcome).Inc()
	PredictionLatencySeconds.WithLabelValues(predictionType, outcome).Observe(time.Since(start).Seconds())
}
