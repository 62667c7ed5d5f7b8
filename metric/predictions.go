package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PredictionCount *prometheus.CounterVec
	ErrorCount      *prometheus.CounterVec
	Latency         *prometheus.HistogramVec
}

// PredictionCount provides metrics for total predictions served.
func PredictionCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtime_predictions_total",
			Help: "Total number of predictions served.",
		},
		[]string{"model", "stage"},
	)
}

// ErrorCount provides metrics for total serving errors.
func ErrorCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtime_prediction_errors_total",
			Help: "Total number of prediction requests rejected or failed.",
		},
		[]string{"model", "reason"},
	)
}

// Latency provides metrics for prediction handler latency.
func Latency() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playtime_prediction_duration_seconds",
			Help:    "Prediction handler latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
}

// RegisterAll registers the serving collectors with the default
// prometheus registry and returns them.
func RegisterAll() *Metrics {
	m := &Metrics{
		PredictionCount: PredictionCount(),
		ErrorCount:      ErrorCount(),
		Latency:         Latency(),
	}
	prometheus.MustRegister(
		m.PredictionCount,
		m.ErrorCount,
		m.Latency,
	)
	return m
}
