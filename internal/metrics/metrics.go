// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Predictions  *prometheus.CounterVec
	BatchRecords prometheus.Counter
	DatasetLoads *prometheus.CounterVec
	DatasetLoad  prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thyronet_predictions_total",
			Help: "Single predictions served, by predicted class.",
		}, []string{"prediction"}),
		BatchRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thyronet_batch_records_total",
			Help: "Records scored through the batch endpoint.",
		}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thyronet_dataset_loads_total",
			Help: "Reference dataset loads, by outcome.",
		}, []string{"outcome"}),
		DatasetLoad: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thyronet_dataset_load_seconds",
			Help:    "Time spent loading the reference dataset.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.Predictions,
		m.BatchRecords,
		m.DatasetLoads,
		m.DatasetLoad,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction counts one single prediction. Safe on a nil receiver.
func (m *Metrics) ObservePrediction(prediction string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(prediction).Inc()
}

// ObserveBatch counts scored batch records. Safe on a nil receiver.
func (m *Metrics) ObserveBatch(records int) {
	if m == nil {
		return
	}
	m.BatchRecords.Add(float64(records))
}

// ObserveDatasetLoad records one dataset load. Safe on a nil receiver.
func (m *Metrics) ObserveDatasetLoad(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.DatasetLoads.WithLabelValues(outcome).Inc()
	m.DatasetLoad.Observe(seconds)
}
