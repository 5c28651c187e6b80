// Package metrics provides Prometheus metrics for the detection service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FocuswithJustin/versewatch/core/engine"
)

const namespace = "versewatch"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	FragmentsTotal     prometheus.Counter
	FragmentDuration   prometheus.Histogram
	ReferencesTotal    *prometheus.CounterVec
	CandidatesDropped  prometheus.Counter
	TranslationLoads   *prometheus.CounterVec
	TranslationLoadDur prometheus.Histogram
	SessionsActive     prometheus.Gauge
	WebSocketClients   prometheus.Gauge
	IngestMessages     *prometheus.CounterVec
}

// DefaultMetrics is registered with the default Prometheus registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FragmentsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_processed_total",
			Help:      "Total number of transcript fragments processed",
		}),
		FragmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fragment_duration_seconds",
			Help:      "Time spent detecting and resolving one fragment",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		ReferencesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_total",
			Help:      "Total number of references returned",
		}, []string{"source", "kind"}),
		CandidatesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Total number of detected candidates that did not resolve",
		}),
		TranslationLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_loads_total",
			Help:      "Total number of translation fetches",
		}, []string{"translation", "status"}),
		TranslationLoadDur: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_load_duration_seconds",
			Help:      "Translation fetch and decode latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open transcript sessions",
		}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		}),
		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Total number of Kafka transcript events consumed",
		}, []string{"status"}),
	}
}

// RecordFragment records one processed fragment. It has the signature of
// engine.Options.OnProcessed.
func (m *Metrics) RecordFragment(res engine.Result, elapsed time.Duration) {
	m.FragmentsTotal.Inc()
	m.FragmentDuration.Observe(elapsed.Seconds())
	m.CandidatesDropped.Add(float64(res.Dropped))
	for _, r := range res.Direct {
		m.ReferencesTotal.WithLabelValues(string(r.Source), string(r.Kind)).Inc()
	}
	for _, r := range res.Paraphrase {
		m.ReferencesTotal.WithLabelValues(string(r.Source), "").Inc()
	}
}

// RecordTranslationLoad records one translation fetch. It has the
// signature of translation.StoreOptions.OnLoad.
func (m *Metrics) RecordTranslationLoad(id string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TranslationLoads.WithLabelValues(id, status).Inc()
	m.TranslationLoadDur.Observe(elapsed.Seconds())
}

// RecordIngest records the outcome of one consumed event.
func (m *Metrics) RecordIngest(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.IngestMessages.WithLabelValues(status).Inc()
}
