package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes ingestion run metrics.
type Recorder struct {
	IngestionsTotal    *prometheus.CounterVec
	IngestionFailures  *prometheus.CounterVec
	IngestionDuration  *prometheus.HistogramVec
	RowsParsed         *prometheus.HistogramVec
	SynthesizedRecords *prometheus.CounterVec
}

// NewRecorder registers the ingestion metrics on reg. A nil registerer uses
// the default prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		IngestionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total number of successful ingestion runs",
			},
			[]string{"format", "structure"},
		),
		IngestionFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_failures_total",
				Help: "Total number of failed ingestion runs",
			},
			[]string{"format", "error_code"},
		),
		IngestionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_duration_seconds",
				Help:    "Duration of ingestion runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		RowsParsed: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_rows_parsed",
				Help:    "Number of data rows parsed per file",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"format"},
		),
		SynthesizedRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_synthesized_total",
				Help: "Total number of runs that synthesized a missing portfolio half",
			},
			[]string{"kind"},
		),
	}
}

// ObserveSuccess records a completed run.
func (r *Recorder) ObserveSuccess(format, structure string, rows int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.IngestionsTotal.WithLabelValues(format, structure).Inc()
	r.IngestionDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	r.RowsParsed.WithLabelValues(format).Observe(float64(rows))
}

// ObserveFailure records a failed run.
func (r *Recorder) ObserveFailure(format, code string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.IngestionFailures.WithLabelValues(format, code).Inc()
	r.IngestionDuration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// ObserveSynthesis records that kind ("projects" or "financials") was synthesized.
func (r *Recorder) ObserveSynthesis(kind string) {
	if r == nil {
		return
	}
	r.SynthesizedRecords.WithLabelValues(kind).Inc()
}
